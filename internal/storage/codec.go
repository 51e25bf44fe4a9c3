// Package storage persists and restores Environment checkpoints, and
// records per-generation history either in memory or (with the sqlite
// build tag) in a SQLite database.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"evosim/internal/config"
	"evosim/internal/environment"
	"evosim/internal/organism"
)

// CheckpointVersion tags the current on-disk checkpoint schema.
// CheckpointVersionPrior is the previous schema this codec still
// tolerates on read: a checkpoint written under it decodes successfully
// but its rng_state cannot be trusted to resume the exact same stream,
// so DecodeCheckpoint reseeds it deterministically from the checkpoint's
// generation counter rather than replaying whatever seed the old
// payload carried.
const (
	CheckpointVersion      = "ENVIRONMENT_STATE_V4"
	CheckpointVersionPrior = "ENVIRONMENT_STATE_V3"
)

// checkpointDoc is the on-disk shape, matching spec.md's checkpoint
// contract field for field: version, config, vm_config, analyzer_config,
// stats, rng_state, organisms all live at the top level rather than
// nested under an inner envelope.
type checkpointDoc struct {
	Version        string              `json:"version"`
	Config         config.Environment  `json:"config"`
	VMConfig       config.VM           `json:"vm_config"`
	AnalyzerConfig config.Analyzer     `json:"analyzer_config"`
	Stats          environment.Stats   `json:"stats"`
	RNGState       string              `json:"rng_state"`
	Organisms      []organismRecord    `json:"organisms"`
	Generation     int                 `json:"generation"`
}

type organismRecord struct {
	ID           uint64  `json:"id"`
	Generation   int     `json:"generation"`
	ParentID     uint64  `json:"parent_id"`
	FitnessScore float64 `json:"fitness_score"`
	Bytecode     []byte  `json:"bytecode"`
}

// EncodeCheckpoint serializes an environment checkpoint to the versioned
// JSON document spec.md's checkpoint format describes. The RNG seed is
// carried as the decimal string form of the int64 seed, since
// math/rand's internal generator state itself cannot be serialized
// portably (see DESIGN.md).
func EncodeCheckpoint(cp environment.Checkpoint) ([]byte, error) {
	doc := checkpointDoc{
		Version:        CheckpointVersion,
		Config:         cp.Config.Environment,
		VMConfig:       cp.Config.VM,
		AnalyzerConfig: cp.Config.Analyzer,
		Stats:          cp.Stats,
		RNGState:       strconv.FormatInt(cp.RNGSeed, 10),
		Generation:     cp.Generation,
	}
	for _, rec := range cp.Organisms {
		doc.Organisms = append(doc.Organisms, organismRecord{
			ID:           rec.ID,
			Generation:   rec.Generation,
			ParentID:     rec.ParentID,
			FitnessScore: rec.FitnessScore,
			Bytecode:     rec.Bytecode,
		})
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("storage: encode checkpoint: %w", err)
	}
	return data, nil
}

// DecodeCheckpoint parses a versioned checkpoint document. A checkpoint
// written under CheckpointVersionPrior is accepted but has its RNG seed
// replaced by a value derived from its generation counter, since the
// prior format's rng_state cannot be trusted to reproduce the same
// evaluation stream this codec would produce. A missing or unparsable
// rng_state on the current version is likewise treated as corrupt and
// recovered the same way, per spec.md's error-handling design ("a
// corrupt RNG state inside a checkpoint is recoverable by re-seeding").
// Every reseed is logged as a warning through slog's default logger.
func DecodeCheckpoint(data []byte) (environment.Checkpoint, error) {
	var doc checkpointDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return environment.Checkpoint{}, fmt.Errorf("storage: decode checkpoint: %w", err)
	}

	switch doc.Version {
	case CheckpointVersion, CheckpointVersionPrior:
	default:
		return environment.Checkpoint{}, fmt.Errorf("storage: unsupported checkpoint version %q", doc.Version)
	}

	cp := environment.Checkpoint{
		Generation: doc.Generation,
		Stats:      doc.Stats,
		Config: environment.Config{
			Environment: doc.Config,
			VM:          doc.VMConfig,
			Analyzer:    doc.AnalyzerConfig,
		},
	}
	for _, rec := range doc.Organisms {
		cp.Organisms = append(cp.Organisms, organismToRecord(rec))
	}

	seed, err := strconv.ParseInt(doc.RNGState, 10, 64)
	if err != nil || doc.Version == CheckpointVersionPrior {
		seed = int64(doc.Generation)*2654435761 + 1
		slog.Warn("storage: checkpoint rng_state not restorable, reseeding from generation counter",
			"version", doc.Version, "generation", doc.Generation)
	}
	cp.RNGSeed = seed

	return cp, nil
}

func organismToRecord(rec organismRecord) organism.Record {
	return organism.Record{
		ID:           rec.ID,
		Generation:   rec.Generation,
		ParentID:     rec.ParentID,
		FitnessScore: rec.FitnessScore,
		Bytecode:     rec.Bytecode,
	}
}

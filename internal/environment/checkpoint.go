package environment

import (
	"fmt"

	"evosim/internal/config"
	"evosim/internal/organism"
)

// Checkpoint is the versioned, serializable snapshot of an Environment.
// The storage package is responsible for encoding/decoding it to a wire
// format and choosing where it lives; this package only knows how to
// produce and consume the in-memory shape.
type Checkpoint struct {
	Generation int
	Stats      Stats
	Organisms  []organism.Record
	Config     Config
	RNGSeed    int64
}

// Config is the subset of config.Full an Environment actually owns.
type Config struct {
	Environment config.Environment
	VM          config.VM
	Analyzer    config.Analyzer
}

// Snapshot captures the environment's current state as a Checkpoint.
// Because math/rand's internal state cannot be serialized portably, the
// checkpoint instead records the seed the environment was constructed
// or last reseeded with; restoring from a checkpoint therefore resumes
// deterministic generation from that seed rather than mid-stream.
func (e *Environment) Snapshot() Checkpoint {
	e.mu.Lock()
	defer e.mu.Unlock()

	organisms := make([]organism.Record, 0, len(e.population))
	for _, o := range e.population {
		organisms = append(organisms, o.Serialize())
	}

	return Checkpoint{
		Generation: e.stats.Generation,
		Stats:      e.stats,
		Organisms:  organisms,
		Config: Config{
			Environment: e.cfg,
			VM:          e.vmCfg,
			Analyzer:    e.analyzerCfg,
		},
		RNGSeed: e.seed,
	}
}

// Restore rebuilds an Environment from a Checkpoint. The population is
// reconstructed by deserializing every organism record (which re-renders
// each phenotype and bumps the shared id counter past any restored id),
// and the running generation/stats counters are taken verbatim from the
// checkpoint.
func Restore(cp Checkpoint) (*Environment, error) {
	if err := cp.Config.Environment.Validate(); err != nil {
		return nil, fmt.Errorf("environment: restore: %w", err)
	}
	if err := cp.Config.VM.Validate(); err != nil {
		return nil, fmt.Errorf("environment: restore: %w", err)
	}
	if err := cp.Config.Analyzer.Validate(); err != nil {
		return nil, fmt.Errorf("environment: restore: %w", err)
	}

	e := &Environment{
		cfg:         cp.Config.Environment,
		vmCfg:       cp.Config.VM,
		analyzerCfg: cp.Config.Analyzer,
		rng:         newRNG(cp.RNGSeed),
		population:  make(map[uint64]*organism.Organism, len(cp.Organisms)),
		seed:        cp.RNGSeed,
	}

	m := e.newVM()
	for _, rec := range cp.Organisms {
		o := organism.Deserialize(rec, m)
		e.population[o.ID()] = o
	}

	e.stats = cp.Stats
	e.stats.Generation = cp.Generation
	e.stats.PopulationSize = len(e.population)
	return e, nil
}

package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"evosim/internal/environment"
	"evosim/internal/storage"
)

// Stats is a read-only snapshot of engine-level bookkeeping plus the
// last fully-committed environment stats. GetStats never triggers a
// re-evaluation: it only reads state the worker has already computed.
type Stats struct {
	State              State
	TotalGenerations   int
	StartTime          time.Time
	LastGenerationTime time.Time
	Environment        environment.Stats
	RunID              string
}

// Summary renders the stats as a short human-readable line, the
// human-facing counterpart to the machine-facing struct above.
func (s Stats) Summary() string {
	elapsed := time.Duration(0)
	if !s.StartTime.IsZero() {
		elapsed = time.Since(s.StartTime)
	}
	rate := 0.0
	if elapsed > 0 {
		rate = float64(s.TotalGenerations) / elapsed.Hours()
	}
	return fmt.Sprintf(
		"run %s: %s, generation %s (%.1f/hr), population %s, best fitness %.3f, started %s",
		s.RunID,
		s.State,
		humanize.Comma(int64(s.TotalGenerations)),
		rate,
		humanize.Comma(int64(s.Environment.PopulationSize)),
		s.Environment.MaxFitness,
		humanize.Time(s.StartTime),
	)
}

// GetStats returns a snapshot of the engine's bookkeeping fields plus
// the environment's last-committed stats.
func (e *Engine) GetStats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		State:              e.state,
		TotalGenerations:   e.totalGenerations,
		StartTime:          e.startTime,
		LastGenerationTime: e.lastGenerationTime,
		Environment:        e.env.Stats(),
		RunID:              e.runID,
	}
}

func historyRecordFor(gen int, stats environment.Stats) storage.HistoryRecord {
	return storage.HistoryRecord{Generation: gen, Stats: stats}
}

func marshalStats(s Stats) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("engine: write %s: %w", path, err)
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("engine: read %s: %w", path, err)
	}
	return data, nil
}

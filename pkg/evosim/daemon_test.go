package evosim

import (
	"testing"

	"evosim/internal/config"
	"evosim/internal/storage"
)

func testConfig(t *testing.T, dir string) Config {
	t.Helper()
	envCfg := config.DefaultEnvironment()
	envCfg.MaxPopulation = 12
	envCfg.InitialPopulation = 8
	envCfg.MinPopulation = 4
	vmCfg := config.DefaultVM()
	vmCfg.ImageWidth = 16
	vmCfg.ImageHeight = 16
	vmCfg.MaxInstructions = 500
	engCfg := config.DefaultEngine()
	engCfg.SaveDirectory = dir
	engCfg.MaxGenerations = 2
	return Config{
		Environment: envCfg,
		VM:          vmCfg,
		Analyzer:    config.DefaultAnalyzer(),
		Engine:      engCfg,
	}
}

func TestDaemonRunsToCompletionAndReports(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewHistoryStore("memory", "")
	if err != nil {
		t.Fatalf("NewHistoryStore: %v", err)
	}

	d, err := New(testConfig(t, dir), 7, WithHistoryStore(store))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !d.Start() {
		t.Fatalf("Start: expected true")
	}
	if !d.eng.WaitForCompletion(5000) {
		t.Fatalf("engine did not complete in time")
	}

	if d.Stats().TotalGenerations < 2 {
		t.Fatalf("total generations = %d, want >= 2", d.Stats().TotalGenerations)
	}
	if len(d.Population()) == 0 {
		t.Fatalf("expected a non-empty population")
	}
	if d.BestOrganism() == nil {
		t.Fatalf("expected a best organism")
	}
	if d.Report() == "" {
		t.Fatalf("expected a non-empty report")
	}
}

func TestDaemonSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	d, err := New(testConfig(t, dir), 11)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.Start()
	d.eng.WaitForCompletion(5000)

	path := dir + "/export.json"
	if err := d.SaveState(path); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	other, err := New(testConfig(t, dir), 99)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := other.LoadState(path); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
}

// TestDaemonResumesAutomaticallyAcrossProcessRestart simulates a real
// restart: a second Daemon, sharing the same save directory and run id
// as the first but otherwise a brand-new process-level object, must
// pick up the first daemon's checkpoint on a plain (path-less) Start
// with no explicit LoadState call.
func TestDaemonResumesAutomaticallyAcrossProcessRestart(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	// Checkpoints are written only on the periodic save cadence; align it
	// with the generation cap so the first daemon leaves one behind.
	cfg.Engine.SaveIntervalGenerations = cfg.Engine.MaxGenerations

	first, err := New(cfg, 21, WithRunID("stable-run"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	first.Start()
	if !first.eng.WaitForCompletion(5000) {
		t.Fatalf("first daemon did not complete in time")
	}
	generationsBeforeRestart := first.Stats().TotalGenerations
	if generationsBeforeRestart == 0 {
		t.Fatalf("expected the first daemon to have advanced at least one generation")
	}

	second, err := New(cfg, 99, WithRunID("stable-run"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !second.Start() {
		t.Fatalf("Start: expected true")
	}
	if second.Stats().TotalGenerations < generationsBeforeRestart {
		t.Fatalf("second daemon did not resume from the first's checkpoint: generations = %d, want >= %d",
			second.Stats().TotalGenerations, generationsBeforeRestart)
	}
	second.Stop()
}

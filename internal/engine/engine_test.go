package engine

import (
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"evosim/internal/config"
	"evosim/internal/environment"
)

func testEnvironment(t *testing.T) *environment.Environment {
	t.Helper()
	envCfg := config.DefaultEnvironment()
	envCfg.MaxPopulation = 12
	envCfg.InitialPopulation = 8
	envCfg.MinPopulation = 4
	vmCfg := config.DefaultVM()
	vmCfg.ImageWidth = 16
	vmCfg.ImageHeight = 16
	vmCfg.MaxInstructions = 500
	analyzerCfg := config.DefaultAnalyzer()

	env, err := environment.New(envCfg, vmCfg, analyzerCfg, 42)
	if err != nil {
		t.Fatalf("environment.New: %v", err)
	}
	return env
}

func testEngineConfig(t *testing.T, dir string) config.Engine {
	t.Helper()
	cfg := config.DefaultEngine()
	cfg.SaveDirectory = dir
	cfg.SaveIntervalGenerations = 2
	cfg.BackupInterval = 2
	cfg.MetricsInterval = 2
	return cfg
}

func TestStartStopPauseResumeIdempotence(t *testing.T) {
	dir := t.TempDir()
	e, err := New(testEngineConfig(t, dir), testEnvironment(t), WithRunID("idempotence"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !e.Start() {
		t.Fatalf("Start: expected true on first call")
	}
	if e.Start() {
		t.Fatalf("Start: expected false when already running")
	}
	if e.Resume() {
		t.Fatalf("Resume: expected false when not paused")
	}
	if !e.Pause() {
		t.Fatalf("Pause: expected true when running")
	}
	if e.Pause() {
		t.Fatalf("Pause: expected false when already paused")
	}
	if !e.Resume() {
		t.Fatalf("Resume: expected true when paused")
	}
	if !e.Stop() {
		t.Fatalf("Stop: expected true when running")
	}
	if e.Stop() {
		t.Fatalf("Stop: expected false when already stopped")
	}
}

func TestStopNeverDeadlocksWhenCalledImmediatelyAfterStart(t *testing.T) {
	dir := t.TempDir()
	e, err := New(testEngineConfig(t, dir), testEnvironment(t), WithRunID("deadlock-check"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.Start()

	done := make(chan bool, 1)
	go func() { done <- e.Stop() }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop did not return: worker join deadlock")
	}
}

func TestMaxGenerationsAutoStops(t *testing.T) {
	dir := t.TempDir()
	cfg := testEngineConfig(t, dir)
	cfg.MaxGenerations = 3
	e, err := New(cfg, testEnvironment(t), WithRunID("max-gen"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.Start()
	if !e.WaitForCompletion(5000) {
		t.Fatalf("engine did not stop within timeout")
	}
	stats := e.GetStats()
	if stats.TotalGenerations < cfg.MaxGenerations {
		t.Fatalf("total generations = %d, want >= %d", stats.TotalGenerations, cfg.MaxGenerations)
	}
	if stats.State != Stopped {
		t.Fatalf("state = %v, want Stopped", stats.State)
	}
}

func TestEventHistoryIsBounded(t *testing.T) {
	dir := t.TempDir()
	cfg := testEngineConfig(t, dir)
	cfg.MaxGenerations = 0
	e, err := New(cfg, testEnvironment(t), WithRunID("history-bound"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < maxHistory+50; i++ {
		e.emit(EventGenerationCompleted, "")
	}
	history := e.GetHistory()
	if len(history) > maxHistory {
		t.Fatalf("history length = %d, want <= %d", len(history), maxHistory)
	}
}

func TestRegisterEventCallbackObservesEvents(t *testing.T) {
	dir := t.TempDir()
	cfg := testEngineConfig(t, dir)
	cfg.MaxGenerations = 2
	e, err := New(cfg, testEnvironment(t), WithRunID("callback"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var seen int64
	e.RegisterEventCallback(func(ev Event) {
		if ev.Type == EventGenerationCompleted {
			atomic.AddInt64(&seen, 1)
		}
	})

	e.Start()
	e.WaitForCompletion(5000)

	if atomic.LoadInt64(&seen) < int64(cfg.MaxGenerations) {
		t.Fatalf("saw %d generation-completed events, want >= %d", seen, cfg.MaxGenerations)
	}
}

func TestSaveStateLoadStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := testEngineConfig(t, dir)
	cfg.MaxGenerations = 2
	e, err := New(cfg, testEnvironment(t), WithRunID("save-load"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.Start()
	e.WaitForCompletion(5000)

	path := filepath.Join(dir, "explicit.json")
	if err := e.SaveState(path); err != nil {
		t.Fatalf("SaveState: %v", err)
	}

	loader, err := New(testEngineConfig(t, t.TempDir()), testEnvironment(t), WithRunID("save-load-target"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := loader.LoadState(path); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loader.GetStats().TotalGenerations != cfg.MaxGenerations {
		t.Fatalf("loaded generation = %d, want %d", loader.GetStats().TotalGenerations, cfg.MaxGenerations)
	}
}

func TestLoadStateRejectsRunningEngine(t *testing.T) {
	dir := t.TempDir()
	e, err := New(testEngineConfig(t, dir), testEnvironment(t), WithRunID("load-guard"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.Start()
	defer e.Stop()

	if err := e.LoadState(filepath.Join(dir, "checkpoint.json")); err == nil {
		t.Fatalf("expected LoadState to reject a running engine")
	}
}

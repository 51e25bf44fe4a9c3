// Package engine implements the evolution engine: it drives an
// Environment forward one generation at a time on a supervised
// background worker, exposes a start/stop/pause/resume lifecycle, and
// handles periodic checkpointing.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"evosim/internal/config"
	"evosim/internal/environment"
	"evosim/internal/platform"
	"evosim/internal/storage"
)

// Logger is the package-level logger the engine writes its warnings to:
// a checkpoint that fails to restore on Start, a failed periodic save or
// backup, and a failed history append. The embedding daemon may redirect
// it.
var Logger = slog.Default()

// State is the engine's lifecycle state.
type State int

const (
	Stopped State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

const (
	workerTaskName       = "worker"
	interGenerationSleep = 10 * time.Millisecond
	maxHistory           = 1000
)

// Engine drives an Environment forward on a supervised background
// worker. All exported methods are safe for concurrent use.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond

	cfg config.Engine
	env *environment.Environment

	fileStore    *storage.FileStore
	historyStore storage.HistoryStore
	runID        string

	state              State
	shouldStop         bool
	totalGenerations   int
	lastGenerationTime time.Time
	startTime          time.Time

	eventCallback func(Event)

	historyMu sync.Mutex
	history   []Event

	supervisor *platform.Supervisor
}

// Option configures optional collaborators on a new Engine.
type Option func(*Engine)

// WithHistoryStore attaches a durable HistoryStore the engine appends a
// summary to on every GENERATION_COMPLETED event.
func WithHistoryStore(store storage.HistoryStore) Option {
	return func(e *Engine) { e.historyStore = store }
}

// WithRunID overrides the engine's run correlation id (default: a
// timestamp-derived string), used to tag checkpoint backups and
// history-store rows.
func WithRunID(id string) Option {
	return func(e *Engine) { e.runID = id }
}

// New constructs a stopped Engine over env, configured by cfg.
func New(cfg config.Engine, env *environment.Environment, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:        cfg,
		env:        env,
		fileStore:  storage.NewFileStore(cfg.SaveDirectory),
		state:      Stopped,
		supervisor: platform.NewSupervisor(platform.SupervisorPolicy{}),
	}
	e.cond = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	if e.runID == "" {
		e.runID = fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return e, nil
}

// Start transitions Stopped -> Running. When EnableSaveState is set it
// first performs automatic resume from a checkpoint in the configured
// save directory if one exists. It is a
// no-op returning false if the engine is already running or paused.
func (e *Engine) Start() bool {
	e.mu.Lock()
	if e.state != Stopped {
		e.mu.Unlock()
		return false
	}
	e.state = Running
	e.shouldStop = false
	e.startTime = time.Now()
	e.mu.Unlock()

	if e.cfg.EnableSaveState {
		if cp, ok, err := e.fileStore.Load(); err == nil && ok {
			if restored, rerr := environment.Restore(cp); rerr == nil {
				e.env = restored
				e.mu.Lock()
				e.totalGenerations = cp.Generation
				e.mu.Unlock()
			} else {
				Logger.Warn("engine: failed to restore checkpoint, starting fresh", "error", rerr)
			}
		}
	}

	e.emit(EventStarted, "engine started")

	_ = e.supervisor.StartSpec(platform.SupervisorChildSpec{
		Name:    workerTaskName,
		Restart: platform.SupervisorRestartTransient,
	}, e.runWorker)
	return true
}

// Stop transitions any state to Stopped. It never joins the worker
// goroutine: the worker observes shouldStop (or the max-generation cap)
// and exits on its own at the next phase boundary, which is what lets an
// external caller and the worker itself both call Stop-like logic
// without either one deadlocking waiting for the other to exit.
func (e *Engine) Stop() bool {
	e.mu.Lock()
	if e.state == Stopped {
		e.mu.Unlock()
		return false
	}
	e.shouldStop = true
	e.state = Stopped
	e.cond.Broadcast()
	e.mu.Unlock()

	e.emit(EventStopped, "engine stopped")
	return true
}

// Pause transitions Running -> Paused. No-op if not running.
func (e *Engine) Pause() bool {
	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return false
	}
	e.state = Paused
	e.mu.Unlock()
	e.emit(EventPaused, "engine paused")
	return true
}

// Resume transitions Paused -> Running. No-op if not paused.
func (e *Engine) Resume() bool {
	e.mu.Lock()
	if e.state != Paused {
		e.mu.Unlock()
		return false
	}
	e.state = Running
	e.cond.Broadcast()
	e.mu.Unlock()
	e.emit(EventResumed, "engine resumed")
	return true
}

// WaitForCompletion polls until the engine is not running, or the
// timeout elapses. It returns true if the engine reached a non-running
// state before the deadline.
func (e *Engine) WaitForCompletion(timeoutMs int) bool {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		e.mu.Lock()
		state := e.state
		e.mu.Unlock()
		if state == Stopped {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (e *Engine) currentState() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SaveState checkpoints the environment to path, or the configured
// checkpoint.json if path is empty.
func (e *Engine) SaveState(path string) error {
	cp := e.env.Snapshot()
	if path == "" {
		return e.fileStore.Save(cp)
	}
	data, err := storage.EncodeCheckpoint(cp)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// LoadState restores the environment from path. The engine must be
// stopped.
func (e *Engine) LoadState(path string) error {
	if e.currentState() != Stopped {
		return fmt.Errorf("engine: load_state requires the engine to be stopped")
	}
	data, err := readFile(path)
	if err != nil {
		return err
	}
	cp, err := storage.DecodeCheckpoint(data)
	if err != nil {
		return err
	}
	restored, err := environment.Restore(cp)
	if err != nil {
		return err
	}
	e.env = restored
	e.mu.Lock()
	e.totalGenerations = cp.Generation
	e.mu.Unlock()
	return nil
}

// ExportData writes a summary-stats record (no population detail) to
// path.
func (e *Engine) ExportData(path string) error {
	stats := e.GetStats()
	data, err := marshalStats(stats)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// RegisterEventCallback installs cb to be invoked on every lifecycle and
// generation event.
func (e *Engine) RegisterEventCallback(cb func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eventCallback = cb
}

// UnregisterEventCallback removes any installed event callback.
func (e *Engine) UnregisterEventCallback() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eventCallback = nil
}

// Environment returns the environment this engine drives.
func (e *Engine) Environment() *environment.Environment {
	return e.env
}

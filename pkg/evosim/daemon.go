// Package evosim is the public facade over the evolutionary art core: a
// Daemon wraps one engine.Engine driving one environment.Environment,
// exposing the engine control surface and environment query surface as
// a single handle an embedding process can hold.
package evosim

import (
	"fmt"

	"github.com/google/uuid"

	"evosim/internal/config"
	"evosim/internal/engine"
	"evosim/internal/environment"
	"evosim/internal/organism"
	"evosim/internal/storage"
)

// Daemon is the top-level handle an embedding process holds: one engine
// driving one environment.
type Daemon struct {
	eng *engine.Engine
	env *environment.Environment
}

// Config bundles the four configuration records the daemon's
// constructors need, matching spec.md's Configuration records surface.
type Config struct {
	Environment config.Environment
	VM          config.VM
	Analyzer    config.Analyzer
	Engine      config.Engine
}

// Option configures optional collaborators on a new Daemon.
type Option func(*daemonOptions)

type daemonOptions struct {
	runID string
	store storage.HistoryStore
}

// WithRunID gives the daemon a stable run id, used to key history-store
// rows and to name checkpoint backup files. Callers that need automatic
// resume across process restarts to correlate history with the run that
// wrote it (the checkpoint file itself is found by well-known name, not
// by run id — see internal/storage.FileStore) must supply the same
// run id on every restart; without this option a new random one is
// generated on every call to New.
func WithRunID(id string) Option {
	return func(o *daemonOptions) { o.runID = id }
}

// WithHistoryStore attaches a durable HistoryStore the daemon's engine
// appends a summary to on every completed generation.
func WithHistoryStore(store storage.HistoryStore) Option {
	return func(o *daemonOptions) { o.store = store }
}

// New constructs a stopped Daemon: a fresh Environment seeded from cfg
// and seed, wrapped by a fresh Engine. Without WithRunID, a new random
// run id is generated on every call, so pass WithRunID with a stable
// value when the embedding process expects automatic resume to
// correlate history across a restart.
func New(cfg Config, seed int64, opts ...Option) (*Daemon, error) {
	options := daemonOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.runID == "" {
		options.runID = uuid.NewString()
	}

	env, err := environment.New(cfg.Environment, cfg.VM, cfg.Analyzer, seed)
	if err != nil {
		return nil, fmt.Errorf("evosim: %w", err)
	}
	engOpts := []engine.Option{engine.WithRunID(options.runID)}
	if options.store != nil {
		engOpts = append(engOpts, engine.WithHistoryStore(options.store))
	}
	eng, err := engine.New(cfg.Engine, env, engOpts...)
	if err != nil {
		return nil, fmt.Errorf("evosim: %w", err)
	}
	return &Daemon{eng: eng, env: env}, nil
}

// Start starts the underlying engine. No-op returning false if already
// running or paused.
func (d *Daemon) Start() bool { return d.eng.Start() }

// Stop stops the underlying engine. No-op returning false if already
// stopped.
func (d *Daemon) Stop() bool { return d.eng.Stop() }

// Pause pauses the underlying engine. No-op returning false if not
// running.
func (d *Daemon) Pause() bool { return d.eng.Pause() }

// Resume resumes the underlying engine. No-op returning false if not
// paused.
func (d *Daemon) Resume() bool { return d.eng.Resume() }

// Stats returns the engine's current lifecycle and generation stats.
func (d *Daemon) Stats() engine.Stats { return d.eng.GetStats() }

// SaveState checkpoints the environment to path, or the engine's
// configured checkpoint file if path is empty.
func (d *Daemon) SaveState(path string) error { return d.eng.SaveState(path) }

// LoadState restores the environment from path. The daemon must be
// stopped.
func (d *Daemon) LoadState(path string) error { return d.eng.LoadState(path) }

// Environment returns the environment handle this daemon drives.
func (d *Daemon) Environment() *environment.Environment { return d.env }

// History returns a defensive copy of the engine's lifecycle and
// generation event log.
func (d *Daemon) History() []engine.Event { return d.eng.GetHistory() }

// ClearHistory discards the engine's recorded event log.
func (d *Daemon) ClearHistory() { d.eng.ClearHistory() }

// Population returns every living organism keyed by id.
func (d *Daemon) Population() map[uint64]*organism.Organism { return d.env.Population() }

// Organism looks up a single organism by id.
func (d *Daemon) Organism(id uint64) (*organism.Organism, bool) { return d.env.Organism(id) }

// TopFittest returns up to count organisms ordered by descending
// fitness.
func (d *Daemon) TopFittest(count int) []*organism.Organism { return d.env.GetTopFittest(count) }

// BestOrganism returns the single fittest living organism, or nil if
// the population is empty.
func (d *Daemon) BestOrganism() *organism.Organism { return d.env.GetBestOrganism() }

// OrganismStats returns a Stats record for every living organism.
func (d *Daemon) OrganismStats() []organism.Stats { return d.env.GetOrganismStats() }

// FullConfig returns the environment's environment/VM/analyzer
// configuration records.
func (d *Daemon) FullConfig() (config.Environment, config.VM, config.Analyzer) {
	return d.env.FullConfig()
}

// Report renders a short human-readable status line combining engine
// and population stats.
func (d *Daemon) Report() string {
	envStats := d.env.Stats()
	best := d.env.GetBestOrganism()
	bestID := "none"
	if best != nil {
		bestID = fmt.Sprintf("%d", best.ID())
	}
	return fmt.Sprintf("%s | generation %d, population %d, best organism %s",
		d.Stats().Summary(), envStats.Generation, envStats.PopulationSize, bestID)
}

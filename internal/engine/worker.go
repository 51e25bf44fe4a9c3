package engine

import (
	"context"
	"time"
)

// runWorker is the supervised background loop: while running and not
// should-stop, wait out a pause or run exactly one generation, emit its
// completion event, and perform any periodic tasks due this generation.
// It returns nil on a clean stop and a non-nil error only if the
// generation update itself failed unrecoverably (surfaced as an
// ERROR_OCCURRED event); the supervisor restarts the worker in that case.
func (e *Engine) runWorker(ctx context.Context) error {
	for {
		e.mu.Lock()
		for e.state == Paused && !e.shouldStop {
			e.cond.Wait()
		}
		stop := e.shouldStop
		e.mu.Unlock()

		if stop || ctx.Err() != nil {
			return nil
		}

		if err := e.env.Update(); err != nil {
			e.emit(EventError, err.Error())
			return err
		}

		e.mu.Lock()
		e.totalGenerations++
		e.lastGenerationTime = time.Now()
		gen := e.totalGenerations
		e.mu.Unlock()

		e.emit(EventGenerationCompleted, "")
		e.recordHistory(gen)
		e.runPeriodicTasks(gen)

		if e.cfg.MaxGenerations > 0 && gen >= e.cfg.MaxGenerations {
			e.mu.Lock()
			e.shouldStop = true
			e.state = Stopped
			e.mu.Unlock()
			e.emit(EventStopped, "max generations reached")
			return nil
		}

		time.Sleep(interGenerationSleep)
	}
}

func (e *Engine) runPeriodicTasks(gen int) {
	if e.cfg.EnableSaveState && e.cfg.SaveIntervalGenerations > 0 && gen%e.cfg.SaveIntervalGenerations == 0 {
		if err := e.SaveState(""); err != nil {
			Logger.Warn("engine: periodic checkpoint save failed", "generation", gen, "error", err)
		}
	}
	if e.cfg.EnableBackup && e.cfg.BackupInterval > 0 && gen%e.cfg.BackupInterval == 0 {
		if err := e.fileStore.Backup(e.runID, gen); err != nil {
			Logger.Warn("engine: periodic checkpoint backup failed", "generation", gen, "error", err)
		}
	}
	if e.cfg.EnableMetrics && e.cfg.MetricsInterval > 0 && gen%e.cfg.MetricsInterval == 0 {
		// Metrics collection has no sink in this module; the hook exists so
		// an embedding daemon's registered event callback can react to
		// GENERATION_COMPLETED events on the same cadence.
	}
}

func (e *Engine) recordHistory(gen int) {
	if e.historyStore == nil {
		return
	}
	stats := e.env.Stats()
	record := historyRecordFor(gen, stats)
	if err := e.historyStore.AppendHistory(context.Background(), e.runID, record); err != nil {
		Logger.Warn("engine: failed to append generation history", "generation", gen, "error", err)
	}
}

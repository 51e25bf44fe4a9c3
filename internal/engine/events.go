package engine

import "time"

// EventType identifies the kind of lifecycle or generation event that
// occurred on the engine.
type EventType string

const (
	EventStarted             EventType = "STARTED"
	EventStopped             EventType = "STOPPED"
	EventPaused              EventType = "PAUSED"
	EventResumed             EventType = "RESUMED"
	EventGenerationCompleted EventType = "GENERATION_COMPLETED"
	EventError               EventType = "ERROR_OCCURRED"
)

// Event is a single entry in the engine's event history.
type Event struct {
	Type      EventType
	Message   string
	Timestamp time.Time
}

// emit appends an event to the bounded history (dropping the oldest
// entry once maxHistory is reached) and, if one is registered, invokes
// the event callback outside the history lock.
func (e *Engine) emit(t EventType, message string) {
	ev := Event{Type: t, Message: message, Timestamp: time.Now()}

	e.historyMu.Lock()
	e.history = append(e.history, ev)
	if len(e.history) > maxHistory {
		e.history = e.history[len(e.history)-maxHistory:]
	}
	e.historyMu.Unlock()

	e.mu.Lock()
	cb := e.eventCallback
	e.mu.Unlock()
	if cb != nil {
		cb(ev)
	}
}

// GetHistory returns a defensive copy of the engine's event history.
func (e *Engine) GetHistory() []Event {
	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	out := make([]Event, len(e.history))
	copy(out, e.history)
	return out
}

// ClearHistory discards all recorded events.
func (e *Engine) ClearHistory() {
	e.historyMu.Lock()
	e.history = nil
	e.historyMu.Unlock()
}

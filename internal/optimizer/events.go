package optimizer

import "time"

// EventType classifies progress events emitted during a run.
type EventType string

const (
	// EventPhase marks a pipeline phase starting or completing.
	EventPhase EventType = "phase"
	// EventInfo carries a human-readable progress message.
	EventInfo EventType = "info"
	// EventError reports a failed run.
	EventError EventType = "error"
	// EventResult carries the final optimization result.
	EventResult EventType = "result"
)

// Event is one progress update. Events are emitted synchronously from the
// pipeline goroutine; sinks must not block.
type Event struct {
	Type      EventType      `json:"type"`
	Phase     string         `json:"phase,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// EventFunc receives progress events.
type EventFunc func(Event)

func (o *Optimizer) emit(typ EventType, phase, message string, data map[string]any) {
	if o.events == nil {
		return
	}
	o.events(Event{
		Type:      typ,
		Phase:     phase,
		Message:   message,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

package wikiloop

import (
	"sync"
	"time"
)

// EventKind identifies the type of run event.
type EventKind string

const (
	EventText       EventKind = "text"
	EventWarning    EventKind = "warning"
	EventSpanStart  EventKind = "span_start"
	EventSpanFinish EventKind = "span_finish"
	EventSummary    EventKind = "summary"
)

// Summary is the terminal structured record of a run, built from the
// last-observed usage snapshot (zero values when no usage was observed).
type Summary struct {
	TotalPrice  float64 `json:"total_price"`
	Currency    string  `json:"currency"`
	TotalTokens int     `json:"total_tokens"`
}

// RunEvent is one entry in the run's transcript stream: incremental response
// text, a telemetry span boundary, or the terminal summary.
type RunEvent struct {
	Kind      EventKind   `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	RunID     string      `json:"run_id"`
	Text      string      `json:"text,omitempty"`
	Span      *SpanRecord `json:"span,omitempty"`
	Summary   *Summary    `json:"summary,omitempty"`
}

// EventEmitter delivers run events to the host application via a channel.
// Emission is observational: a full buffer drops the event rather than
// blocking the loop.
type EventEmitter struct {
	runID  string
	ch     chan RunEvent
	closed bool
	mu     sync.Mutex
}

// NewEventEmitter creates an EventEmitter with a buffered channel.
func NewEventEmitter(runID string, bufferSize int) *EventEmitter {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &EventEmitter{
		runID: runID,
		ch:    make(chan RunEvent, bufferSize),
	}
}

// Emit sends an event to the channel. Events are silently dropped after
// Close or when the buffer is full.
func (e *EventEmitter) Emit(event RunEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	event.Timestamp = time.Now()
	event.RunID = e.runID
	select {
	case e.ch <- event:
	default:
		// Channel full; drop rather than stall the loop.
	}
}

// EmitText sends an incremental text event.
func (e *EventEmitter) EmitText(text string) {
	e.Emit(RunEvent{Kind: EventText, Text: text})
}

// EmitWarning sends a warning text event.
func (e *EventEmitter) EmitWarning(text string) {
	e.Emit(RunEvent{Kind: EventWarning, Text: text})
}

// EmitSummary sends the terminal summary event.
func (e *EventEmitter) EmitSummary(summary Summary) {
	e.Emit(RunEvent{Kind: EventSummary, Summary: &summary})
}

// Events returns the read-only event channel.
func (e *EventEmitter) Events() <-chan RunEvent {
	return e.ch
}

// Close closes the event channel. Safe to call multiple times.
func (e *EventEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}

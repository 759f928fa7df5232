package wikiloop

import (
	"time"

	"github.com/google/uuid"
)

// Metadata keys carried on span records.
const (
	MetaStartedAt   = "started_at"
	MetaFinishedAt  = "finished_at"
	MetaElapsedTime = "elapsed_time"
	MetaProvider    = "provider"
	MetaTotalPrice  = "total_price"
	MetaCurrency    = "currency"
	MetaTotalTokens = "total_tokens"
)

// Span is a timed telemetry record with an optional parent, forming a tree
// rooted at a round (children: model call, tool call). Parent linkage is an
// explicit reference rather than structural nesting so spans can be emitted
// incrementally as they start and finish.
type Span struct {
	ID        string
	Label     string
	Parent    *Span
	StartedAt time.Time
}

// SpanRecord is the emitted form of a span boundary.
type SpanRecord struct {
	SpanID   string         `json:"span_id"`
	ParentID string         `json:"parent_id,omitempty"`
	Label    string         `json:"label"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Recorder emits hierarchical start/finish spans to the transcript stream.
// Spans are purely observational; failure to emit never alters control flow.
type Recorder struct {
	emitter *EventEmitter
}

// NewRecorder creates a Recorder emitting through the given emitter.
func NewRecorder(emitter *EventEmitter) *Recorder {
	return &Recorder{emitter: emitter}
}

// StartSpan opens a span and emits its start record.
func (r *Recorder) StartSpan(label string, parent *Span, data map[string]any) *Span {
	span := &Span{
		ID:        uuid.New().String(),
		Label:     label,
		Parent:    parent,
		StartedAt: time.Now(),
	}
	record := &SpanRecord{
		SpanID: span.ID,
		Label:  label,
		Data:   data,
		Metadata: map[string]any{
			MetaStartedAt: span.StartedAt,
		},
	}
	if parent != nil {
		record.ParentID = parent.ID
	}
	r.emitter.Emit(RunEvent{Kind: EventSpanStart, Span: record})
	return span
}

// FinishSpan emits the finish record for a span, stamping finish time and
// elapsed duration alongside any caller-supplied metadata.
func (r *Recorder) FinishSpan(span *Span, data map[string]any, metadata map[string]any) {
	finishedAt := time.Now()
	meta := map[string]any{
		MetaStartedAt:   span.StartedAt,
		MetaFinishedAt:  finishedAt,
		MetaElapsedTime: finishedAt.Sub(span.StartedAt),
	}
	for k, v := range metadata {
		meta[k] = v
	}
	record := &SpanRecord{
		SpanID:   span.ID,
		Label:    span.Label,
		Data:     data,
		Metadata: meta,
	}
	if span.Parent != nil {
		record.ParentID = span.Parent.ID
	}
	r.emitter.Emit(RunEvent{Kind: EventSpanFinish, Span: record})
}

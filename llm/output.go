package llm

// Chunk is one incremental fragment of a streamed model result. A fragment
// may carry any combination of content deltas, tool-call fragments, and a
// usage snapshot, or a terminal error.
type Chunk struct {
	// ContentDeltas holds zero or more content pieces in emission order.
	ContentDeltas []string

	// ToolCalls holds zero or more tool-call fragments with arguments
	// already parsed by the backend.
	ToolCalls []ToolCall

	// Usage, when non-nil, is a snapshot for the invocation so far.
	// Later snapshots overwrite earlier ones; they are never merged.
	Usage *Usage

	// Err, when non-nil, ends the sequence. A fragment carrying an error
	// carries nothing else; the invocation is fatal to the run.
	Err error
}

// RawToolCall carries a tool call whose arguments are still in serialized
// form. Atomic results deliver tool calls this way; parsing happens during
// aggregation.
type RawToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Result is one atomic model result.
type Result struct {
	// Text is the full response text when the backend returns scalar
	// content.
	Text string

	// Pieces holds ordered content pieces when the backend returns
	// segmented content. When non-empty it takes precedence over Text.
	Pieces []string

	// ToolCalls holds tool calls with serialized argument payloads.
	ToolCalls []RawToolCall

	Usage *Usage
}

// ContentPieces returns the result content as an ordered piece sequence so
// atomic results produce the same piece-by-piece emission as streamed ones.
func (r *Result) ContentPieces() []string {
	if len(r.Pieces) > 0 {
		return r.Pieces
	}
	if r.Text == "" {
		return nil
	}
	return []string{r.Text}
}

// ModelOutput is a tagged variant over the two shapes a model invocation can
// produce: a lazy, finite, non-restartable fragment sequence, or one atomic
// result. Exactly one field is set.
type ModelOutput struct {
	Stream <-chan Chunk
	Result *Result
}

// StreamOutput wraps a fragment sequence as a ModelOutput.
func StreamOutput(ch <-chan Chunk) ModelOutput {
	return ModelOutput{Stream: ch}
}

// AtomicOutput wraps an atomic result as a ModelOutput.
func AtomicOutput(r *Result) ModelOutput {
	return ModelOutput{Result: r}
}

// IsStream reports whether the output is the lazy fragment shape.
func (o ModelOutput) IsStream() bool {
	return o.Stream != nil
}

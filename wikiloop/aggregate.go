package wikiloop

import (
	"encoding/json"
	"strings"

	"github.com/martinemde/deepwiki/llm"
)

// Aggregate is the reconstructed outcome of one model invocation.
type Aggregate struct {
	// Text is the full response text, rebuilt from content pieces.
	Text string

	// ToolCalls holds the tool calls observed, in arrival order, with
	// arguments parsed into their mapping form.
	ToolCalls []llm.ToolCall

	// Usage is the latest usage snapshot observed, or nil.
	Usage *llm.Usage

	// HadToolCalls is true iff at least one tool-call fragment or entry
	// was observed in either output shape.
	HadToolCalls bool
}

// ToolCallNames returns the called tool names joined by ";" for telemetry.
func (a *Aggregate) ToolCallNames() string {
	names := make([]string, len(a.ToolCalls))
	for i, tc := range a.ToolCalls {
		names[i] = tc.Name
	}
	return strings.Join(names, ";")
}

// AggregateOutput consumes a model output of either shape, reconstructing
// the full response text, collecting tool calls, and tracking usage. Each
// content piece is forwarded to emit as it is processed; this is the only
// way partial text reaches the caller before the round ends.
//
// The lazy shape is consumed as a cooperative single-consumer pull: each
// fragment is fully processed before the next is requested. A terminal
// error fragment and a malformed tool-call argument payload are both fatal;
// no partial tool call is retained.
func AggregateOutput(output llm.ModelOutput, emit func(string)) (*Aggregate, error) {
	if output.IsStream() {
		return aggregateStream(output.Stream, emit)
	}
	return aggregateAtomic(output.Result, emit)
}

func aggregateStream(chunks <-chan llm.Chunk, emit func(string)) (*Aggregate, error) {
	agg := &Aggregate{}
	var text strings.Builder

	for chunk := range chunks {
		if chunk.Err != nil {
			// A terminal error is fatal to the run; the backend closes the
			// sequence after it, so draining here cannot block.
			for range chunks {
			}
			return nil, chunk.Err
		}
		if len(chunk.ToolCalls) > 0 {
			agg.HadToolCalls = true
			agg.ToolCalls = append(agg.ToolCalls, chunk.ToolCalls...)
		}
		for _, delta := range chunk.ContentDeltas {
			text.WriteString(delta)
			emit(delta)
		}
		if chunk.Usage != nil {
			// Snapshots overwrite; they are never merged.
			agg.Usage = chunk.Usage
		}
	}

	agg.Text = text.String()
	return agg, nil
}

func aggregateAtomic(result *llm.Result, emit func(string)) (*Aggregate, error) {
	agg := &Aggregate{Usage: result.Usage}
	var text strings.Builder

	// Split into the same piece-by-piece emission as the streamed shape so
	// the transcript looks identical either way.
	for _, piece := range result.ContentPieces() {
		text.WriteString(piece)
		emit(piece)
	}
	agg.Text = text.String()

	for _, raw := range result.ToolCalls {
		agg.HadToolCalls = true
		args := make(map[string]any)
		if err := json.Unmarshal([]byte(raw.Arguments), &args); err != nil {
			return nil, &llm.InvalidToolArgumentsError{
				SDKError: llm.SDKError{
					Message: "malformed tool call arguments for " + raw.Name,
					Cause:   err,
				},
				ToolName: raw.Name,
			}
		}
		agg.ToolCalls = append(agg.ToolCalls, llm.ToolCall{
			ID:           raw.ID,
			Name:         raw.Name,
			Arguments:    args,
			RawArguments: raw.Arguments,
		})
	}

	return agg, nil
}

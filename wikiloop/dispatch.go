package wikiloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/martinemde/deepwiki/llm"
)

// ToolResult is the concatenated textual outcome of one executed tool call,
// correlated to the call by round and name.
type ToolResult struct {
	ToolName string `json:"tool_name"`
	Content  string `json:"content"`
}

// Dispatcher resolves tool calls against the run's registry and executes
// them through the external tool-execution interface.
type Dispatcher struct {
	registry *ToolRegistry
	invoker  ToolInvoker
	recorder *Recorder
}

// NewDispatcher creates a Dispatcher over an immutable registry.
func NewDispatcher(registry *ToolRegistry, invoker ToolInvoker, recorder *Recorder) *Dispatcher {
	return &Dispatcher{registry: registry, invoker: invoker, recorder: recorder}
}

// Dispatch executes calls sequentially in discovery order; there is no
// parallel fan-out and no reordering. A call naming an unregistered tool is
// silently skipped: no result, no error, no telemetry span. An error raised
// by a registered tool is recorded as that call's span outcome and the
// remaining calls still run.
//
// Every executed call appends one synthetic assistant thought of the form
// "Tool <name> result: <result>" to the store for the next round's prompt.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []llm.ToolCall, round *Span, store *MessageStore) []ToolResult {
	var results []ToolResult

	for _, call := range calls {
		instance, ok := d.registry.Get(call.Name)
		if !ok {
			// Speculative tool names from the model are dropped without
			// an error; downstream callers depend on lenient handling.
			continue
		}

		span := d.recorder.StartSpan("Tool: "+call.Name, round, map[string]any{
			"tool_name": call.Name,
			"arguments": call.Arguments,
		})

		content, err := d.executeCall(ctx, instance, call)
		if err != nil {
			d.recorder.FinishSpan(span, map[string]any{
				"tool_name": call.Name,
				"error":     err.Error(),
			}, nil)
			continue
		}

		store.AppendThought(llm.AssistantMessage(
			fmt.Sprintf("Tool %s result: %s", call.Name, content)))

		d.recorder.FinishSpan(span, map[string]any{
			"tool_name": call.Name,
			"result":    TruncateResult(content, DefaultResultLimit),
		}, nil)

		results = append(results, ToolResult{ToolName: call.Name, Content: content})
	}

	return results
}

// executeCall invokes one tool and concatenates its result fragments: text
// fragments verbatim, structured-data fragments serialized, in arrival
// order.
func (d *Dispatcher) executeCall(ctx context.Context, instance ToolInstance, call llm.ToolCall) (string, error) {
	chunks, err := d.invoker.Invoke(ctx, instance.ProviderType, instance.Provider, call.Name, call.Arguments)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for chunk := range chunks {
		switch chunk.Type {
		case ToolChunkText:
			sb.WriteString(chunk.Text)
		case ToolChunkJSON:
			serialized, err := json.Marshal(chunk.JSON)
			if err != nil {
				drain(chunks)
				return "", fmt.Errorf("serializing %s result: %w", call.Name, err)
			}
			sb.Write(serialized)
		case ToolChunkError:
			drain(chunks)
			return "", chunk.Err
		}
	}
	return sb.String(), nil
}

// drain consumes the remainder of a fragment sequence so its producer can
// finish; abandoning the channel mid-sequence would block the producer on
// its next send.
func drain(chunks <-chan ToolChunk) {
	for range chunks {
	}
}

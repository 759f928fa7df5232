package wikiloop

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/martinemde/deepwiki/llm"
)

// scriptedInvoker returns one scripted output per round, recording the
// prompt sent each time.
type scriptedInvoker struct {
	outputs []llm.ModelOutput
	errs    []error
	calls   int
	prompts [][]llm.Message
	streams []bool
}

func (s *scriptedInvoker) Invoke(_ context.Context, _ llm.ModelConfig, messages []llm.Message, _ []string, stream bool, _ []llm.ToolSchema) (llm.ModelOutput, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, messages)
	s.streams = append(s.streams, stream)
	if i < len(s.errs) && s.errs[i] != nil {
		return llm.ModelOutput{}, s.errs[i]
	}
	if i >= len(s.outputs) {
		return llm.AtomicOutput(&llm.Result{Text: "done"}), nil
	}
	return s.outputs[i], nil
}

func atomicWithCalls(text string, usage *llm.Usage, calls ...llm.RawToolCall) llm.ModelOutput {
	return llm.AtomicOutput(&llm.Result{Text: text, ToolCalls: calls, Usage: usage})
}

func validParams() Params {
	return Params{
		RepositoryURL: "https://github.com/acme/widget",
		AnalysisDepth: "standard",
		Model:         llm.ModelConfig{Provider: "openai", Model: "gpt-4"},
		Tools:         []ToolInstance{localInstance("search")},
	}
}

func runAndCollect(t *testing.T, runner *Runner, params Params) ([]RunEvent, error) {
	t.Helper()
	err := runner.Run(context.Background(), params)
	var events []RunEvent
	for ev := range runner.Events() {
		events = append(events, ev)
	}
	return events, err
}

func eventsOfKind(events []RunEvent, kind EventKind) []RunEvent {
	var out []RunEvent
	for _, ev := range events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestRunAtomicToolRound(t *testing.T) {
	invoker := &scriptedInvoker{outputs: []llm.ModelOutput{
		atomicWithCalls("Let me search.", &llm.Usage{TotalTokens: 10, Currency: "USD"},
			llm.RawToolCall{ID: "c1", Name: "search", Arguments: `{"q": "readme"}`}),
		atomicWithCalls("Here is the documentation.", &llm.Usage{TotalTokens: 30, TotalPrice: 0.02, Currency: "USD"}),
	}}
	toolInvoker := &fakeToolInvoker{chunks: map[string][]ToolChunk{
		"search": {{Type: ToolChunkText, Text: "README.md found"}},
	}}

	runner := NewRunner(invoker, toolInvoker, DefaultConfig())
	events, err := runAndCollect(t, runner, validParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if runner.State() != StateComplete {
		t.Errorf("State = %s, want complete", runner.State())
	}
	if runner.Rounds() != 2 {
		t.Errorf("Rounds = %d, want 2", runner.Rounds())
	}

	// Second-round prompt carries the first round's thoughts in order:
	// assistant response first, then the tool result.
	if invoker.calls != 2 {
		t.Fatalf("invoker called %d times, want 2", invoker.calls)
	}
	prompt := invoker.prompts[1]
	if len(prompt) != 4 {
		t.Fatalf("round 2 prompt has %d messages, want 4", len(prompt))
	}
	if prompt[0].Role != llm.RoleSystem {
		t.Error("prompt does not start with the system message")
	}
	if prompt[2].Content != "Let me search." {
		t.Errorf("prompt[2] = %q, want the assistant response", prompt[2].Content)
	}
	if prompt[3].Content != "Tool search result: README.md found" {
		t.Errorf("prompt[3] = %q, want the tool result thought", prompt[3].Content)
	}

	// Latest usage snapshot wins.
	if usage := runner.Usage(); usage == nil || usage.TotalTokens != 30 {
		t.Errorf("Usage = %+v, want the round 2 snapshot", usage)
	}

	summaries := eventsOfKind(events, EventSummary)
	if len(summaries) != 1 {
		t.Fatalf("got %d summary events, want 1", len(summaries))
	}
	s := summaries[0].Summary
	if s.TotalTokens != 30 || s.TotalPrice != 0.02 || s.Currency != "USD" {
		t.Errorf("Summary = %+v", s)
	}

	if warnings := eventsOfKind(events, EventWarning); len(warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", warnings)
	}
}

func TestRunStreamedToolRound(t *testing.T) {
	invoker := &scriptedInvoker{outputs: []llm.ModelOutput{
		streamOf(
			llm.Chunk{ContentDeltas: []string{"Hello"}},
			llm.Chunk{ContentDeltas: []string{" world"}},
			llm.Chunk{
				ToolCalls: []llm.ToolCall{{ID: "c1", Name: "search", Arguments: map[string]any{"q": "x"}}},
				Usage:     &llm.Usage{TotalTokens: 5},
			},
		),
		streamOf(llm.Chunk{ContentDeltas: []string{"Final answer."}}),
	}}
	toolInvoker := &fakeToolInvoker{chunks: map[string][]ToolChunk{
		"search": {{Type: ToolChunkText, Text: "hit"}},
	}}

	params := validParams()
	params.Model.StreamToolCalls = true

	runner := NewRunner(invoker, toolInvoker, DefaultConfig())
	events, err := runAndCollect(t, runner, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !invoker.streams[0] {
		t.Error("stream flag not forwarded to the invoker")
	}

	var transcript strings.Builder
	for _, ev := range eventsOfKind(events, EventText) {
		transcript.WriteString(ev.Text)
	}
	text := transcript.String()
	if !strings.Contains(text, "Hello world") {
		t.Errorf("transcript missing streamed deltas: %q", text)
	}
	if !strings.Contains(text, "**Analysis Round 1**") || !strings.Contains(text, "**Analysis Round 2**") {
		t.Error("transcript missing round markers")
	}
	if !strings.Contains(text, "**Analysis Complete**") {
		t.Error("transcript missing completion marker")
	}

	prompt := invoker.prompts[1]
	if prompt[2].Content != "Hello world" {
		t.Errorf("streamed text not stored as a thought: %q", prompt[2].Content)
	}
}

func TestRunStopsWithoutToolCalls(t *testing.T) {
	invoker := &scriptedInvoker{outputs: []llm.ModelOutput{
		atomicWithCalls("Direct answer.", nil),
	}}
	runner := NewRunner(invoker, &fakeToolInvoker{}, DefaultConfig())

	events, err := runAndCollect(t, runner, validParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if runner.Rounds() != 1 {
		t.Errorf("Rounds = %d, want 1", runner.Rounds())
	}

	// No usage observed: the summary still fires, zero-valued.
	summaries := eventsOfKind(events, EventSummary)
	if len(summaries) != 1 {
		t.Fatalf("got %d summary events, want 1", len(summaries))
	}
	if *summaries[0].Summary != (Summary{}) {
		t.Errorf("Summary = %+v, want zero values", summaries[0].Summary)
	}
}

func TestRunHitsIterationCap(t *testing.T) {
	call := llm.RawToolCall{ID: "c", Name: "search", Arguments: `{}`}
	invoker := &scriptedInvoker{outputs: []llm.ModelOutput{
		atomicWithCalls("r1", nil, call),
		atomicWithCalls("r2", nil, call),
		atomicWithCalls("r3", nil, call),
	}}
	toolInvoker := &fakeToolInvoker{chunks: map[string][]ToolChunk{
		"search": {{Type: ToolChunkText, Text: "hit"}},
	}}

	params := validParams()
	params.MaximumIterations = 2

	runner := NewRunner(invoker, toolInvoker, DefaultConfig())
	events, err := runAndCollect(t, runner, params)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if runner.Rounds() != 2 {
		t.Errorf("Rounds = %d, want cap of 2", runner.Rounds())
	}
	if invoker.calls != 2 {
		t.Errorf("invoker called %d times, want 2", invoker.calls)
	}
	// The final round's tool calls still execute before the run ends.
	if len(toolInvoker.invoked) != 2 {
		t.Errorf("tools invoked %d times, want 2", len(toolInvoker.invoked))
	}

	warnings := eventsOfKind(events, EventWarning)
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	if !strings.Contains(warnings[0].Text, "Reached maximum iterations (2)") {
		t.Errorf("warning text = %q", warnings[0].Text)
	}
}

func TestRunInvokerErrorIsFatal(t *testing.T) {
	invokeErr := &llm.ProviderError{
		SDKError:   llm.SDKError{Message: "rate limited"},
		Provider:   "openai",
		StatusCode: 429,
	}
	invoker := &scriptedInvoker{errs: []error{invokeErr}}
	runner := NewRunner(invoker, &fakeToolInvoker{}, DefaultConfig())

	events, err := runAndCollect(t, runner, validParams())
	if !errors.Is(err, invokeErr) {
		t.Fatalf("Run error = %v, want the provider error", err)
	}

	// Both open spans are finished before the run aborts.
	finishes := eventsOfKind(events, EventSpanFinish)
	if len(finishes) != 2 {
		t.Fatalf("got %d finish spans, want 2", len(finishes))
	}
	if eventsOfKind(events, EventSummary) != nil {
		t.Error("summary emitted on a failed run")
	}
}

func TestRunMalformedToolArgumentsIsFatal(t *testing.T) {
	invoker := &scriptedInvoker{outputs: []llm.ModelOutput{
		atomicWithCalls("", nil, llm.RawToolCall{Name: "search", Arguments: `{"broken`}),
	}}
	runner := NewRunner(invoker, &fakeToolInvoker{}, DefaultConfig())

	_, err := runAndCollect(t, runner, validParams())
	if !llm.IsInvalidToolArguments(err) {
		t.Fatalf("Run error = %v, want InvalidToolArgumentsError", err)
	}
}

func TestRunStreamedErrorIsFatal(t *testing.T) {
	streamErr := &llm.ProviderError{
		SDKError:   llm.SDKError{Message: "connection reset"},
		Provider:   "openai",
		StatusCode: 500,
	}
	invoker := &scriptedInvoker{outputs: []llm.ModelOutput{
		streamOf(
			llm.Chunk{ContentDeltas: []string{"truncated"}},
			llm.Chunk{Err: streamErr},
		),
	}}

	params := validParams()
	params.Model.StreamToolCalls = true

	runner := NewRunner(invoker, &fakeToolInvoker{}, DefaultConfig())
	events, err := runAndCollect(t, runner, params)
	if !errors.Is(err, streamErr) {
		t.Fatalf("Run error = %v, want the stream error", err)
	}
	if runner.State() != StateFailed {
		t.Errorf("State = %s, want failed", runner.State())
	}
	if eventsOfKind(events, EventSummary) != nil {
		t.Error("summary emitted for a truncated response")
	}
	if invoker.calls != 1 {
		t.Errorf("invoker called %d times after a fatal stream error, want 1", invoker.calls)
	}
}

func TestRunRejectsInvalidParams(t *testing.T) {
	runner := NewRunner(&scriptedInvoker{}, &fakeToolInvoker{}, DefaultConfig())

	params := validParams()
	params.RepositoryURL = "not a url"

	events, err := runAndCollect(t, runner, params)
	if err == nil {
		t.Fatal("Run accepted an invalid repository URL")
	}
	texts := eventsOfKind(events, EventText)
	if len(texts) != 1 || !strings.Contains(texts[0].Text, "Error parsing parameters") {
		t.Errorf("events = %+v, want one parameter error text", events)
	}
	if runner.State() != StateFailed {
		t.Errorf("State = %s, want failed", runner.State())
	}
}

func TestRunnerIsSingleUse(t *testing.T) {
	invoker := &scriptedInvoker{outputs: []llm.ModelOutput{
		atomicWithCalls("done", nil),
	}}
	runner := NewRunner(invoker, &fakeToolInvoker{}, DefaultConfig())

	if _, err := runAndCollect(t, runner, validParams()); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	err := runner.Run(context.Background(), validParams())
	var cfgErr *llm.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("second Run error = %v, want ConfigurationError", err)
	}
}

func TestRunnerIsSingleUseAfterFailure(t *testing.T) {
	invokeErr := &llm.ProviderError{
		SDKError:   llm.SDKError{Message: "rate limited"},
		Provider:   "openai",
		StatusCode: 429,
	}
	invoker := &scriptedInvoker{errs: []error{invokeErr}}
	runner := NewRunner(invoker, &fakeToolInvoker{}, DefaultConfig())

	if _, err := runAndCollect(t, runner, validParams()); !errors.Is(err, invokeErr) {
		t.Fatalf("first Run error = %v, want the provider error", err)
	}
	if runner.State() != StateFailed {
		t.Fatalf("State = %s, want failed", runner.State())
	}

	err := runner.Run(context.Background(), validParams())
	var cfgErr *llm.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("second Run error = %v, want ConfigurationError", err)
	}
	if runner.Rounds() != 1 {
		t.Errorf("Rounds = %d after rejected reuse, want 1", runner.Rounds())
	}
}

func TestRunWithoutRegisteredTools(t *testing.T) {
	// Tool calls with an empty registry terminate the loop without
	// dispatching anything.
	invoker := &scriptedInvoker{outputs: []llm.ModelOutput{
		atomicWithCalls("calling anyway", nil, llm.RawToolCall{Name: "search", Arguments: `{}`}),
		atomicWithCalls("second round", nil),
	}}
	toolInvoker := &fakeToolInvoker{}

	params := validParams()
	params.Tools = nil

	runner := NewRunner(invoker, toolInvoker, DefaultConfig())
	if _, err := runAndCollect(t, runner, params); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(toolInvoker.invoked) != 0 {
		t.Errorf("tools invoked with empty registry: %v", toolInvoker.invoked)
	}
	// HadToolCalls still drives iteration, so the loop continues.
	if runner.Rounds() != 2 {
		t.Errorf("Rounds = %d, want 2", runner.Rounds())
	}
}

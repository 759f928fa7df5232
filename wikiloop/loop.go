package wikiloop

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/martinemde/deepwiki/llm"
)

// RunState represents the lifecycle state of a run.
type RunState string

const (
	StateRunning  RunState = "running"
	StateComplete RunState = "complete"
	StateFailed   RunState = "failed"
)

// Runner drives the bounded analysis loop for one run at a time. It owns
// the run's mutable state (message store, running usage); substeps receive
// that state by exclusive reference and nothing retains a writable handle
// across calls.
type Runner struct {
	id          string
	invoker     llm.Invoker
	toolInvoker ToolInvoker
	config      Config
	emitter     *EventEmitter
	recorder    *Recorder

	state RunState
	round int
	store *MessageStore
	usage *llm.Usage
}

// NewRunner creates a Runner over a model invoker and a tool-execution
// interface.
func NewRunner(invoker llm.Invoker, toolInvoker ToolInvoker, config Config) *Runner {
	runID := uuid.New().String()
	emitter := NewEventEmitter(runID, config.EventBufferSize)
	return &Runner{
		id:          runID,
		invoker:     invoker,
		toolInvoker: toolInvoker,
		config:      config,
		emitter:     emitter,
		recorder:    NewRecorder(emitter),
		state:       StateRunning,
	}
}

// ID returns the run identifier.
func (r *Runner) ID() string { return r.id }

// State returns the current run state.
func (r *Runner) State() RunState { return r.state }

// Rounds returns the number of rounds performed so far.
func (r *Runner) Rounds() int { return r.round }

// Events returns the transcript stream for the host application. Consuming
// it is the only way to observe progress before the run completes.
func (r *Runner) Events() <-chan RunEvent {
	return r.emitter.Events()
}

// Usage returns the last-observed usage snapshot, or nil.
func (r *Runner) Usage() *llm.Usage { return r.usage }

// Run executes the full analysis loop for params. The event channel is
// closed when Run returns; buffered events remain readable afterwards.
//
// Model-invocation failures and malformed tool-call payloads abort the run.
// Tool-invocation errors are recorded in telemetry and do not.
func (r *Runner) Run(ctx context.Context, params Params) error {
	if r.state != StateRunning {
		return &llm.ConfigurationError{SDKError: llm.SDKError{Message: "runner already finished"}}
	}
	defer r.emitter.Close()

	if err := params.Validate(); err != nil {
		r.state = StateFailed
		r.emitter.EmitText(fmt.Sprintf("Error parsing parameters: %v\n", err))
		return err
	}

	maxIterations := params.MaximumIterations
	if maxIterations <= 0 {
		maxIterations = r.config.MaxIterations
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	stop := params.Model.StopSequences()
	if stop == nil {
		stop = r.config.StopSequences
	}
	stream := params.Model.StreamToolCalls

	// Exactly one system message, prepended before all user and assistant
	// messages, then any prior conversation, then the analysis request.
	history := make([]llm.Message, 0, len(params.History)+2)
	history = append(history, llm.SystemMessage(params.SystemPrompt()))
	history = append(history, params.History...)
	history = append(history, llm.UserMessage(params.UserPrompt()))

	r.store = NewMessageStore(history)
	registry := NewToolRegistry(params.Tools)
	dispatcher := NewDispatcher(registry, r.toolInvoker, r.recorder)
	schemas := params.ToolSchemas()

	r.emitter.EmitText(fmt.Sprintf(
		"Starting analysis for repository: %s\nAnalysis depth: %s\nInclude diagrams: %v\n\n",
		params.RepositoryURL, params.AnalysisDepth, params.IncludeDiagrams))

	for r.state == StateRunning {
		r.round++

		roundSpan := r.recorder.StartSpan(fmt.Sprintf("Analysis Round %d", r.round), nil, map[string]any{
			"repository_url": params.RepositoryURL,
			"analysis_depth": params.AnalysisDepth,
			"iteration":      r.round,
		})

		r.emitter.EmitText(fmt.Sprintf("\n**Analysis Round %d**\n", r.round))

		prompt := AssemblePrompt(r.store.History(), r.store.Thoughts())

		modelSpan := r.recorder.StartSpan(params.Model.Model+" Generation", roundSpan, map[string]any{
			MetaProvider: params.Model.Provider,
		})

		output, err := r.invoker.Invoke(ctx, params.Model, prompt, stop, stream, schemas)
		if err != nil {
			return r.fail(err, modelSpan, roundSpan)
		}

		agg, err := AggregateOutput(output, r.emitter.EmitText)
		if err != nil {
			return r.fail(err, modelSpan, roundSpan)
		}

		// Latest non-null snapshot wins; earlier rounds are overwritten,
		// never merged.
		if agg.Usage != nil {
			r.usage = agg.Usage
		}

		if agg.Text != "" {
			r.store.AppendThought(llm.AssistantMessage(agg.Text))
		}

		r.recorder.FinishSpan(modelSpan, map[string]any{
			"content":    agg.Text,
			"tool_calls": agg.ToolCallNames(),
		}, r.modelSpanMetadata(params.Model.Provider, agg.Usage))

		if agg.HadToolCalls && registry.Count() > 0 {
			dispatcher.Dispatch(ctx, agg.ToolCalls, roundSpan, r.store)
		}

		r.recorder.FinishSpan(roundSpan, map[string]any{
			"iteration":    r.round,
			"tool_calls":   len(agg.ToolCalls),
			"has_response": agg.Text != "",
		}, nil)

		if !agg.HadToolCalls || r.round == maxIterations {
			if agg.HadToolCalls && r.round == maxIterations {
				r.emitter.EmitWarning(fmt.Sprintf(
					"Reached maximum iterations (%d). Analysis completed with available information.", maxIterations))
			}
			r.state = StateComplete
		}
	}

	r.emitter.EmitText(fmt.Sprintf(
		"\n**Analysis Complete**\nTotal iterations: %d\nRepository: %s\n",
		r.round, params.RepositoryURL))

	r.emitter.EmitSummary(r.summary())
	return nil
}

// fail moves the run to its failed terminal state, closing the open spans
// with the error as their outcome. The Runner stays single-use.
func (r *Runner) fail(err error, modelSpan, roundSpan *Span) error {
	r.state = StateFailed
	r.recorder.FinishSpan(modelSpan, map[string]any{"error": err.Error()}, nil)
	r.recorder.FinishSpan(roundSpan, map[string]any{"iteration": r.round}, nil)
	return err
}

// summary builds the terminal record from the last-observed usage,
// defaulting to zero values when none was observed.
func (r *Runner) summary() Summary {
	if r.usage == nil {
		return Summary{}
	}
	return Summary{
		TotalPrice:  r.usage.TotalPrice,
		Currency:    r.usage.Currency,
		TotalTokens: r.usage.TotalTokens,
	}
}

func (r *Runner) modelSpanMetadata(provider string, usage *llm.Usage) map[string]any {
	meta := map[string]any{
		MetaProvider:    provider,
		MetaTotalPrice:  0.0,
		MetaCurrency:    "",
		MetaTotalTokens: 0,
	}
	if usage != nil {
		meta[MetaTotalPrice] = usage.TotalPrice
		meta[MetaCurrency] = usage.Currency
		meta[MetaTotalTokens] = usage.TotalTokens
	}
	return meta
}

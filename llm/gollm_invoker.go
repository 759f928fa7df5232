package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmInvoker is the default Invoker. It wraps a gollm.LLM instance and
// translates between the loop's message model and gollm's prompt API. It
// produces the atomic result shape from blocking generation and the lazy
// fragment shape from token streaming.
type GollmInvoker struct {
	provider string
	llm      gollm.LLM
	model    string
}

// GollmOption configures a GollmInvoker.
type GollmOption func(*gollmConfig)

type gollmConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the API key for the invoker.
func WithAPIKey(key string) GollmOption {
	return func(c *gollmConfig) {
		c.apiKey = key
	}
}

// WithModel sets the default model for the invoker.
func WithModel(model string) GollmOption {
	return func(c *gollmConfig) {
		c.model = model
	}
}

// WithMaxTokens sets the default max tokens.
func WithMaxTokens(n int) GollmOption {
	return func(c *gollmConfig) {
		c.maxTokens = n
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmOption {
	return func(c *gollmConfig) {
		c.temperature = t
	}
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmOption {
	return func(c *gollmConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewGollmInvoker creates a GollmInvoker for the given provider. If apiKey is
// empty, gollm reads it from environment variables.
func NewGollmInvoker(provider string, apiKey string, opts ...GollmOption) (*GollmInvoker, error) {
	cfg := &gollmConfig{
		apiKey:      apiKey,
		maxTokens:   4096,
		temperature: 0.7,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		switch provider {
		case "openai":
			model = "gpt-4o-mini"
		case "anthropic":
			model = "claude-sonnet-4-5-20250514"
		default:
			model = "gpt-4o-mini"
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // the loop never retries; neither does the backend
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}

	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}

	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	backend, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", provider, err)
	}

	return &GollmInvoker{
		provider: provider,
		llm:      backend,
		model:    model,
	}, nil
}

// NewGollmInvokerFromLLM wraps an existing gollm.LLM instance.
func NewGollmInvokerFromLLM(provider string, backend gollm.LLM) *GollmInvoker {
	return &GollmInvoker{
		provider: provider,
		llm:      backend,
	}
}

// Provider returns the provider identifier.
func (g *GollmInvoker) Provider() string {
	return g.provider
}

// Invoke implements Invoker. When stream is true and the backend supports
// token streaming, the returned output is the lazy fragment shape; otherwise
// it falls back to one atomic result.
func (g *GollmInvoker) Invoke(ctx context.Context, cfg ModelConfig, messages []Message, stop []string, stream bool, tools []ToolSchema) (ModelOutput, error) {
	prompt := g.translateMessages(messages, tools)
	g.applyCompletionParams(cfg, stop)

	if stream && g.llm.SupportsStreaming() {
		return g.invokeStream(ctx, messages, prompt)
	}
	return g.invokeAtomic(ctx, messages, prompt)
}

func (g *GollmInvoker) invokeAtomic(ctx context.Context, messages []Message, prompt *gollm.Prompt) (ModelOutput, error) {
	text, err := g.llm.Generate(ctx, prompt)
	if err != nil {
		return ModelOutput{}, g.translateError(err)
	}

	toolCalls := parseRawToolCalls(text)
	cleaned := stripToolCallJSON(text, toolCalls)

	return AtomicOutput(&Result{
		Text:      cleaned,
		ToolCalls: toolCalls,
		Usage:     estimateUsage(messages, text),
	}), nil
}

func (g *GollmInvoker) invokeStream(ctx context.Context, messages []Message, prompt *gollm.Prompt) (ModelOutput, error) {
	stream, err := g.llm.Stream(ctx, prompt)
	if err != nil {
		return ModelOutput{}, g.translateError(err)
	}

	ch := make(chan Chunk, 64)

	go func() {
		defer close(ch)
		defer stream.Close()

		var fullText strings.Builder
		for {
			token, err := stream.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				// Model-invocation failures are fatal to the run; a
				// truncated response must not pass as a completed round.
				ch <- Chunk{Err: g.translateError(err)}
				return
			}
			if token == nil {
				continue
			}
			fullText.WriteString(token.Text)
			ch <- Chunk{ContentDeltas: []string{token.Text}}
		}

		// gollm delivers tool calls embedded in the text rather than as
		// separate stream events; surface them as a trailing fragment.
		final := Chunk{Usage: estimateUsage(messages, fullText.String())}
		for _, raw := range parseRawToolCalls(fullText.String()) {
			args := make(map[string]any)
			if err := json.Unmarshal([]byte(raw.Arguments), &args); err != nil {
				ch <- Chunk{Err: &InvalidToolArgumentsError{
					SDKError: SDKError{
						Message: "malformed tool call arguments for " + raw.Name,
						Cause:   err,
					},
					ToolName: raw.Name,
				}}
				return
			}
			final.ToolCalls = append(final.ToolCalls, ToolCall{
				ID:           raw.ID,
				Name:         raw.Name,
				Arguments:    args,
				RawArguments: raw.Arguments,
			})
		}
		ch <- final
	}()

	return StreamOutput(ch), nil
}

// translateMessages converts the loop's messages into a gollm Prompt. gollm
// takes a single system prompt and flattened user text, so assistant and
// tool-result messages are included as annotated context lines.
func (g *GollmInvoker) translateMessages(messages []Message, tools []ToolSchema) *gollm.Prompt {
	var systemPrompt string
	var userParts []string

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			systemPrompt += msg.TextContent() + "\n"
		case RoleUser:
			userParts = append(userParts, msg.TextContent())
		case RoleAssistant:
			if text := msg.TextContent(); text != "" {
				userParts = append(userParts, "[Assistant]: "+text)
			}
		case RoleTool:
			userParts = append(userParts, "[Tool Result]: "+msg.TextContent())
		}
	}

	promptText := strings.Join(userParts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	promptOpts := []gollm.PromptOption{}

	if systemPrompt != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(strings.TrimSpace(systemPrompt), gollm.CacheTypeEphemeral))
	}

	if len(tools) > 0 {
		gollmTools := make([]gollm.Tool, 0, len(tools))
		for _, t := range tools {
			gollmTools = append(gollmTools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(gollmTools))
		promptOpts = append(promptOpts, gollm.WithToolChoice("auto"))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

// applyCompletionParams applies per-invocation parameters to the backend.
func (g *GollmInvoker) applyCompletionParams(cfg ModelConfig, stop []string) {
	if cfg.Model != "" {
		g.llm.SetOption("model", cfg.Model)
	}
	if len(stop) > 0 {
		g.llm.SetOption("stop", stop)
	}
	if temp, ok := cfg.CompletionParams["temperature"].(float64); ok {
		g.llm.SetOption("temperature", temp)
	}
	if maxTokens, ok := cfg.CompletionParams["max_tokens"].(float64); ok {
		g.llm.SetOption("max_tokens", int(maxTokens))
	}
}

// parseRawToolCalls extracts tool calls embedded as JSON in the response
// text. Arguments stay in serialized form; aggregation parses them.
func parseRawToolCalls(text string) []RawToolCall {
	type rawCall struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}

	var rawCalls []rawCall
	if start := strings.Index(text, `{"tool_calls"`); start != -1 {
		var wrapper struct {
			ToolCalls []rawCall `json:"tool_calls"`
		}
		if err := json.Unmarshal([]byte(text[start:]), &wrapper); err == nil {
			rawCalls = wrapper.ToolCalls
		}
	} else if start := strings.Index(text, `[{"name"`); start != -1 {
		_ = json.Unmarshal([]byte(text[start:]), &rawCalls)
	}

	var calls []RawToolCall
	for _, rc := range rawCalls {
		calls = append(calls, RawToolCall{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: string(rc.Arguments),
		})
	}
	return calls
}

// stripToolCallJSON removes parsed tool call JSON from the response text.
func stripToolCallJSON(text string, calls []RawToolCall) string {
	if len(calls) == 0 {
		return text
	}
	result := text
	for _, pattern := range []string{`{"tool_calls"`, `[{"name"`} {
		if idx := strings.Index(result, pattern); idx != -1 {
			result = strings.TrimSpace(result[:idx])
		}
	}
	return result
}

// estimateUsage approximates token usage from message and response length.
// gollm does not expose detailed usage; real numbers would come from the
// provider's response metadata.
func estimateUsage(messages []Message, response string) *Usage {
	inputChars := 0
	for _, msg := range messages {
		inputChars += len(msg.TextContent())
	}
	total := inputChars/4 + len(response)/4
	if total == 0 {
		total = 1
	}
	return &Usage{TotalTokens: total, Currency: "USD"}
}

// translateError converts a gollm error into the llm error hierarchy.
func (g *GollmInvoker) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	msgLower := strings.ToLower(msg)

	status := 0
	switch {
	case strings.Contains(msgLower, "401") || strings.Contains(msgLower, "unauthorized") || strings.Contains(msgLower, "invalid api key"):
		status = 401
	case strings.Contains(msgLower, "403") || strings.Contains(msgLower, "forbidden"):
		status = 403
	case strings.Contains(msgLower, "404") || strings.Contains(msgLower, "not found"):
		status = 404
	case strings.Contains(msgLower, "429") || strings.Contains(msgLower, "rate limit"):
		status = 429
	case strings.Contains(msgLower, "500") || strings.Contains(msgLower, "internal server"):
		status = 500
	}

	return &ProviderError{
		SDKError:   SDKError{Message: msg, Cause: err},
		Provider:   g.provider,
		StatusCode: status,
	}
}

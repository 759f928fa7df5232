package llm

import "context"

// Invoker is the boundary behind which model backends live. Given assembled
// messages and configuration it returns either a lazy fragment sequence or
// one atomic result; callers must handle both shapes unconditionally.
//
// The stream flag is determined externally from the model configuration's
// capability flags and passed through unchanged.
type Invoker interface {
	Invoke(ctx context.Context, cfg ModelConfig, messages []Message, stop []string, stream bool, tools []ToolSchema) (ModelOutput, error)
}

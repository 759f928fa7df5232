package wikiloop

import (
	"context"
	"sort"
)

// ToolInstance identifies one invocable tool: its name plus the provider
// coordinates the execution interface needs to reach it.
type ToolInstance struct {
	Name         string `json:"name" mapstructure:"name"`
	Provider     string `json:"provider" mapstructure:"provider"`
	ProviderType string `json:"provider_type" mapstructure:"provider_type"`
}

// ToolRegistry maps tool names to instances. It is supplied once per run
// and immutable for the run's duration.
type ToolRegistry struct {
	tools map[string]ToolInstance
}

// NewToolRegistry builds a registry from tool instances. Duplicate names
// are latest-wins.
func NewToolRegistry(instances []ToolInstance) *ToolRegistry {
	tools := make(map[string]ToolInstance, len(instances))
	for _, inst := range instances {
		tools[inst.Name] = inst
	}
	return &ToolRegistry{tools: tools}
}

// Get returns the instance registered under name.
func (r *ToolRegistry) Get(name string) (ToolInstance, bool) {
	inst, ok := r.tools[name]
	return inst, ok
}

// Names returns the registered tool names, sorted.
func (r *ToolRegistry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	return len(r.tools)
}

// ToolChunkType tags one fragment of a tool result.
type ToolChunkType string

const (
	ToolChunkText ToolChunkType = "text"
	ToolChunkJSON ToolChunkType = "json"

	// ToolChunkError carries an error raised mid-invocation. It terminates
	// the result; no partial result is kept for the call.
	ToolChunkError ToolChunkType = "error"
)

// ToolChunk is one fragment of a lazily produced tool result.
type ToolChunk struct {
	Type ToolChunkType
	Text string
	JSON any
	Err  error
}

// ToolInvoker is the external tool-execution interface. Invoke runs the
// named tool and returns a lazy sequence of result fragments. Errors raised
// before any fragment is produced are returned directly; errors raised
// mid-sequence arrive as a final ToolChunkError fragment.
type ToolInvoker interface {
	Invoke(ctx context.Context, providerType, provider, toolName string, args map[string]any) (<-chan ToolChunk, error)
}

// GetStringArg extracts a string argument from a tool argument mapping.
func GetStringArg(args map[string]any, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetIntArg extracts an integer argument from a tool argument mapping.
func GetIntArg(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// GetBoolArg extracts a boolean argument from a tool argument mapping.
func GetBoolArg(args map[string]any, key string) (bool, bool) {
	v, ok := args[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

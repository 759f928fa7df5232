package llm

import (
	"errors"
	"fmt"
)

// SDKError is the base error type for all llm errors.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SDKError) Unwrap() error {
	return e.Cause
}

// ProviderError represents an error returned by a model provider. Provider
// errors abort the remaining rounds of a run; no partial-run recovery is
// attempted.
type ProviderError struct {
	SDKError
	Provider   string
	StatusCode int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d)", e.Provider, e.Message, e.StatusCode)
}

// InvalidToolArgumentsError indicates a tool-call argument payload that could
// not be parsed. It is fatal to the round: no partial tool call is retained.
type InvalidToolArgumentsError struct {
	SDKError
	ToolName string
}

// ConfigurationError indicates invalid invoker or run configuration.
type ConfigurationError struct {
	SDKError
}

// IsInvalidToolArguments reports whether err is (or wraps) an
// InvalidToolArgumentsError.
func IsInvalidToolArguments(err error) bool {
	var target *InvalidToolArgumentsError
	return errors.As(err, &target)
}

// Package llm defines the provider-facing data model for the documentation
// loop: conversation messages, tool calls, usage accounting, and the Invoker
// boundary behind which model backends live.
//
// A model invocation returns a ModelOutput, a tagged variant that is either
// a lazy sequence of incremental Chunks or one atomic Result. Callers handle
// both shapes through the same aggregation path without knowing which one
// the backend produced.
package llm

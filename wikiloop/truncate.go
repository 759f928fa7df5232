package wikiloop

// DefaultResultLimit is the character budget for tool result strings
// recorded in telemetry payloads.
const DefaultResultLimit = 500

// TruncateResult caps a tool result string for telemetry, appending an
// ellipsis marker when content was removed. The full result still reaches
// the conversation; only the span payload is truncated.
func TruncateResult(result string, limit int) string {
	if limit <= 0 {
		limit = DefaultResultLimit
	}
	if len(result) <= limit {
		return result
	}
	return result[:limit] + "..."
}

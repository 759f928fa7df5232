package wikiloop

import (
	"strings"

	"github.com/martinemde/deepwiki/llm"
)

// Placeholder tokens substituted for non-text content parts when user
// messages are flattened after the first round.
const (
	imagePlaceholder = "[image]"
	filePlaceholder  = "[file]"
)

// AssemblePrompt builds the exact message sequence to send to the model for
// a round: history followed by thoughts, always a fresh slice.
//
// Many model backends reject mixed multimodal content once a tool-augmented
// exchange is underway, so from the second round on (thoughts non-empty)
// every multimodal user message is flattened to plain text. The rewrite is
// applied to a deep copy each round; the stored originals are never touched.
func AssemblePrompt(history, thoughts []llm.Message) []llm.Message {
	prompt := make([]llm.Message, 0, len(history)+len(thoughts))
	prompt = append(prompt, history...)
	prompt = append(prompt, thoughts...)
	if len(thoughts) == 0 {
		return prompt
	}
	return flattenUserParts(prompt)
}

// flattenUserParts rewrites each multimodal user message into a single
// plain-text message: text parts joined by newlines in original order,
// image and file parts replaced by placeholder tokens. Applying it to an
// all-plain-text sequence is a no-op.
func flattenUserParts(messages []llm.Message) []llm.Message {
	out := llm.CloneMessages(messages)
	for i, msg := range out {
		if msg.Role != llm.RoleUser || !msg.IsMultimodal() {
			continue
		}
		lines := make([]string, 0, len(msg.Parts))
		for _, part := range msg.Parts {
			switch part.Kind {
			case llm.ContentText:
				lines = append(lines, part.Text)
			case llm.ContentImage:
				lines = append(lines, imagePlaceholder)
			case llm.ContentFile:
				lines = append(lines, filePlaceholder)
			}
		}
		out[i] = llm.Message{Role: llm.RoleUser, Content: strings.Join(lines, "\n")}
	}
	return out
}

package llm

import "strings"

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentKind is the discriminator tag for ContentPart.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentImage ContentKind = "image"
	ContentFile  ContentKind = "file"
)

// ImageData holds image content as either a URL or raw bytes.
type ImageData struct {
	URL       string `json:"url,omitempty"`
	Data      []byte `json:"data,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// FileData holds file content attached to a message.
type FileData struct {
	URL       string `json:"url,omitempty"`
	Data      []byte `json:"data,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	FileName  string `json:"file_name,omitempty"`
}

// ContentPart is a tagged union representing one part of a multimodal message.
type ContentPart struct {
	Kind  ContentKind `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Image *ImageData  `json:"image,omitempty"`
	File  *FileData   `json:"file,omitempty"`
}

// TextPart creates a text ContentPart.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

// ImageURLPart creates an image ContentPart from a URL.
func ImageURLPart(url, mediaType string) ContentPart {
	return ContentPart{
		Kind:  ContentImage,
		Image: &ImageData{URL: url, MediaType: mediaType},
	}
}

// FilePart creates a file ContentPart.
func FilePart(fileName, url, mediaType string) ContentPart {
	return ContentPart{
		Kind: ContentFile,
		File: &FileData{FileName: fileName, URL: url, MediaType: mediaType},
	}
}

// Message is the fundamental unit of conversation. Content holds plain text;
// Parts, when non-nil, holds an ordered multimodal sequence and takes
// precedence over Content. Messages are treated as immutable once appended
// to a sequence: transformations copy, never mutate in place.
type Message struct {
	Role       Role          `json:"role"`
	Content    string        `json:"content,omitempty"`
	Parts      []ContentPart `json:"parts,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// IsMultimodal reports whether the message carries typed content parts.
func (m Message) IsMultimodal() bool {
	return m.Parts != nil
}

// TextContent returns the plain text of the message. For multimodal messages
// it concatenates the text parts only.
func (m Message) TextContent() string {
	if m.Parts == nil {
		return m.Content
	}
	var sb strings.Builder
	for _, part := range m.Parts {
		if part.Kind == ContentText {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// SystemMessage creates a system Message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage creates a user Message with plain text content.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// UserPartsMessage creates a user Message with multimodal content parts.
func UserPartsMessage(parts ...ContentPart) Message {
	return Message{Role: RoleUser, Parts: parts}
}

// AssistantMessage creates an assistant Message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolResultMessage creates a tool result Message correlated to a tool call.
func ToolResultMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// Clone returns a deep copy of the message, including content parts.
func (m Message) Clone() Message {
	out := m
	if m.Parts != nil {
		out.Parts = make([]ContentPart, len(m.Parts))
		for i, part := range m.Parts {
			cloned := part
			if part.Image != nil {
				img := *part.Image
				img.Data = append([]byte(nil), part.Image.Data...)
				cloned.Image = &img
			}
			if part.File != nil {
				f := *part.File
				f.Data = append([]byte(nil), part.File.Data...)
				cloned.File = &f
			}
			out.Parts[i] = cloned
		}
	}
	return out
}

// CloneMessages returns a deep copy of a message sequence.
func CloneMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}

// ToolCall is a model-initiated tool invocation with its arguments already
// parsed into a mapping. Tool argument schemas vary per tool, so access is
// deferred to the executing tool rather than bound to a fixed structure.
type ToolCall struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Arguments    map[string]any `json:"arguments"`
	RawArguments string         `json:"raw_arguments,omitempty"`
}

// Usage tracks token consumption and cost for one model invocation.
type Usage struct {
	TotalTokens int     `json:"total_tokens"`
	TotalPrice  float64 `json:"total_price"`
	Currency    string  `json:"currency"`
}

// ToolSchema is the wire form of a tool definition sent to the model.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ModelConfig identifies the model to invoke and its completion parameters.
type ModelConfig struct {
	Provider         string         `json:"provider"`
	Model            string         `json:"model"`
	CompletionParams map[string]any `json:"completion_params,omitempty"`

	// StreamToolCalls reports whether the model can stream tool-call
	// fragments. It decides the streamEnabled flag passed to the Invoker.
	StreamToolCalls bool `json:"stream_tool_calls"`
}

// StopSequences extracts the stop-sequence list from the completion
// parameters, if present.
func (c ModelConfig) StopSequences() []string {
	raw, ok := c.CompletionParams["stop"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		var stop []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				stop = append(stop, s)
			}
		}
		return stop
	default:
		return nil
	}
}

package llm

import "testing"

func TestTextContentPlain(t *testing.T) {
	msg := UserMessage("hello")
	if got := msg.TextContent(); got != "hello" {
		t.Errorf("TextContent() = %q, want %q", got, "hello")
	}
	if msg.IsMultimodal() {
		t.Error("plain message reported as multimodal")
	}
}

func TestTextContentMultimodal(t *testing.T) {
	msg := UserPartsMessage(
		TextPart("look at "),
		ImageURLPart("https://example.com/a.png", "image/png"),
		TextPart("this"),
	)
	if !msg.IsMultimodal() {
		t.Fatal("parts message not reported as multimodal")
	}
	if got := msg.TextContent(); got != "look at this" {
		t.Errorf("TextContent() = %q, want %q", got, "look at this")
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := UserPartsMessage(
		TextPart("caption"),
		ContentPart{Kind: ContentImage, Image: &ImageData{Data: []byte{1, 2, 3}, MediaType: "image/png"}},
	)

	cloned := original.Clone()
	cloned.Parts[0].Text = "changed"
	cloned.Parts[1].Image.Data[0] = 9

	if original.Parts[0].Text != "caption" {
		t.Errorf("clone mutation leaked into original text part: %q", original.Parts[0].Text)
	}
	if original.Parts[1].Image.Data[0] != 1 {
		t.Errorf("clone mutation leaked into original image bytes: %v", original.Parts[1].Image.Data)
	}
}

func TestCloneMessages(t *testing.T) {
	msgs := []Message{
		SystemMessage("sys"),
		UserPartsMessage(TextPart("a"), FilePart("f.txt", "https://example.com/f.txt", "text/plain")),
	}
	cloned := CloneMessages(msgs)
	if len(cloned) != 2 {
		t.Fatalf("CloneMessages returned %d messages, want 2", len(cloned))
	}
	cloned[1].Parts[0].Text = "b"
	if msgs[1].Parts[0].Text != "a" {
		t.Error("CloneMessages did not deep copy parts")
	}
}

func TestStopSequences(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   []string
	}{
		{"absent", nil, nil},
		{"string slice", map[string]any{"stop": []string{"END"}}, []string{"END"}},
		{"any slice", map[string]any{"stop": []any{"END", "STOP"}}, []string{"END", "STOP"}},
		{"wrong type", map[string]any{"stop": 42}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ModelConfig{CompletionParams: tt.params}
			got := cfg.StopSequences()
			if len(got) != len(tt.want) {
				t.Fatalf("StopSequences() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("StopSequences()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

package wikiloop

import "github.com/martinemde/deepwiki/llm"

// MessageStore is the append-only conversation state for one run. History
// holds the fixed base conversation (system message first); thoughts hold
// every message produced during the run, ordered by the round and substep
// that produced them. The store is created empty at run start, grows
// monotonically, and does not survive the run.
//
// The store is owned exclusively by the Runner and mutated only between
// rounds; substeps receive it by exclusive reference.
type MessageStore struct {
	history  []llm.Message
	thoughts []llm.Message
}

// NewMessageStore creates a store over a copy of the base conversation.
func NewMessageStore(history []llm.Message) *MessageStore {
	h := make([]llm.Message, len(history))
	copy(h, history)
	return &MessageStore{history: h}
}

// History returns a copy of the base conversation.
func (s *MessageStore) History() []llm.Message {
	h := make([]llm.Message, len(s.history))
	copy(h, s.history)
	return h
}

// Thoughts returns a copy of the messages produced during the run so far.
func (s *MessageStore) Thoughts() []llm.Message {
	t := make([]llm.Message, len(s.thoughts))
	copy(t, s.thoughts)
	return t
}

// AppendThought appends one message produced mid-run.
func (s *MessageStore) AppendThought(msg llm.Message) {
	s.thoughts = append(s.thoughts, msg)
}

// Len returns the total number of stored messages.
func (s *MessageStore) Len() int {
	return len(s.history) + len(s.thoughts)
}

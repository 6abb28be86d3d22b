// Package transcript holds the conversation history for one file-editing
// session. A transcript grows monotonically across retry cycles and is owned
// exclusively by the session that created it.
package transcript

import "strings"

// Role tags a message with its conversational origin.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry in a transcript.
type Message struct {
	Role    Role
	Content string
}

// Transcript is an append-only ordered sequence of messages.
type Transcript struct {
	messages []Message
}

func New() *Transcript {
	return &Transcript{}
}

// AppendUser appends a user message.
func (t *Transcript) AppendUser(content string) {
	t.messages = append(t.messages, Message{Role: RoleUser, Content: content})
}

// AppendAssistant appends an assistant message.
func (t *Transcript) AppendAssistant(content string) {
	t.messages = append(t.messages, Message{Role: RoleAssistant, Content: content})
}

// Messages returns a copy of the message sequence.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	return len(t.messages)
}

// LastRole reports the role of the final message. ok is false for an empty
// transcript.
func (t *Transcript) LastRole() (role Role, ok bool) {
	if len(t.messages) == 0 {
		return "", false
	}
	return t.messages[len(t.messages)-1].Role, true
}

// Text renders the canonical textual form of the transcript. Response-cache
// digests are computed over this rendering and the prompt artifact files
// contain it, so it must stay stable.
func (t *Transcript) Text() string {
	var b strings.Builder
	for _, m := range t.messages {
		b.WriteString(string(m.Role))
		b.WriteString(":\n")
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

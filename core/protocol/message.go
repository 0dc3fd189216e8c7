// Package protocol defines the chat message shape exchanged with
// OpenAI-compatible completion services.
package protocol

// Role identifies the sender of a completion message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is a single completion message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewMessage creates a Message with the given role and content.
//
// Example:
//
//	msg := protocol.NewMessage(protocol.RoleUser, "Olá")
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// Prompt builds the two-message conversation used for every reply: the
// system instruction followed by the user's text. An empty system prompt
// is omitted.
func Prompt(system, user string) []Message {
	msgs := make([]Message, 0, 2)
	if system != "" {
		msgs = append(msgs, NewMessage(RoleSystem, system))
	}
	return append(msgs, NewMessage(RoleUser, user))
}

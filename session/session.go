// Package session stores conversations: an append-only transcript per
// session id and the handoff state that decides who may answer the user.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a transcript message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
	SenderOperator  Sender = "operator"
	SenderSystem    Sender = "system"
)

// IsValid reports whether s is a known sender.
func (s Sender) IsValid() bool {
	switch s {
	case SenderUser, SenderAssistant, SenderOperator, SenderSystem:
		return true
	}
	return false
}

// State is the handoff state of a conversation.
type State string

const (
	// StateAIActive is the initial state: the automated assistant answers.
	StateAIActive State = "ai_active"
	// StateHumanActive means an operator owns the conversation and the
	// assistant must stay silent.
	StateHumanActive State = "human_active"
)

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	return s == StateAIActive || s == StateHumanActive
}

// Message is one immutable transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a Message with a fresh UUIDv7 identifier.
func NewMessage(sender Sender, text string) Message {
	return Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// Conversation is a read-only view of a session's metadata.
type Conversation struct {
	ID           string    `json:"id"`
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Store persists conversations. Implementations must be safe for concurrent
// use. Store methods do not validate session ids beyond rejecting blanks;
// callers apply their own limits.
type Store interface {
	// GetOrCreate returns the conversation for id, creating it in
	// StateAIActive if it has never been seen.
	GetOrCreate(ctx context.Context, id string) (Conversation, error)
	// Get returns the conversation for id or ErrNotFound.
	Get(ctx context.Context, id string) (Conversation, error)
	// Append adds a message to the transcript, creating the conversation
	// if needed, and returns the stored message.
	Append(ctx context.Context, id string, sender Sender, text string) (Message, error)
	// Messages returns the transcript in append order. Unknown ids yield
	// an empty slice.
	Messages(ctx context.Context, id string) ([]Message, error)
	// SetState records the handoff state, creating the conversation if
	// needed.
	SetState(ctx context.Context, id string, state State) error
	// HandoffSessions returns the sorted ids of conversations in
	// StateHumanActive.
	HandoffSessions(ctx context.Context) ([]string, error)
	// Close releases backend resources.
	Close() error
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyID
	}
	return nil
}

func checkAppend(id string, sender Sender) error {
	if err := checkID(id); err != nil {
		return err
	}
	if !sender.IsValid() {
		return ErrInvalidSender
	}
	return nil
}

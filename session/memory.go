package session

import (
	"context"
	"slices"
	"sync"
	"time"
)

type memoryConversation struct {
	meta     Conversation
	messages []Message
}

type memoryStore struct {
	conversations map[string]*memoryConversation
	mu            sync.RWMutex
}

// NewMemoryStore creates a Store backed by in-process maps. Contents are
// lost when the process exits.
func NewMemoryStore() Store {
	return &memoryStore{
		conversations: make(map[string]*memoryConversation),
	}
}

// lookup must be called with s.mu held for writing.
func (s *memoryStore) lookup(id string) *memoryConversation {
	c, ok := s.conversations[id]
	if !ok {
		now := time.Now().UTC()
		c = &memoryConversation{
			meta: Conversation{ID: id, State: StateAIActive, CreatedAt: now, UpdatedAt: now},
		}
		s.conversations[id] = c
	}
	return c
}

func (s *memoryStore) GetOrCreate(_ context.Context, id string) (Conversation, error) {
	if err := checkID(id); err != nil {
		return Conversation{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id).meta, nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return c.meta, nil
}

func (s *memoryStore) Append(_ context.Context, id string, sender Sender, text string) (Message, error) {
	if err := checkAppend(id, sender); err != nil {
		return Message{}, err
	}

	msg := NewMessage(sender, text)

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookup(id)
	c.messages = append(c.messages, msg)
	c.meta.MessageCount = len(c.messages)
	c.meta.UpdatedAt = msg.CreatedAt
	return msg, nil
}

func (s *memoryStore) Messages(_ context.Context, id string) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return []Message{}, nil
	}
	return slices.Clone(c.messages), nil
}

func (s *memoryStore) SetState(_ context.Context, id string, state State) error {
	if err := checkID(id); err != nil {
		return err
	}
	if !state.IsValid() {
		return ErrInvalidState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.lookup(id)
	c.meta.State = state
	c.meta.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memoryStore) HandoffSessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for id, c := range s.conversations {
		if c.meta.State == StateHumanActive {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *memoryStore) Close() error { return nil }

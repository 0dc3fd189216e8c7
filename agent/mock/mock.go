// Package mock provides a scripted Agent for tests.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/tailored-agentic-units/lifeline/agent"
)

// ReplyFunc computes a reply for one call.
type ReplyFunc func(ctx context.Context, systemPrompt, userText string) (string, error)

// MockAgent is an agent.Agent whose replies are scripted. Safe for
// concurrent use.
type MockAgent struct {
	id    string
	reply ReplyFunc

	mu         sync.Mutex
	calls      int
	lastSystem string
	lastUser   string
}

// Option configures a MockAgent.
type Option func(*MockAgent)

// WithID sets the agent ID.
func WithID(id string) Option {
	return func(m *MockAgent) {
		m.id = id
	}
}

// WithReply makes every call return text.
func WithReply(text string) Option {
	return func(m *MockAgent) {
		m.reply = func(context.Context, string, string) (string, error) {
			return text, nil
		}
	}
}

// WithError makes every call fail with err wrapped in agent.ErrUpstream.
func WithError(err error) Option {
	return func(m *MockAgent) {
		m.reply = func(context.Context, string, string) (string, error) {
			return "", fmt.Errorf("%w: %w", agent.ErrUpstream, err)
		}
	}
}

// WithReplyFunc delegates every call to fn.
func WithReplyFunc(fn ReplyFunc) Option {
	return func(m *MockAgent) {
		m.reply = fn
	}
}

// NewMockAgent creates a MockAgent. Without options it echoes the user text.
func NewMockAgent(opts ...Option) *MockAgent {
	m := &MockAgent{
		id: "mock",
		reply: func(_ context.Context, _, user string) (string, error) {
			return "echo: " + user, nil
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockAgent) ID() string { return m.id }

func (m *MockAgent) GenerateReply(ctx context.Context, systemPrompt, userText string) (string, error) {
	m.mu.Lock()
	m.calls++
	m.lastSystem = systemPrompt
	m.lastUser = userText
	m.mu.Unlock()

	return m.reply(ctx, systemPrompt, userText)
}

// Calls returns how many times GenerateReply was invoked.
func (m *MockAgent) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the arguments of the most recent call.
func (m *MockAgent) LastRequest() (systemPrompt, userText string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSystem, m.lastUser
}

// Package agent provides the completion service used to draft supportive
// replies. The service is opaque to the rest of the system: it takes a
// system instruction and the user's text and returns reply text or an
// error wrapping ErrUpstream.
package agent

import (
	"context"

	"github.com/tailored-agentic-units/lifeline/core/config"
)

// Agent generates a reply to a single user message.
type Agent interface {
	// ID returns a stable identifier for logging.
	ID() string
	// GenerateReply returns the completion for userText under
	// systemPrompt. Failures wrap ErrUpstream.
	GenerateReply(ctx context.Context, systemPrompt, userText string) (string, error)
}

// New creates an Agent from configuration.
func New(cfg *config.AgentConfig, opts ...Option) (Agent, error) {
	c, err := NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Package kernel is the reply orchestrator. It composes the session store,
// crisis detector, handoff machine and completion agent, and decides for
// each user message whether the assistant answers, a human is summoned, or
// the user is told a human already owns the conversation.
//
// The kernel initializes from configuration via New, creating all subsystems
// internally. Functional options replace any subsystem, mostly for tests.
//
//	k, err := kernel.New(&cfg)
//	reply, err := k.HandleMessage(ctx, "s1", "oi")
package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tailored-agentic-units/lifeline/agent"
	"github.com/tailored-agentic-units/lifeline/crisis"
	"github.com/tailored-agentic-units/lifeline/handoff"
	"github.com/tailored-agentic-units/lifeline/observability"
	"github.com/tailored-agentic-units/lifeline/session"
)

// ReplyKind tells the caller which path produced a Reply.
type ReplyKind string

const (
	// ReplyAssistant carries a completion that was appended to the transcript.
	ReplyAssistant ReplyKind = "assistant"
	// ReplyEscalated carries the escalation notice after a critical message.
	ReplyEscalated ReplyKind = "escalated"
	// ReplyHumanActive is the fixed acknowledgment while an operator owns
	// the session. It is not appended.
	ReplyHumanActive ReplyKind = "human_active"
	// ReplyUnavailable is the fixed apology when the completion service
	// failed. It is not appended.
	ReplyUnavailable ReplyKind = "unavailable"
)

// Reply is the user-facing outcome of HandleMessage. MessageID is set when
// Text was appended to the transcript.
type Reply struct {
	Kind      ReplyKind     `json:"kind"`
	Text      string        `json:"text"`
	State     session.State `json:"state"`
	MessageID string        `json:"message_id,omitempty"`
}

// Option configures a Kernel during New. Overrides replace the
// config-created subsystem, which is then never built.
type Option func(*Kernel)

// WithAgent overrides the config-created agent.
func WithAgent(a agent.Agent) Option {
	return func(k *Kernel) { k.agent = a }
}

// WithStore overrides the config-created session store.
func WithStore(s session.Store) Option {
	return func(k *Kernel) { k.store = s }
}

// WithDetector overrides the config-created crisis detector.
func WithDetector(d *crisis.Detector) Option {
	return func(k *Kernel) { k.detector = d }
}

// WithObserver overrides the observers named in the config.
func WithObserver(o observability.Observer) Option {
	return func(k *Kernel) { k.observer = o }
}

// Kernel routes user messages. Safe for concurrent use; operations on the
// same session are serialized.
type Kernel struct {
	agent    agent.Agent
	store    session.Store
	detector *crisis.Detector
	machine  *handoff.Machine
	observer observability.Observer
	locks    *sessionLocks

	systemPrompt       string
	replies            Replies
	maxMessageLength   int
	maxSessionIDLength int
}

// New creates a Kernel from configuration. Subsystems not supplied through
// options are built from their config sections.
func New(cfg *Config, opts ...Option) (*Kernel, error) {
	merged := DefaultConfig()
	merged.Merge(cfg)

	k := &Kernel{
		locks:              newSessionLocks(),
		systemPrompt:       merged.SystemPrompt,
		replies:            merged.Replies,
		maxMessageLength:   merged.MaxMessageLength,
		maxSessionIDLength: merged.MaxSessionIDLength,
	}

	for _, opt := range opts {
		opt(k)
	}

	if k.observer == nil {
		obs, err := observability.Resolve(merged.Observers...)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observers: %w", err)
		}
		k.observer = obs
	}

	if k.detector == nil {
		d, err := crisis.New(&merged.Detector)
		if err != nil {
			return nil, fmt.Errorf("failed to create detector: %w", err)
		}
		k.detector = d
	}

	if k.agent == nil {
		a, err := agent.New(&merged.Agent, agent.WithObserver(k.observer))
		if err != nil {
			return nil, fmt.Errorf("failed to create agent: %w", err)
		}
		k.agent = a
	}

	if k.store == nil {
		s, err := session.New(&merged.Session)
		if err != nil {
			return nil, fmt.Errorf("failed to create session store: %w", err)
		}
		k.store = s
	}

	k.machine = handoff.NewMachine(k.store,
		handoff.WithNotices(merged.Notices),
		handoff.WithObserver(k.observer),
	)

	return k, nil
}

// Close releases the session store.
func (k *Kernel) Close() error {
	return k.store.Close()
}

// Detector returns the crisis detector in use.
func (k *Kernel) Detector() *crisis.Detector {
	return k.detector
}

// HandleMessage records a user message and produces the reply.
//
// The user message is always appended first. While the session is
// human_active the fixed acknowledgment is returned; a crisis signal is
// still detected and reported as EventSignalObserved, without routing on
// it. A critical message escalates the session and returns the
// escalation notice. Otherwise the completion service is called without
// holding the session lock; if an operator took over meanwhile, the
// completion is discarded.
func (k *Kernel) HandleMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	start := time.Now()

	if err := k.validateSessionID(sessionID); err != nil {
		return Reply{}, err
	}
	text, err := k.validateText(text)
	if err != nil {
		return Reply{}, err
	}

	unlock := k.locks.lock(sessionID)

	if _, err := k.store.Append(ctx, sessionID, session.SenderUser, text); err != nil {
		unlock()
		return Reply{}, k.fail(ctx, sessionID, "append user message", err)
	}

	conv, err := k.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		unlock()
		return Reply{}, k.fail(ctx, sessionID, "load session", err)
	}

	k.emit(ctx, EventMessageReceived, observability.LevelVerbose, map[string]any{
		"session_id":  sessionID,
		"text_length": utf8.RuneCountInString(text),
		"state":       string(conv.State),
	})

	if conv.State == session.StateHumanActive {
		unlock()
		// Reported only. The operator already owns the session.
		if verdict := k.detector.Detect(text); verdict.Critical {
			k.emit(ctx, EventSignalObserved, observability.LevelVerbose, map[string]any{
				"session_id": sessionID,
				"state":      string(conv.State),
				"reason":     string(verdict.Reason),
				"category":   verdict.Category,
			})
		}
		return k.reply(ctx, sessionID, start, Reply{
			Kind:  ReplyHumanActive,
			Text:  k.replies.HumanActive,
			State: session.StateHumanActive,
		}), nil
	}

	if verdict := k.detector.Detect(text); verdict.Critical {
		tr, err := k.machine.AutoEscalate(ctx, sessionID)
		unlock()
		if err != nil {
			return Reply{}, k.fail(ctx, sessionID, "escalate", err)
		}

		k.emit(ctx, EventEscalated, observability.LevelWarning, map[string]any{
			"session_id": sessionID,
			"reason":     string(verdict.Reason),
			"category":   verdict.Category,
		})

		r := Reply{Kind: ReplyEscalated, State: tr.To, Text: k.machine.Notices().Escalation}
		if tr.Notice != nil {
			r.Text = tr.Notice.Text
			r.MessageID = tr.Notice.ID
		}
		return k.reply(ctx, sessionID, start, r), nil
	}

	unlock()

	completion, err := k.agent.GenerateReply(ctx, k.systemPrompt, text)
	if err != nil {
		return k.reply(ctx, sessionID, start, Reply{
			Kind:  ReplyUnavailable,
			Text:  k.replies.Unavailable,
			State: session.StateAIActive,
		}), nil
	}

	unlock = k.locks.lock(sessionID)
	defer unlock()

	conv, err = k.store.GetOrCreate(ctx, sessionID)
	if err != nil {
		return Reply{}, k.fail(ctx, sessionID, "reload session", err)
	}
	if conv.State == session.StateHumanActive {
		k.emit(ctx, EventReplyDiscarded, observability.LevelInfo, map[string]any{
			"session_id": sessionID,
		})
		return k.reply(ctx, sessionID, start, Reply{
			Kind:  ReplyHumanActive,
			Text:  k.replies.HumanActive,
			State: session.StateHumanActive,
		}), nil
	}

	msg, err := k.store.Append(ctx, sessionID, session.SenderAssistant, completion)
	if err != nil {
		return Reply{}, k.fail(ctx, sessionID, "append assistant reply", err)
	}

	return k.reply(ctx, sessionID, start, Reply{
		Kind:      ReplyAssistant,
		Text:      completion,
		State:     session.StateAIActive,
		MessageID: msg.ID,
	}), nil
}

// RequestHuman hands the session to an operator, creating it if needed.
func (k *Kernel) RequestHuman(ctx context.Context, sessionID string) (handoff.Transition, error) {
	if err := k.validateSessionID(sessionID); err != nil {
		return handoff.Transition{}, err
	}

	unlock := k.locks.lock(sessionID)
	defer unlock()

	tr, err := k.machine.RequestHuman(ctx, sessionID)
	if err != nil {
		return handoff.Transition{}, k.fail(ctx, sessionID, "request human", err)
	}
	return tr, nil
}

// CloseHandoff returns the session to the assistant. A session that is not
// human_active is left untouched.
func (k *Kernel) CloseHandoff(ctx context.Context, sessionID string) (handoff.Transition, error) {
	if err := k.validateSessionID(sessionID); err != nil {
		return handoff.Transition{}, err
	}

	unlock := k.locks.lock(sessionID)
	defer unlock()

	tr, err := k.machine.CloseHandoff(ctx, sessionID)
	if err != nil {
		return handoff.Transition{}, k.fail(ctx, sessionID, "close handoff", err)
	}
	return tr, nil
}

// SendOperatorMessage appends an operator message. It is accepted in either
// state and does not change it.
func (k *Kernel) SendOperatorMessage(ctx context.Context, sessionID, text string) (session.Message, error) {
	if err := k.validateSessionID(sessionID); err != nil {
		return session.Message{}, err
	}
	text, err := k.validateText(text)
	if err != nil {
		return session.Message{}, err
	}

	unlock := k.locks.lock(sessionID)
	defer unlock()

	msg, err := k.store.Append(ctx, sessionID, session.SenderOperator, text)
	if err != nil {
		return session.Message{}, k.fail(ctx, sessionID, "append operator message", err)
	}

	k.emit(ctx, EventOperatorMessage, observability.LevelInfo, map[string]any{
		"session_id":  sessionID,
		"text_length": utf8.RuneCountInString(text),
	})
	return msg, nil
}

// Transcript returns the session's messages in append order. Unknown
// sessions have an empty transcript.
func (k *Kernel) Transcript(ctx context.Context, sessionID string) ([]session.Message, error) {
	if err := k.validateSessionID(sessionID); err != nil {
		return nil, err
	}
	return k.store.Messages(ctx, sessionID)
}

// Conversation returns the session metadata. Unknown sessions report
// ai_active with no messages.
func (k *Kernel) Conversation(ctx context.Context, sessionID string) (session.Conversation, error) {
	if err := k.validateSessionID(sessionID); err != nil {
		return session.Conversation{}, err
	}

	conv, err := k.store.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		return session.Conversation{ID: sessionID, State: session.StateAIActive}, nil
	}
	return conv, err
}

// HandoffSessions lists, sorted, the sessions waiting on or owned by an
// operator.
func (k *Kernel) HandoffSessions(ctx context.Context) ([]string, error) {
	return k.store.HandoffSessions(ctx)
}

func (k *Kernel) validateSessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingSessionID
	}
	if len(id) > k.maxSessionIDLength {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrSessionIDTooLong, len(id), k.maxSessionIDLength)
	}
	return nil
}

// validateText returns the trimmed text.
func (k *Kernel) validateText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if n := utf8.RuneCountInString(text); n > k.maxMessageLength {
		return "", fmt.Errorf("%w: %d characters, limit %d", ErrMessageTooLong, n, k.maxMessageLength)
	}
	return text, nil
}

func (k *Kernel) reply(ctx context.Context, sessionID string, start time.Time, r Reply) Reply {
	level := observability.LevelInfo
	if r.Kind == ReplyUnavailable {
		level = observability.LevelWarning
	}
	k.emit(ctx, EventReply, level, map[string]any{
		"session_id":               sessionID,
		"state":                    string(r.State),
		observability.DataOutcome:  string(r.Kind),
		observability.DataDuration: time.Since(start).Milliseconds(),
	})
	return r
}

func (k *Kernel) fail(ctx context.Context, sessionID, op string, err error) error {
	k.emit(ctx, EventError, observability.LevelError, map[string]any{
		"session_id": sessionID,
		"op":         op,
		"error":      err.Error(),
	})
	return fmt.Errorf("%s: %w", op, err)
}

func (k *Kernel) emit(ctx context.Context, t observability.EventType, level observability.Level, data map[string]any) {
	k.observer.OnEvent(ctx, observability.NewEvent(t, level, "kernel", data))
}

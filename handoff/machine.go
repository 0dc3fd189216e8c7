package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tailored-agentic-units/lifeline/observability"
	"github.com/tailored-agentic-units/lifeline/session"
)

// EventTransition is emitted for every Apply, changed or not.
const EventTransition observability.EventType = "handoff.transition"

// ErrUnknownTrigger is returned by Apply for triggers outside the table.
var ErrUnknownTrigger = errors.New("unknown handoff trigger")

// Machine applies triggers to conversations held in a session.Store.
type Machine struct {
	store    session.Store
	notices  Notices
	observer observability.Observer
}

// Option configures a Machine.
type Option func(*Machine)

// WithNotices overrides the default notices. Empty fields keep the default.
func WithNotices(n Notices) Option {
	return func(m *Machine) {
		m.notices.Merge(&n)
	}
}

// WithObserver sets the observer that receives transition events.
func WithObserver(o observability.Observer) Option {
	return func(m *Machine) {
		m.observer = o
	}
}

// NewMachine creates a Machine over store.
func NewMachine(store session.Store, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		notices:  DefaultNotices(),
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Notices returns the notices in effect.
func (m *Machine) Notices() Notices {
	return m.notices
}

// Apply fires trigger t on session id, creating the session if needed.
// When the state changes the new state is stored and the matching notice is
// appended with sender system. If the notice cannot be appended the previous
// state is restored and the error returned, so state and transcript agree.
func (m *Machine) Apply(ctx context.Context, id string, t Trigger) (Transition, error) {
	if !t.IsValid() {
		return Transition{}, fmt.Errorf("%w: %q", ErrUnknownTrigger, t)
	}

	conv, err := m.store.GetOrCreate(ctx, id)
	if err != nil {
		return Transition{}, fmt.Errorf("load session: %w", err)
	}

	to, changed := Next(conv.State, t)
	tr := Transition{
		SessionID: id,
		From:      conv.State,
		To:        to,
		Trigger:   t,
		Changed:   changed,
	}

	if changed {
		if err := m.store.SetState(ctx, id, to); err != nil {
			return Transition{}, fmt.Errorf("store state: %w", err)
		}
		msg, err := m.store.Append(ctx, id, session.SenderSystem, m.notices.For(t))
		if err != nil {
			if rerr := m.store.SetState(ctx, id, tr.From); rerr != nil {
				return Transition{}, fmt.Errorf("append notice: %w (restore state: %w)", err, rerr)
			}
			return Transition{}, fmt.Errorf("append notice: %w", err)
		}
		tr.Notice = &msg
	}

	level := observability.LevelVerbose
	if changed {
		level = observability.LevelInfo
	}
	m.observer.OnEvent(ctx, observability.Event{
		Type:      EventTransition,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "handoff",
		Data: map[string]any{
			"session_id": id,
			"trigger":    string(t),
			"from":       string(tr.From),
			"to":         string(tr.To),
			"changed":    changed,
		},
	})

	return tr, nil
}

// RequestHuman moves the session to human_active. Already human_active is
// a no-op.
func (m *Machine) RequestHuman(ctx context.Context, id string) (Transition, error) {
	return m.Apply(ctx, id, TriggerRequestHuman)
}

// AutoEscalate moves an ai_active session to human_active with the
// escalation notice.
func (m *Machine) AutoEscalate(ctx context.Context, id string) (Transition, error) {
	return m.Apply(ctx, id, TriggerAutoEscalate)
}

// CloseHandoff returns a human_active session to ai_active.
func (m *Machine) CloseHandoff(ctx context.Context, id string) (Transition, error) {
	return m.Apply(ctx, id, TriggerClose)
}

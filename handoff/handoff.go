// Package handoff implements the per-session state machine that decides
// whether the automated assistant or a human operator owns a conversation.
//
// The machine has two states and three triggers. Every transition that
// changes state appends a system notice to the transcript. Self-transitions
// are no-ops and append nothing.
//
// The Machine does not lock. Callers serialize Apply per session id.
package handoff

import "github.com/tailored-agentic-units/lifeline/session"

// Trigger is an input to the state machine.
type Trigger string

const (
	// TriggerRequestHuman is an explicit request for a human operator,
	// by the user or on their behalf.
	TriggerRequestHuman Trigger = "request_human"
	// TriggerAutoEscalate is raised when a critical message is detected.
	TriggerAutoEscalate Trigger = "auto_escalate"
	// TriggerClose returns the conversation to the assistant.
	TriggerClose Trigger = "close"
)

// IsValid reports whether t is a known trigger.
func (t Trigger) IsValid() bool {
	switch t {
	case TriggerRequestHuman, TriggerAutoEscalate, TriggerClose:
		return true
	}
	return false
}

type edge struct {
	from    session.State
	trigger Trigger
}

var table = map[edge]session.State{
	{session.StateAIActive, TriggerRequestHuman}: session.StateHumanActive,
	{session.StateAIActive, TriggerAutoEscalate}: session.StateHumanActive,
	{session.StateHumanActive, TriggerClose}:     session.StateAIActive,
}

// Next returns the state reached from `from` on trigger t and whether that
// is a change. Pairs absent from the table leave the state unchanged.
func Next(from session.State, t Trigger) (session.State, bool) {
	to, ok := table[edge{from, t}]
	if !ok {
		return from, false
	}
	return to, true
}

// Transition describes the outcome of one Apply call.
type Transition struct {
	SessionID string           `json:"session_id"`
	From      session.State    `json:"from"`
	To        session.State    `json:"to"`
	Trigger   Trigger          `json:"trigger"`
	Changed   bool             `json:"changed"`
	Notice    *session.Message `json:"notice,omitempty"`
}

package agent

import "github.com/tailored-agentic-units/lifeline/observability"

// Agent event types.
const (
	EventCallComplete observability.EventType = "agent.call.complete"
	EventCallFailed   observability.EventType = "agent.call.failed"
)

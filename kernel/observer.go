package kernel

import "github.com/tailored-agentic-units/lifeline/observability"

// Kernel event types. Event data carries ids, lengths and verdict metadata,
// never message text.
const (
	EventMessageReceived observability.EventType = "kernel.message.received"
	EventEscalated       observability.EventType = "kernel.escalated"
	EventSignalObserved  observability.EventType = "kernel.signal.observed"
	EventReply           observability.EventType = "kernel.reply"
	EventReplyDiscarded  observability.EventType = "kernel.reply.discarded"
	EventOperatorMessage observability.EventType = "kernel.operator.message"
	EventError           observability.EventType = "kernel.error"
)

package api

import "github.com/tailored-agentic-units/lifeline/observability"

// EventRequest is emitted once per routed request with the route template,
// never the raw path.
const EventRequest observability.EventType = "api.request"

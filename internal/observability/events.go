package observability

// Routing keys on the contact_events topic exchange.
const (
	RoutingKeyContactEvents   = "contact_events"
	RoutingKeyMessageEvents   = "message_events"
	RoutingKeyWSConversations = "ws_events.conversations"
	RoutingKeyWSPresence      = "ws_events.presence"
)

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

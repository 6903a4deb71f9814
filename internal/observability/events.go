package observability

// Routing keys for websocket lifecycle events.
const (
	RoutingWSConnect    = "ws.connect"
	RoutingWSDisconnect = "ws.disconnect"
	RoutingWSError      = "ws.error"
)

type EventEnvelope struct {
	EventType string `json:"event_type"`
	EventName string `json:"event_name"`
	Payload   any    `json:"payload"`
}

// WSLifecyclePayload describes one websocket connection.
type WSLifecyclePayload struct {
	ConnectionID string `json:"connection_id"`
	AccountID    int    `json:"account_id"`
	Role         string `json:"role"`
	IP           string `json:"ip,omitempty"`
	DeviceID     string `json:"device_id,omitempty"`
	DurationMS   int64  `json:"duration_ms,omitempty"`
	Error        string `json:"error,omitempty"`
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

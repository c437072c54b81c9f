// Package audit defines per-call audit events and publisher interfaces for
// the broker dispatch layer.
package audit

import "encoding/json"

// Call outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Event records the outcome of one dispatched broker call. The uid is the
// one resolved from the bus daemon, so the stream is usable as an
// authorization audit trail.
type Event struct {
	Service           string `json:"service"`
	Method            string `json:"method"`
	CorrelationID     string `json:"correlationId,omitempty"`
	SessionID         string `json:"sessionId,omitempty"`
	UID               uint32 `json:"uid"`
	Authenticated     bool   `json:"authenticated"`
	Outcome           string `json:"outcome"`
	Reason            string `json:"reason,omitempty"`
	ProtocolVersion   string `json:"protocolVersion,omitempty"`
	ProtocolSupported bool   `json:"protocolSupported"`
	DurationMs        int64  `json:"durationMs"`
	Timestamp         string `json:"timestamp"`
}

// Encode serializes the event for the wire.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent deserializes a wire payload back into an Event.
func DecodeEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

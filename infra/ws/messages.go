package ws

import (
	"encoding/json"

	"github.com/kilianp07/battsim/core/sim"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Message type constants
const (
	// Client -> Server
	TypeCommand = "command"

	// Server -> Client
	TypeBatteryState  = "battery_state"
	TypeSessionEvent  = "session_event"
	TypeCommandResult = "command_result"
	TypeError         = "error"
)

// ResultPayload answers a command envelope.
type ResultPayload struct {
	sim.Result
	Error string `json:"error,omitempty"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	return newEnvelope(msgType, "", payload)
}

func newEnvelope(msgType, requestID string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, RequestID: requestID, Payload: raw})
}

package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types of the cycle streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeCycle        = "cycle"
	TypeEndSession   = "end_session"
	TypeAck          = "ack"
)

// Envelope wraps every message sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the server's acknowledgement of a start or end message.
type AckMessage struct {
	Type string `json:"type"`
	For  string `json:"for"`
}

// StartSessionPayload opens a stream of cycles.
type StartSessionPayload struct {
	Session   string    `json:"session"`
	StartedAt time.Time `json:"startedAt"`
}

// EndSessionPayload closes a stream and reports how many cycles were sent.
type EndSessionPayload struct {
	Session string `json:"session"`
	Cycles  uint64 `json:"cycles"`
}

func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

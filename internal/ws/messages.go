package ws

import "encoding/json"

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgRunStarted  MessageType = "run_started"
	MsgDropResult  MessageType = "drop_result"
	MsgRoundDone   MessageType = "round_complete"
	MsgRunComplete MessageType = "run_complete"
	MsgError       MessageType = "error"
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage creates a new Message with the given type and payload.
func NewMessage(typ MessageType, payload any) ([]byte, error) {
	var p json.RawMessage
	if payload != nil {
		var err error
		p, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Message{Type: typ, Payload: p})
}

// DropResultPayload reports one drop attempt to subscribers.
type DropResultPayload struct {
	Kind   string `json:"kind"`
	Owner  string `json:"owner"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// RoundPayload reports per-round progress to subscribers.
type RoundPayload struct {
	Round   int `json:"round"`
	Listed  int `json:"listed"`
	Dropped int `json:"dropped"`
}

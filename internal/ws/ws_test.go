package ws

import (
	"encoding/json"
	"testing"
)

func TestNewMessage(t *testing.T) {
	data, err := NewMessage(MsgRoundDone, RoundPayload{Round: 2, Listed: 5, Dropped: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("message is not valid JSON: %v", err)
	}
	if msg.Type != MsgRoundDone {
		t.Errorf("type = %q, want %q", msg.Type, MsgRoundDone)
	}

	var payload RoundPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload.Dropped != 3 {
		t.Errorf("dropped = %d, want 3", payload.Dropped)
	}
}

func TestNewMessageNilPayload(t *testing.T) {
	data, err := NewMessage(MsgRunStarted, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("message is not valid JSON: %v", err)
	}
	if len(msg.Payload) != 0 {
		t.Errorf("payload should be empty, got %s", msg.Payload)
	}
}

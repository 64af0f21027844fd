package websocket

import (
	"encoding/json"
	"time"

	"collabnotes-server/internal/domain"
)

type MessageType string

const (
	TypeLockAcquired   = MessageType(domain.EventLockAcquired)
	TypeLockReleased   = MessageType(domain.EventLockReleased)
	TypeVersionCreated = MessageType(domain.EventVersionCreated)
	TypeNoteRestored   = MessageType(domain.EventNoteRestored)

	TypeLockStatusRequest  MessageType = "lock_status_request"
	TypeLockStatusResponse MessageType = "lock_status_response"
	TypeError              MessageType = "error"
	TypePing               MessageType = "ping"
	TypePong               MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type LockStatusRequestPayload struct {
	NoteID string `json:"note_id"`
}

type LockStatusResponsePayload struct {
	NoteID string `json:"note_id"`
	domain.EditStatus
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	var payloadBytes json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		payloadBytes = bytes
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Payload:   payloadBytes,
	}, nil
}

// EventMessage wraps a note event; the message type is the event type.
func EventMessage(event domain.NoteEvent) (*Message, error) {
	msg, err := NewMessage(MessageType(event.Type), event)
	if err != nil {
		return nil, err
	}
	msg.Timestamp = event.OccurredAt
	return msg, nil
}

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

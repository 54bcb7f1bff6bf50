package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wealthwatch/internal/core"
)

// MessageVersion is bumped whenever the wire form changes incompatibly.
const MessageVersion = 1

// EventMessage is the wire form of one ledger event.
type EventMessage struct {
	Version     int              `json:"version"`
	Event       core.LedgerEvent `json:"event"`
	PublishedAt time.Time        `json:"published_at"`
}

func NewEventMessage(e core.LedgerEvent) *EventMessage {
	return &EventMessage{
		Version:     MessageVersion,
		Event:       e,
		PublishedAt: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes and checks a message.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Version != MessageVersion {
		return nil, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	if msg.Event.EventID == "" || msg.Event.Type == "" {
		return nil, errors.New("message carries no event")
	}
	return &msg, nil
}

package websocket

import (
	"encoding/json"
	"time"

	"uav-fleet-server/internal/domain"
)

type MessageType string

const (
	TypeLocationUpdate MessageType = MessageType(domain.EventDeviceLocationUpdate)
	TypeStatusUpdate   MessageType = MessageType(domain.EventDeviceStatusUpdate)
	TypeNFZBreach      MessageType = MessageType(domain.EventNFZBreach)
	TypeUserNotice     MessageType = MessageType(domain.EventUserNotice)
	TypePing           MessageType = "ping"
	TypePong           MessageType = "pong"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
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

func (m *Message) UnmarshalPayload(v interface{}) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

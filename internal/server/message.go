package server

import (
	"encoding/json"
	"time"

	"github.com/lox/marbleguess/internal/game"
)

// MessageType identifies a broadcast message with type safety.
type MessageType string

const (
	// MessageTypeSubscribed acknowledges a new subscription and carries the
	// current snapshot when the game still exists.
	MessageTypeSubscribed MessageType = "subscribed"

	// MessageTypeGameState carries the full authoritative snapshot pushed
	// after every successful mutating operation, including the terminal one
	// after a quit.
	MessageTypeGameState MessageType = "game_state"

	// MessageTypeError reports a boundary-level problem to a subscriber.
	MessageTypeError MessageType = "error"
)

// String returns the string representation of the message type.
func (mt MessageType) String() string {
	return string(mt)
}

// Message is the envelope for every frame pushed over the broadcast feed.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(messageType MessageType, data interface{}) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// SubscribedData acknowledges a subscription.
type SubscribedData struct {
	GameID string     `json:"gameId"`
	Game   *game.Game `json:"game,omitempty"`
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

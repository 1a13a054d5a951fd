package queue

import (
	"encoding/json"
	"time"
)

// CurrentVersion is stamped on every message produced by this build.
const CurrentVersion = 1

// Kinds of signer notification.
const (
	KindSignatureRequested = "signature_requested"
	KindPublicLink         = "public_link"
)

// Message is the notification payload handed to the delivery worker.
type Message struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Recipient     string    `json:"recipient"`
	RecipientName string    `json:"recipientName,omitempty"`
	DocumentID    string    `json:"documentId"`
	DocumentTitle string    `json:"documentTitle"`
	Link          string    `json:"link,omitempty"`
	ExpiresAt     time.Time `json:"expiresAt"`
	EnqueuedAt    string    `json:"enqueuedAt"`
	Version       int       `json:"version"`
}

// EncodeMessage returns the JSON representation of a message.
func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a JSON payload into a Message.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

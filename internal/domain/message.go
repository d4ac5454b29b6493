package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageID string

type MessageKind string

const (
	KindText   MessageKind = "text"
	KindAudio  MessageKind = "audio"
	KindSystem MessageKind = "system"
)

// Message is immutable after persistence. Delivery status is a client-side
// projection; the server only promises "persisted" then "broadcast".
type Message struct {
	ID           MessageID   `json:"id"`
	RoomID       RoomID      `json:"roomId"`
	AuthorID     UserID      `json:"authorId"`
	DisplayName  string      `json:"displayName"`
	Kind         MessageKind `json:"kind"`
	Body         string      `json:"body"`
	CreatedAt    time.Time   `json:"createdAt"`
	ClientTempID string      `json:"clientTempId,omitempty"`
}

func NewMessage(roomID RoomID, author UserID, displayName string, kind MessageKind, body, clientTempID string) *Message {
	return &Message{
		ID:           MessageID(uuid.NewString()),
		RoomID:       roomID,
		AuthorID:     author,
		DisplayName:  displayName,
		Kind:         kind,
		Body:         body,
		CreatedAt:    time.Now().UTC(),
		ClientTempID: clientTempID,
	}
}

func NewSystemMessage(roomID RoomID, body string) *Message {
	return NewMessage(roomID, "", "system", KindSystem, body, "")
}

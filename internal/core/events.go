package core

import "github.com/fadechat/fadechat/internal/domain"

// Server -> client event names. Every event is a tagged variant with a
// fixed Type so clients can dispatch without duck typing.
const (
	EvBound         = "bound"
	EvJoined        = "joined"
	EvLeft          = "left"
	EvUserJoined    = "user_joined"
	EvUserLeft      = "user_left"
	EvMembers       = "members"
	EvMessage       = "message"
	EvMessageAck    = "message_ack"
	EvRoomClosed    = "room_closed"
	EvMatchFound    = "match_found"
	EvPairingQueued = "pairing_queued"
	EvPairingError  = "pairing_error"
	EvPong          = "pong"
	EvWhoAmI        = "whoami"
	EvError         = "error"
	EvReset         = "reset"
)

type BoundEvent struct {
	Type string      `json:"type"`
	User domain.User `json:"user"`
}

// JoinedEvent goes directly to the joining connection and carries the
// authoritative member list read back from the store.
type JoinedEvent struct {
	Type    string          `json:"type"`
	Room    *domain.Room    `json:"room"`
	Members []domain.Member `json:"members"`
}

type UserJoinedEvent struct {
	Type   string        `json:"type"`
	Room   domain.RoomID `json:"room"`
	Member domain.Member `json:"member"`
}

type UserLeftEvent struct {
	Type      string        `json:"type"`
	Room      domain.RoomID `json:"room"`
	Member    domain.Member `json:"member"`
	Remaining int           `json:"remaining"`
}

// MembersEvent publishes who is actually online: the membership set
// intersected with live room-group connections.
type MembersEvent struct {
	Type   string          `json:"type"`
	Room   domain.RoomID   `json:"room"`
	Online []domain.Member `json:"online"`
}

type MessageEvent struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

// MessageAckEvent is sent to the originating connection only, carrying the
// durable id so the client can reconcile its optimistic copy.
type MessageAckEvent struct {
	Type         string           `json:"type"`
	MessageID    domain.MessageID `json:"messageId"`
	ClientTempID string           `json:"clientTempId,omitempty"`
}

type RoomClosedEvent struct {
	Type   string        `json:"type"`
	Room   domain.RoomID `json:"room"`
	Reason string        `json:"reason,omitempty"`
}

type MatchFoundEvent struct {
	Type string        `json:"type"`
	Room domain.RoomID `json:"room"`
}

type PairingQueuedEvent struct {
	Type string `json:"type"`
}

type PairingErrorEvent struct {
	Type   string        `json:"type"`
	Room   domain.RoomID `json:"room,omitempty"`
	Reason string        `json:"reason"`
}

type ErrorEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ResetEvent asks the client to drop its session state and start over,
// e.g. after an unrecoverable binding loss.
type ResetEvent struct {
	Type string `json:"type"`
}

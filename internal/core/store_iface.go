package core

import (
	"context"

	"github.com/fadechat/fadechat/internal/domain"
)

// The engine never talks to the external store directly; everything goes
// through these interfaces so the core stays testable against in-memory
// fakes. Implementations live under internal/adapters/redisstore.

// IdentityStore maps generated user ids to display names. Records carry a
// TTL refreshed on liveness pings; a vanished user simply expires.
type IdentityStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id domain.UserID) (*domain.User, error)
	DeleteUser(ctx context.Context, id domain.UserID) error
	RefreshLiveness(ctx context.Context, id domain.UserID) error
	NameTaken(ctx context.Context, displayName string) (bool, error)
}

// RoomStore holds room records plus the authoritative membership set per
// room. AddMember and RemoveMember are idempotent; no read-modify-write on
// the set is assumed atomic, so mutations are re-verified by re-reading.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *domain.Room) error
	GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	DeleteRoom(ctx context.Context, id domain.RoomID) error
	ListRooms(ctx context.Context) ([]*domain.Room, error)

	AddMember(ctx context.Context, roomID domain.RoomID, m domain.Member) error
	RemoveMember(ctx context.Context, roomID domain.RoomID, uid domain.UserID) error
	Members(ctx context.Context, roomID domain.RoomID) ([]domain.Member, error)
}

// MessageLog is an append-only bounded list per room, used to replay
// history to newly joined connections.
type MessageLog interface {
	Append(ctx context.Context, msg *domain.Message) error
	Recent(ctx context.Context, roomID domain.RoomID, limit int) ([]*domain.Message, error)
	Drop(ctx context.Context, roomID domain.RoomID) error
}

// PairingQueue is the TTL-bounded waiting list for random pairing.
type PairingQueue interface {
	Push(ctx context.Context, e domain.PairingEntry) error
	// Pop removes and returns the oldest non-expired entry, if any.
	Pop(ctx context.Context) (domain.PairingEntry, bool, error)
	Remove(ctx context.Context, uid domain.UserID) error
}

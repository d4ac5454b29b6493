package domain

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

const (
	MaxRoomNameLen  = 64
	DefaultMaxUsers = 35
	PairRoomSize    = 2
)

var (
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
	ErrBadRoomCode     = errors.New("bad room code")
)

// Custom room codes become the room id, so they must stay url- and key-safe.
var roomCodeRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{3,31}$`)

type RoomID string

type Room struct {
	ID        RoomID    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   UserID    `json:"ownerId"`
	MaxUsers  int       `json:"maxUsers"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewRoom(name string, owner UserID, maxUsers int, customCode string) (*Room, error) {
	if len(name) == 0 {
		return nil, ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		return nil, ErrRoomNameTooLong
	}
	if maxUsers <= 0 {
		maxUsers = DefaultMaxUsers
	}
	id := RoomID(uuid.NewString())
	if customCode != "" {
		if !roomCodeRe.MatchString(customCode) {
			return nil, ErrBadRoomCode
		}
		id = RoomID(customCode)
	}
	return &Room{
		ID:        id,
		Name:      name,
		OwnerID:   owner,
		MaxUsers:  maxUsers,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// IsPairRoom reports whether the room has the random-chat shape.
// Such rooms die as soon as they drop below two members.
func (r *Room) IsPairRoom() bool { return r.MaxUsers == PairRoomSize }

// Member is one entry of a room's membership set. The set lives in the
// external store and is the single source of truth for "who is in this room";
// it is never inferred from connection objects.
type Member struct {
	UserID      UserID `json:"userId"`
	DisplayName string `json:"displayName"`
}

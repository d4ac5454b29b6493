package core

import (
	"errors"
	"sync"

	"github.com/fadechat/fadechat/internal/domain"
)

type ConnID string

// ConnState enumerates the per-connection lifecycle. Transitions are
// guarded; an invalid transition is rejected outright instead of being
// patched up with scattered booleans.
type ConnState int

const (
	StateUnbound ConnState = iota
	StateBound
	StateJoining
	StateJoined
	StateLeaving
	StateDisconnecting
)

func (s ConnState) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateJoining:
		return "joining"
	case StateJoined:
		return "joined"
	case StateLeaving:
		return "leaving"
	case StateDisconnecting:
		return "disconnecting"
	}
	return "unknown"
}

var ErrInvalidTransition = errors.New("invalid connection state transition")

// Conn is the per-connection state object. It is owned by the binder,
// passed around by reference and never persisted externally. The bound
// room id is non-empty only while the connection is a verified member of
// that room's broadcast group.
type Conn struct {
	id     ConnID
	signal SignalConnection

	mu          sync.Mutex
	state       ConnState
	userID      domain.UserID
	displayName string
	roomID      domain.RoomID
	cleanedUp   bool
}

func NewConn(id ConnID, signal SignalConnection) *Conn {
	return &Conn{id: id, signal: signal, state: StateUnbound}
}

func (c *Conn) ID() ConnID               { return c.id }
func (c *Conn) Signal() SignalConnection { return c.signal }

func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) UserID() domain.UserID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Conn) DisplayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayName
}

func (c *Conn) RoomID() domain.RoomID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

// Snapshot returns a consistent view of the mutable fields.
func (c *Conn) Snapshot() (ConnState, domain.UserID, domain.RoomID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.userID, c.roomID
}

// Bind associates the connection with a user. Idempotent; rebinding to a
// different user returns the previous id so the caller can unwind the old
// association first. Allowed from Unbound and Bound only.
func (c *Conn) Bind(uid domain.UserID, displayName string) (prev domain.UserID, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUnbound && c.state != StateBound {
		return "", ErrInvalidTransition
	}
	prev = c.userID
	c.userID = uid
	c.displayName = displayName
	c.state = StateBound
	return prev, nil
}

// BeginJoin moves Bound -> Joining for the claimed (room, user) pair.
func (c *Conn) BeginJoin(roomID domain.RoomID, uid domain.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateBound || c.userID != uid {
		return ErrInvalidTransition
	}
	c.state = StateJoining
	return nil
}

// CompleteJoin moves Joining -> Joined. It fails when the join was
// superseded by a leave or disconnect while in flight, in which case the
// caller must not emit success.
func (c *Conn) CompleteJoin(roomID domain.RoomID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateJoining {
		return ErrInvalidTransition
	}
	c.state = StateJoined
	c.roomID = roomID
	return nil
}

// FailJoin rolls Joining back to Bound.
func (c *Conn) FailJoin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateJoining {
		c.state = StateBound
		c.roomID = ""
	}
}

func (c *Conn) BeginLeave() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateJoined {
		return ErrInvalidTransition
	}
	c.state = StateLeaving
	return nil
}

func (c *Conn) CompleteLeave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateLeaving || c.state == StateJoined {
		c.state = StateBound
		c.roomID = ""
	}
}

// BeginDisconnect marks the connection as disconnect-processing and
// returns what was bound at that moment. A second call reports that
// cleanup is already running.
func (c *Conn) BeginDisconnect() (uid domain.UserID, roomID domain.RoomID, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnecting {
		return "", "", ErrInvalidTransition
	}
	uid, roomID = c.userID, c.roomID
	c.state = StateDisconnecting
	c.roomID = ""
	return uid, roomID, nil
}

// FinishDisconnect marks cleanup as done. Idempotent.
func (c *Conn) FinishDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cleanedUp = true
}

func (c *Conn) CleanedUp() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanedUp
}

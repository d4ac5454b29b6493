package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

// Binder owns every live connection object and the connection<->user
// association. It is the only place that knows how many sockets a user
// has open; everyone else asks it.
type Binder struct {
	identity core.IdentityStore
	groups   *core.Groups

	mu     sync.RWMutex
	conns  map[core.ConnID]*core.Conn
	byUser map[domain.UserID]map[core.ConnID]*core.Conn
}

func NewBinder(identity core.IdentityStore, groups *core.Groups) *Binder {
	return &Binder{
		identity: identity,
		groups:   groups,
		conns:    make(map[core.ConnID]*core.Conn),
		byUser:   make(map[domain.UserID]map[core.ConnID]*core.Conn),
	}
}

// Register adds a freshly opened connection, still unbound.
func (b *Binder) Register(c *core.Conn) {
	b.mu.Lock()
	b.conns[c.ID()] = c
	b.mu.Unlock()
	log.Info().Str("module", "app.binder").Str("conn", string(c.ID())).Msg("connection registered")
}

func (b *Binder) Conn(id core.ConnID) (*core.Conn, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.conns[id]
	return c, ok
}

// Bind associates a connection with a user id. Idempotent; rebinding to a
// different user unwinds the previous association first. The caller must
// wait for the returned confirmation before requesting a join, otherwise
// a join can race ahead of identity binding.
func (b *Binder) Bind(ctx context.Context, connID core.ConnID, uid domain.UserID) (*domain.User, error) {
	c, ok := b.Conn(connID)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	user, err := b.identity.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	prev, err := c.Bind(uid, user.DisplayName)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if prev != "" && prev != uid {
		if set, ok := b.byUser[prev]; ok {
			delete(set, connID)
			if len(set) == 0 {
				delete(b.byUser, prev)
			}
		}
	}
	set, ok := b.byUser[uid]
	if !ok {
		set = make(map[core.ConnID]*core.Conn)
		b.byUser[uid] = set
	}
	set[connID] = c
	b.mu.Unlock()

	if prev != "" && prev != uid {
		b.groups.LeaveUser(prev, connID)
	}
	// Every bound connection joins the private per-user group so
	// server-initiated events reach all of a user's open tabs.
	b.groups.JoinUser(uid, c)

	// Binding never fails on a liveness hiccup; the TTL catches up on the
	// next refresh.
	if err := b.identity.RefreshLiveness(ctx, uid); err != nil {
		log.Warn().Err(err).Str("module", "app.binder").Str("user", string(uid)).Msg("liveness refresh failed")
	}

	log.Info().Str("module", "app.binder").Str("conn", string(connID)).Str("user", string(uid)).Msg("bound")
	return user, nil
}

// Touch refreshes the bound user's store-side liveness TTL. Called on
// client pings; best effort.
func (b *Binder) Touch(ctx context.Context, connID core.ConnID) {
	c, ok := b.Conn(connID)
	if !ok {
		return
	}
	uid := c.UserID()
	if uid == "" {
		return
	}
	if err := b.identity.RefreshLiveness(ctx, uid); err != nil {
		log.Debug().Err(err).Str("module", "app.binder").Str("user", string(uid)).Msg("liveness refresh failed")
	}
}

// Unbind removes the connection's user association and reports how many
// live connections the user has left.
func (b *Binder) Unbind(connID core.ConnID) int {
	b.mu.Lock()
	c, ok := b.conns[connID]
	if !ok {
		b.mu.Unlock()
		return 0
	}
	uid := c.UserID()
	remaining := 0
	if uid != "" {
		if set, ok := b.byUser[uid]; ok {
			delete(set, connID)
			remaining = len(set)
			if remaining == 0 {
				delete(b.byUser, uid)
			}
		}
	}
	b.mu.Unlock()
	if uid != "" {
		b.groups.LeaveUser(uid, connID)
	}
	return remaining
}

// Drop unbinds and forgets the connection entirely. Used on transport
// loss; the connection object itself stays alive for in-flight cleanup.
func (b *Binder) Drop(connID core.ConnID) {
	b.Unbind(connID)
	b.mu.Lock()
	delete(b.conns, connID)
	b.mu.Unlock()
	log.Info().Str("module", "app.binder").Str("conn", string(connID)).Msg("connection dropped")
}

// LiveConnectionCount reports how many connections are currently bound to
// the user. Zero means the user has no sockets left anywhere.
func (b *Binder) LiveConnectionCount(uid domain.UserID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byUser[uid])
}

// LiveInRoom counts the user's connections currently joined to the room.
// The disconnect path re-scans with this before touching membership so
// multi-tab users only disappear when their last tab goes.
func (b *Binder) LiveInRoom(uid domain.UserID, roomID domain.RoomID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, c := range b.byUser[uid] {
		if st, _, rid := c.Snapshot(); st == core.StateJoined && rid == roomID {
			n++
		}
	}
	return n
}

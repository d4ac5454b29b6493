package core

import (
	"sync"

	"github.com/fadechat/fadechat/internal/domain"
)

// Groups tracks which connections receive events addressed to a room, and
// which receive private per-user notifications (all of a user's open tabs).
// Threadsafe; it never closes adapter-owned transports.
type Groups struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]map[ConnID]*Conn
	users map[domain.UserID]map[ConnID]*Conn
}

func NewGroups() *Groups {
	return &Groups{
		rooms: make(map[domain.RoomID]map[ConnID]*Conn),
		users: make(map[domain.UserID]map[ConnID]*Conn),
	}
}

func (g *Groups) JoinRoom(roomID domain.RoomID, c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.rooms[roomID]
	if !ok {
		set = make(map[ConnID]*Conn)
		g.rooms[roomID] = set
	}
	set[c.ID()] = c
}

func (g *Groups) LeaveRoom(roomID domain.RoomID, id ConnID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if set, ok := g.rooms[roomID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(g.rooms, roomID)
		}
	}
}

// InRoom reports whether the connection's room-group membership is live.
func (g *Groups) InRoom(roomID domain.RoomID, id ConnID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	set, ok := g.rooms[roomID]
	if !ok {
		return false
	}
	_, ok = set[id]
	return ok
}

func (g *Groups) RoomConns(roomID domain.RoomID) []*Conn {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Conn, 0, len(g.rooms[roomID]))
	for _, c := range g.rooms[roomID] {
		out = append(out, c)
	}
	return out
}

func (g *Groups) JoinUser(uid domain.UserID, c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.users[uid]
	if !ok {
		set = make(map[ConnID]*Conn)
		g.users[uid] = set
	}
	set[c.ID()] = c
}

func (g *Groups) LeaveUser(uid domain.UserID, id ConnID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if set, ok := g.users[uid]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(g.users, uid)
		}
	}
}

func (g *Groups) UserConns(uid domain.UserID) []*Conn {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Conn, 0, len(g.users[uid]))
	for _, c := range g.users[uid] {
		out = append(out, c)
	}
	return out
}

// DropRoom removes the whole room group, returning the evicted connections.
func (g *Groups) DropRoom(roomID domain.RoomID) []*Conn {
	g.mu.Lock()
	defer g.mu.Unlock()
	set := g.rooms[roomID]
	delete(g.rooms, roomID)
	out := make([]*Conn, 0, len(set))
	for _, c := range set {
		out = append(out, c)
	}
	return out
}

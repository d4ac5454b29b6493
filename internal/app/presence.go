package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

// Presence publishes "who is actually online" per room: the authoritative
// membership set intersected with live room-group connections. The
// intersection hides drifted membership entries from users even before the
// reaper physically removes them.
type Presence struct {
	cfg    Config
	rooms  core.RoomStore
	groups *core.Groups
}

func NewPresence(cfg Config, rooms core.RoomStore, groups *core.Groups) *Presence {
	return &Presence{cfg: cfg, rooms: rooms, groups: groups}
}

func (p *Presence) Recompute(ctx context.Context, roomID domain.RoomID) {
	members, err := p.rooms.Members(ctx, roomID)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.presence").Str("room", string(roomID)).Msg("members read failed")
		return
	}
	conns := p.groups.RoomConns(roomID)
	live := make(map[domain.UserID]bool, len(conns))
	for _, c := range conns {
		live[c.UserID()] = true
	}
	online := make([]domain.Member, 0, len(members))
	for _, m := range members {
		if live[m.UserID] {
			online = append(online, m)
		}
	}
	broadcastRoom(p.groups, roomID, core.MembersEvent{Type: core.EvMembers, Room: roomID, Online: online})
}

// Run is the periodic safety sweep; joins, leaves and disconnects trigger
// Recompute directly.
func (p *Presence) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PresenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Presence) sweep(ctx context.Context) {
	sctx, cancel := p.cfg.storeCtx(ctx)
	defer cancel()
	rooms, err := p.rooms.ListRooms(sctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.presence").Msg("room list failed")
		return
	}
	for _, room := range rooms {
		p.Recompute(sctx, room.ID)
	}
}

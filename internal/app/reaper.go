package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

// Reaper is the background sweep: it drops membership entries whose
// connections silently vanished, and deletes rooms that have been empty
// for longer than the grace period. The grace period exists so a page
// reload does not destroy room state under the remaining members.
type Reaper struct {
	cfg      Config
	rooms    core.RoomStore
	messages core.MessageLog
	binder   *Binder
	groups   *core.Groups
	presence *Presence

	mu         sync.Mutex
	emptySince map[domain.RoomID]time.Time
}

func NewReaper(cfg Config, rooms core.RoomStore, messages core.MessageLog, binder *Binder, groups *core.Groups, presence *Presence) *Reaper {
	return &Reaper{
		cfg:        cfg,
		rooms:      rooms,
		messages:   messages,
		binder:     binder,
		groups:     groups,
		presence:   presence,
		emptySince: make(map[domain.RoomID]time.Time),
	}
}

// MarkEmpty starts the grace clock for a room observed empty. Idempotent;
// the first observation wins.
func (r *Reaper) MarkEmpty(roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.emptySince[roomID]; !ok {
		r.emptySince[roomID] = time.Now()
		log.Info().Str("module", "app.reaper").Str("room", string(roomID)).Msg("room empty, grace period started")
	}
}

func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReaperInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Reaper) Sweep(ctx context.Context) {
	sctx, cancel := r.cfg.storeCtx(ctx)
	defer cancel()

	rooms, err := r.rooms.ListRooms(sctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.reaper").Msg("room list failed")
		return
	}
	now := time.Now()
	for _, room := range rooms {
		if now.Sub(room.CreatedAt) < r.cfg.MinRoomAge {
			continue
		}
		r.sweepRoom(sctx, room, now)
	}
}

func (r *Reaper) sweepRoom(ctx context.Context, room *domain.Room, now time.Time) {
	members, err := r.rooms.Members(ctx, room.ID)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.reaper").Str("room", string(room.ID)).Msg("members read failed")
		return
	}

	alive := 0
	dropped := false
	for _, m := range members {
		if r.binder.LiveConnectionCount(m.UserID) > 0 {
			alive++
			continue
		}
		// self-healing against missed disconnect cleanup
		if err := r.rooms.RemoveMember(ctx, room.ID, m.UserID); err != nil {
			log.Warn().Err(err).Str("module", "app.reaper").Str("room", string(room.ID)).Str("user", string(m.UserID)).Msg("stale member removal failed")
			alive++
			continue
		}
		dropped = true
		log.Info().Str("module", "app.reaper").Str("room", string(room.ID)).Str("user", string(m.UserID)).Msg("dropped stale member")
	}
	if dropped {
		r.presence.Recompute(ctx, room.ID)
	}

	if alive > 0 {
		r.mu.Lock()
		delete(r.emptySince, room.ID)
		r.mu.Unlock()
		return
	}

	r.mu.Lock()
	since, ok := r.emptySince[room.ID]
	if !ok {
		r.emptySince[room.ID] = now
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	if now.Sub(since) >= r.cfg.GracePeriod {
		closeRoom(ctx, r.rooms, r.messages, r.groups, room.ID, "expired")
		r.mu.Lock()
		delete(r.emptySince, room.ID)
		r.mu.Unlock()
	}
}

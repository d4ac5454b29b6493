package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

type PairResult struct {
	Matched bool
	Queued  bool
	RoomID  domain.RoomID
}

// Pairing matches two strangers into a fresh two-person room. Matched
// users are notified over their private per-user groups, since neither
// has joined the new room yet.
type Pairing struct {
	cfg      Config
	queue    core.PairingQueue
	rooms    core.RoomStore
	identity core.IdentityStore
	binder   *Binder
	groups   *core.Groups
}

func NewPairing(cfg Config, queue core.PairingQueue, rooms core.RoomStore, identity core.IdentityStore, binder *Binder, groups *core.Groups) *Pairing {
	return &Pairing{cfg: cfg, queue: queue, rooms: rooms, identity: identity, binder: binder, groups: groups}
}

func (p *Pairing) Enqueue(ctx context.Context, userID domain.UserID) (PairResult, error) {
	sctx, cancel := p.cfg.storeCtx(ctx)
	defer cancel()

	user, err := p.identity.GetUser(sctx, userID)
	if err != nil {
		return PairResult{}, err
	}

	for {
		waiting, ok, err := p.queue.Pop(sctx)
		if err != nil {
			return PairResult{}, err
		}
		if !ok {
			break
		}
		if waiting.UserID == userID {
			// stale entry from a double request; drop it and keep looking
			continue
		}
		if p.binder.LiveConnectionCount(waiting.UserID) == 0 {
			log.Info().Str("module", "app.pairing").Str("user", string(waiting.UserID)).Msg("skipping vanished waiter")
			continue
		}
		return p.match(ctx, sctx, user, waiting)
	}

	entry := domain.PairingEntry{UserID: userID, DisplayName: user.DisplayName, EnqueuedAt: time.Now().UTC()}
	if err := p.queue.Push(sctx, entry); err != nil {
		return PairResult{}, err
	}
	log.Info().Str("module", "app.pairing").Str("user", string(userID)).Msg("queued for pairing")
	return PairResult{Queued: true}, nil
}

func (p *Pairing) match(ctx, sctx context.Context, user *domain.User, waiting domain.PairingEntry) (PairResult, error) {
	room, err := domain.NewRoom("Random Chat", waiting.UserID, domain.PairRoomSize, "")
	if err != nil {
		return PairResult{}, err
	}
	if err := p.rooms.CreateRoom(sctx, room); err != nil {
		return PairResult{}, err
	}
	if err := p.rooms.AddMember(sctx, room.ID, domain.Member{UserID: waiting.UserID, DisplayName: waiting.DisplayName}); err != nil {
		_ = p.rooms.DeleteRoom(sctx, room.ID)
		return PairResult{}, err
	}
	if err := p.rooms.AddMember(sctx, room.ID, domain.Member{UserID: user.ID, DisplayName: user.DisplayName}); err != nil {
		_ = p.rooms.DeleteRoom(sctx, room.ID)
		return PairResult{}, err
	}

	log.Info().Str("module", "app.pairing").Str("room", string(room.ID)).Str("a", string(waiting.UserID)).Str("b", string(user.ID)).Msg("matched")

	// The caller learns the room id from the ack; the waiter (and the
	// caller's other tabs) via the private group. The retries must not
	// die with the caller's request, so cancellation is detached.
	nctx := context.WithoutCancel(ctx)
	go p.notify(nctx, waiting.UserID, room.ID)
	go p.notify(nctx, user.ID, room.ID)

	return PairResult{Matched: true, RoomID: room.ID}, nil
}

// notify retries for a short while because the target's connection may
// not be registered in its private group yet. The fallback error event is
// a required path, not an afterthought: it tells the client to poll room
// state directly.
func (p *Pairing) notify(ctx context.Context, uid domain.UserID, roomID domain.RoomID) {
	ev := core.MatchFoundEvent{Type: core.EvMatchFound, Room: roomID}
	for i := 0; i < p.cfg.PairingRetries; i++ {
		sent := false
		for _, c := range p.groups.UserConns(uid) {
			if emit(c, ev) == nil {
				sent = true
			}
		}
		if sent {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.PairingBackoff):
		}
	}
	log.Warn().Str("module", "app.pairing").Str("user", string(uid)).Str("room", string(roomID)).Msg("match notify failed")
	broadcastUser(p.groups, uid, core.PairingErrorEvent{Type: core.EvPairingError, Room: roomID, Reason: "notify-failed"})
}

func (p *Pairing) Cancel(ctx context.Context, userID domain.UserID) error {
	sctx, cancel := p.cfg.storeCtx(ctx)
	defer cancel()
	if err := p.queue.Remove(sctx, userID); err != nil {
		return err
	}
	log.Info().Str("module", "app.pairing").Str("user", string(userID)).Msg("pairing cancelled")
	return nil
}

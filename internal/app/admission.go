package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

type JoinResult struct {
	OK     bool
	Reason string
	Recent []*domain.Message
}

type LeaveResult struct {
	OK     bool
	Reason string
}

type joinFlight struct {
	roomID domain.RoomID
	userID domain.UserID
	done   chan struct{}
	res    JoinResult
}

// Admission is the join/leave/disconnect state machine. Per connection,
// these operations never run concurrently; across connections the only
// guarantees are "membership write + verify before success" and whatever
// the store's idempotent set operations give us.
type Admission struct {
	cfg      Config
	binder   *Binder
	groups   *core.Groups
	identity core.IdentityStore
	rooms    core.RoomStore
	messages core.MessageLog
	presence *Presence
	cleanup  *Cleanup

	mu       sync.Mutex
	inflight map[core.ConnID]*joinFlight
}

func NewAdmission(cfg Config, binder *Binder, groups *core.Groups, identity core.IdentityStore, rooms core.RoomStore, messages core.MessageLog, presence *Presence, cleanup *Cleanup) *Admission {
	return &Admission{
		cfg:      cfg,
		binder:   binder,
		groups:   groups,
		identity: identity,
		rooms:    rooms,
		messages: messages,
		presence: presence,
		cleanup:  cleanup,
		inflight: make(map[core.ConnID]*joinFlight),
	}
}

func (a *Admission) Join(ctx context.Context, connID core.ConnID, roomID domain.RoomID, userID domain.UserID) JoinResult {
	if roomID == "" || userID == "" {
		return JoinResult{Reason: ReasonMissingRoomOrUser}
	}
	conn, ok := a.binder.Conn(connID)
	if !ok {
		return JoinResult{Reason: ReasonUserNotFound}
	}

	a.mu.Lock()
	if fl, ok := a.inflight[connID]; ok {
		a.mu.Unlock()
		if fl.roomID != roomID || fl.userID != userID {
			return JoinResult{Reason: ReasonAlreadyJoining}
		}
		// Duplicate client retry for the same tuple: block on the
		// in-flight join instead of starting a second membership write.
		select {
		case <-fl.done:
			return fl.res
		case <-time.After(a.cfg.JoinWait):
			return JoinResult{Reason: ReasonAlreadyJoining}
		case <-ctx.Done():
			return JoinResult{Reason: ReasonAlreadyJoining}
		}
	}

	if st, uid, rid := conn.Snapshot(); st == core.StateJoined && uid == userID && rid == roomID {
		// already a verified member; re-ack idempotently
		a.mu.Unlock()
		return a.rejoin(ctx, conn, roomID)
	}

	if err := conn.BeginJoin(roomID, userID); err != nil {
		a.mu.Unlock()
		return JoinResult{Reason: ReasonAlreadyJoining}
	}
	fl := &joinFlight{roomID: roomID, userID: userID, done: make(chan struct{})}
	a.inflight[connID] = fl
	a.mu.Unlock()

	res := a.join(ctx, conn, roomID, userID)

	a.mu.Lock()
	delete(a.inflight, connID)
	a.mu.Unlock()
	fl.res = res
	close(fl.done)

	if res.OK {
		sctx, cancel := a.cfg.storeCtx(ctx)
		a.presence.Recompute(sctx, roomID)
		cancel()
	}
	return res
}

func (a *Admission) join(ctx context.Context, conn *core.Conn, roomID domain.RoomID, userID domain.UserID) JoinResult {
	sctx, cancel := a.cfg.storeCtx(ctx)
	defer cancel()

	fail := func(reason string) JoinResult {
		conn.FailJoin()
		return JoinResult{Reason: reason}
	}

	user, err := a.identity.GetUser(sctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return fail(ReasonUserNotFound)
		}
		return fail(ReasonStorage)
	}
	room, err := a.rooms.GetRoom(sctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return fail(ReasonRoomNotFound)
		}
		return fail(ReasonStorage)
	}
	members, err := a.rooms.Members(sctx, roomID)
	if err != nil {
		return fail(ReasonStorage)
	}

	// Capacity check happens before the membership write. An existing
	// member joining from another tab never counts against capacity; a
	// full room never displaces anyone.
	wasPresent := containsMember(members, userID)
	if !wasPresent && len(members) >= room.MaxUsers {
		return fail(ReasonRoomFull)
	}

	member := domain.Member{UserID: userID, DisplayName: user.DisplayName}
	if err := a.rooms.AddMember(sctx, roomID, member); err != nil {
		log.Error().Err(err).Str("module", "app.admission").Str("room", string(roomID)).Str("user", string(userID)).Msg("membership write failed")
		return fail(ReasonStorage)
	}
	a.groups.JoinRoom(roomID, conn)

	// Re-read to verify the write is visible. On mismatch, roll back; the
	// core never leaves partial membership behind.
	verified, err := a.rooms.Members(sctx, roomID)
	if err != nil || !containsMember(verified, userID) {
		log.Error().Err(err).Str("module", "app.admission").Str("room", string(roomID)).Str("user", string(userID)).Msg("membership verify failed, rolling back")
		a.rollback(sctx, conn, roomID, userID)
		conn.FailJoin()
		return JoinResult{Reason: ReasonStorage}
	}
	// A concurrent join can slip between the capacity check and the
	// write; the re-read is where an overshoot becomes visible.
	if !wasPresent && len(verified) > room.MaxUsers {
		log.Info().Str("module", "app.admission").Str("room", string(roomID)).Str("user", string(userID)).Msg("capacity overshoot, rolling back")
		a.rollback(sctx, conn, roomID, userID)
		conn.FailJoin()
		return JoinResult{Reason: ReasonRoomFull}
	}

	if err := conn.CompleteJoin(roomID); err != nil {
		// superseded by a leave or disconnect while the write was in
		// flight; undo without emitting success
		a.rollback(sctx, conn, roomID, userID)
		return JoinResult{Reason: ReasonSuperseded}
	}

	_ = emit(conn, core.JoinedEvent{Type: core.EvJoined, Room: room, Members: verified})
	for _, rc := range a.groups.RoomConns(roomID) {
		if rc.ID() != conn.ID() {
			_ = emit(rc, core.UserJoinedEvent{Type: core.EvUserJoined, Room: roomID, Member: member})
		}
	}

	recent, err := a.messages.Recent(sctx, roomID, a.cfg.HistoryLimit)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.admission").Str("room", string(roomID)).Msg("history replay failed")
	}

	log.Info().Str("module", "app.admission").Str("conn", string(conn.ID())).Str("room", string(roomID)).Str("user", string(userID)).Msg("joined")
	return JoinResult{OK: true, Recent: recent}
}

// rollback removes the broadcast-group entry and, unless another of the
// user's tabs is still joined, the membership write.
func (a *Admission) rollback(ctx context.Context, conn *core.Conn, roomID domain.RoomID, userID domain.UserID) {
	a.groups.LeaveRoom(roomID, conn.ID())
	if a.binder.LiveInRoom(userID, roomID) == 0 {
		if err := a.rooms.RemoveMember(ctx, roomID, userID); err != nil {
			log.Error().Err(err).Str("module", "app.admission").Str("room", string(roomID)).Str("user", string(userID)).Msg("rollback removal failed")
		}
	}
}

func (a *Admission) rejoin(ctx context.Context, conn *core.Conn, roomID domain.RoomID) JoinResult {
	sctx, cancel := a.cfg.storeCtx(ctx)
	defer cancel()
	room, err := a.rooms.GetRoom(sctx, roomID)
	if err != nil {
		return JoinResult{Reason: ReasonRoomNotFound}
	}
	members, err := a.rooms.Members(sctx, roomID)
	if err != nil {
		return JoinResult{Reason: ReasonStorage}
	}
	_ = emit(conn, core.JoinedEvent{Type: core.EvJoined, Room: room, Members: members})
	recent, err := a.messages.Recent(sctx, roomID, a.cfg.HistoryLimit)
	if err != nil {
		log.Warn().Err(err).Str("module", "app.admission").Str("room", string(roomID)).Msg("history replay failed")
	}
	return JoinResult{OK: true, Recent: recent}
}

func (a *Admission) Leave(ctx context.Context, connID core.ConnID, roomID domain.RoomID, userID domain.UserID) LeaveResult {
	if roomID == "" || userID == "" {
		return LeaveResult{Reason: ReasonMissingRoomOrUser}
	}
	conn, ok := a.binder.Conn(connID)
	if !ok {
		return LeaveResult{Reason: ReasonNotJoined}
	}
	st, uid, rid := conn.Snapshot()
	if st == core.StateLeaving {
		return LeaveResult{Reason: ReasonAlreadyLeaving}
	}
	if st == core.StateJoining && uid == userID {
		// supersede the in-flight join; its completion check fails and
		// rolls the membership write back
		conn.FailJoin()
		return LeaveResult{OK: true}
	}
	if st != core.StateJoined || uid != userID || rid != roomID {
		// already left; idempotent no-op, never a duplicate broadcast
		return LeaveResult{OK: true}
	}
	if err := conn.BeginLeave(); err != nil {
		return LeaveResult{Reason: ReasonAlreadyLeaving}
	}

	a.groups.LeaveRoom(roomID, connID)
	conn.CompleteLeave()

	if a.binder.LiveInRoom(userID, roomID) > 0 {
		// another tab keeps the membership alive
		sctx, cancel := a.cfg.storeCtx(ctx)
		a.presence.Recompute(sctx, roomID)
		cancel()
		return LeaveResult{OK: true}
	}
	a.cleanup.Run(ctx, roomID, domain.Member{UserID: userID, DisplayName: conn.DisplayName()}, "left")
	return LeaveResult{OK: true}
}

// Disconnect handles transport loss. Cleanup is debounced to absorb rapid
// reconnects and re-scans the user's live connections before touching
// membership. Errors here are logged and swallowed; the connection is
// already gone.
func (a *Admission) Disconnect(connID core.ConnID) {
	conn, ok := a.binder.Conn(connID)
	if !ok {
		return
	}
	uid, roomID, err := conn.BeginDisconnect()
	if err != nil {
		// disconnect already processing
		return
	}
	a.binder.Drop(connID)
	if roomID != "" {
		a.groups.LeaveRoom(roomID, connID)
	}

	if uid == "" {
		// never bound; nothing to clean, ask the client to reset its
		// session (best effort, the transport is usually gone)
		_ = emit(conn, core.ResetEvent{Type: core.EvReset})
		conn.FinishDisconnect()
		return
	}

	time.AfterFunc(a.cfg.DisconnectDebounce, func() {
		a.finishDisconnect(conn, uid, roomID)
	})
}

func (a *Admission) finishDisconnect(conn *core.Conn, uid domain.UserID, roomID domain.RoomID) {
	defer conn.FinishDisconnect()

	ctx, cancel := a.cfg.storeCtx(context.Background())
	defer cancel()

	if roomID != "" {
		if a.binder.LiveInRoom(uid, roomID) > 0 {
			a.presence.Recompute(ctx, roomID)
		} else {
			a.cleanup.Run(ctx, roomID, domain.Member{UserID: uid, DisplayName: conn.DisplayName()}, "disconnected")
		}
	}

	if a.binder.LiveConnectionCount(uid) == 0 {
		if err := a.identity.DeleteUser(ctx, uid); err != nil {
			log.Warn().Err(err).Str("module", "app.admission").Str("user", string(uid)).Msg("identity cleanup failed")
		}
	}
}

func containsMember(members []domain.Member, uid domain.UserID) bool {
	for _, m := range members {
		if m.UserID == uid {
			return true
		}
	}
	return false
}

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

// Cleanup is the shared leave routine: every path that removes a user
// from a room (explicit leave, last-tab disconnect, reaper) funnels
// through here so the broadcasts and the room-deletion check happen
// exactly once.
type Cleanup struct {
	cfg      Config
	rooms    core.RoomStore
	messages core.MessageLog
	groups   *core.Groups
	presence *Presence
	relay    *Relay
	reaper   *Reaper
}

func NewCleanup(cfg Config, rooms core.RoomStore, messages core.MessageLog, groups *core.Groups, presence *Presence, relay *Relay, reaper *Reaper) *Cleanup {
	return &Cleanup{cfg: cfg, rooms: rooms, messages: messages, groups: groups, presence: presence, relay: relay, reaper: reaper}
}

// Run removes the member and settles the room. Errors are logged and
// swallowed; there is nobody left to fail back to on most call sites, and
// the reaper self-heals anything missed here.
func (cl *Cleanup) Run(ctx context.Context, roomID domain.RoomID, member domain.Member, reason string) {
	sctx, cancel := cl.cfg.storeCtx(ctx)
	defer cancel()

	if err := cl.rooms.RemoveMember(sctx, roomID, member.UserID); err != nil {
		log.Error().Err(err).Str("module", "app.cleanup").Str("room", string(roomID)).Str("user", string(member.UserID)).Msg("membership removal failed")
		return
	}
	members, err := cl.rooms.Members(sctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("module", "app.cleanup").Str("room", string(roomID)).Msg("members read failed")
		return
	}

	broadcastRoom(cl.groups, roomID, core.UserLeftEvent{Type: core.EvUserLeft, Room: roomID, Member: member, Remaining: len(members)})
	cl.presence.Recompute(sctx, roomID)

	verb := "left the room"
	if reason == "disconnected" {
		verb = "disconnected"
	}
	cl.relay.System(ctx, roomID, fmt.Sprintf("%s %s (%d in room)", member.DisplayName, verb, len(members)))

	room, err := cl.rooms.GetRoom(sctx, roomID)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			log.Error().Err(err).Str("module", "app.cleanup").Str("room", string(roomID)).Msg("room read failed")
		}
		return
	}
	if room.IsPairRoom() && len(members) < domain.PairRoomSize {
		// random-chat rooms die the moment one side is gone
		closeRoom(sctx, cl.rooms, cl.messages, cl.groups, roomID, "partner_left")
		return
	}
	if len(members) == 0 {
		cl.reaper.MarkEmpty(roomID)
	}
}

// closeRoom notifies, evicts, and deletes a room with its message log.
func closeRoom(ctx context.Context, rooms core.RoomStore, messages core.MessageLog, groups *core.Groups, roomID domain.RoomID, reason string) {
	broadcastRoom(groups, roomID, core.RoomClosedEvent{Type: core.EvRoomClosed, Room: roomID, Reason: reason})
	for _, c := range groups.DropRoom(roomID) {
		c.CompleteLeave()
	}
	if err := rooms.DeleteRoom(ctx, roomID); err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		log.Error().Err(err).Str("module", "app.cleanup").Str("room", string(roomID)).Msg("room delete failed")
	}
	if err := messages.Drop(ctx, roomID); err != nil {
		log.Error().Err(err).Str("module", "app.cleanup").Str("room", string(roomID)).Msg("message log drop failed")
	}
	log.Info().Str("module", "app.cleanup").Str("room", string(roomID)).Str("reason", reason).Msg("room closed")
}

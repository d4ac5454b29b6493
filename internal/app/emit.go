package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

// emit marshals and best-effort delivers one event to one connection.
// A full send buffer or closed transport is the receiver's problem, never
// the emitter's.
func emit(c *core.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.emit").Msg("marshal event")
		return err
	}
	if err := c.Signal().TrySend(core.Frame(b)); err != nil {
		log.Debug().Err(err).Str("module", "app.emit").Str("conn", string(c.ID())).Msg("send dropped")
		return err
	}
	return nil
}

// broadcastRoom fans an event out to every live connection in the room's
// broadcast group, marshalling once.
func broadcastRoom(g *core.Groups, roomID domain.RoomID, v any) {
	broadcastConns(g.RoomConns(roomID), v)
}

// broadcastUser delivers a private notification to all of a user's open
// tabs.
func broadcastUser(g *core.Groups, uid domain.UserID, v any) {
	broadcastConns(g.UserConns(uid), v)
}

func broadcastConns(conns []*core.Conn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.emit").Msg("marshal event")
		return
	}
	for _, c := range conns {
		if err := c.Signal().TrySend(core.Frame(b)); err != nil {
			log.Debug().Err(err).Str("module", "app.emit").Str("conn", string(c.ID())).Msg("broadcast dropped")
		}
	}
}

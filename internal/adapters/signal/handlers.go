package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/fadechat/fadechat/internal/app"
	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

type joinAck struct {
	Type   string            `json:"type"`
	OK     bool              `json:"ok"`
	Reason string            `json:"reason,omitempty"`
	Recent []*domain.Message `json:"recentMessages,omitempty"`
}

type leaveAck struct {
	Type   string `json:"type"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

type sendAck struct {
	Type         string           `json:"type"`
	OK           bool             `json:"ok"`
	Reason       string           `json:"reason,omitempty"`
	MessageID    domain.MessageID `json:"messageId,omitempty"`
	ClientTempID string           `json:"clientTempId,omitempty"`
}

type pairAck struct {
	Type    string        `json:"type"`
	OK      bool          `json:"ok"`
	Reason  string        `json:"reason,omitempty"`
	Matched bool          `json:"matched"`
	Queued  bool          `json:"queued,omitempty"`
	Room    domain.RoomID `json:"room,omitempty"`
}

// handleBind must complete before the client requests a join; the ack is
// the client's signal that identity binding is done.
func (ctl *Controller) handleBind(ctx context.Context, connID core.ConnID, conn *wsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad bind payload")
		ctl.sendJSON(conn, core.ErrorEvent{Type: core.EvError, Reason: app.ReasonBadPayload})
		return
	}
	if p.UserID == "" {
		// protocol violation: the client skipped login
		log.Warn().Str("module", "signal").Str("conn", string(connID)).Msg("bind without userId")
		return
	}
	user, err := ctl.Engine.Binder.Bind(ctx, connID, domain.UserID(p.UserID))
	if err != nil {
		reason := app.ReasonStorage
		if errors.Is(err, domain.ErrUserNotFound) {
			reason = app.ReasonUserNotFound
		}
		ctl.sendJSON(conn, core.ErrorEvent{Type: core.EvError, Reason: reason})
		return
	}
	ctl.sendJSON(conn, core.BoundEvent{Type: core.EvBound, User: *user})
}

func (ctl *Controller) handleJoin(ctx context.Context, connID core.ConnID, conn *wsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		Room   string `json:"room"`
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendJSON(conn, joinAck{Type: "join_ack", Reason: app.ReasonBadPayload})
		return
	}
	res := ctl.Engine.Admission.Join(ctx, connID, domain.RoomID(p.Room), domain.UserID(p.UserID))
	ctl.sendJSON(conn, joinAck{Type: "join_ack", OK: res.OK, Reason: res.Reason, Recent: res.Recent})
}

func (ctl *Controller) handleLeave(ctx context.Context, connID core.ConnID, conn *wsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		Room   string `json:"room"`
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad leave payload")
		ctl.sendJSON(conn, leaveAck{Type: "leave_ack", Reason: app.ReasonBadPayload})
		return
	}
	res := ctl.Engine.Admission.Leave(ctx, connID, domain.RoomID(p.Room), domain.UserID(p.UserID))
	ctl.sendJSON(conn, leaveAck{Type: "leave_ack", OK: res.OK, Reason: res.Reason})
}

func (ctl *Controller) handleSend(ctx context.Context, connID core.ConnID, conn *wsConn, data []byte) {
	var p struct {
		Type         string `json:"type"`
		Room         string `json:"room"`
		UserID       string `json:"userId"`
		Kind         string `json:"kind"`
		Body         string `json:"body"`
		ClientTempID string `json:"clientTempId"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad send payload")
		ctl.sendJSON(conn, sendAck{Type: "send_ack", Reason: app.ReasonBadPayload})
		return
	}

	kind := domain.MessageKind(p.Kind)
	switch kind {
	case "":
		kind = domain.KindText
	case domain.KindText, domain.KindAudio:
	default:
		// system messages are server-authored only
		ctl.sendJSON(conn, sendAck{Type: "send_ack", Reason: app.ReasonBadPayload, ClientTempID: p.ClientTempID})
		return
	}

	// throttle on the bound identity, never the claimed one; a spoofed
	// userId must not sidestep or pollute another user's window
	if ctl.limiter != nil {
		if cc, ok := ctl.Engine.Binder.Conn(connID); ok {
			if uid := cc.UserID(); uid != "" && !ctl.limiter.Allow(uid) {
				ctl.sendJSON(conn, sendAck{Type: "send_ack", Reason: "rate-limited", ClientTempID: p.ClientTempID})
				return
			}
		}
	}

	res := ctl.Engine.Relay.Send(ctx, connID, domain.RoomID(p.Room), domain.UserID(p.UserID), kind, p.Body, p.ClientTempID)
	ctl.sendJSON(conn, sendAck{Type: "send_ack", OK: res.OK, Reason: res.Reason, MessageID: res.MessageID, ClientTempID: p.ClientTempID})
}

func (ctl *Controller) handlePairRequest(ctx context.Context, connID core.ConnID, conn *wsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		ctl.sendJSON(conn, pairAck{Type: "pair_ack", Reason: app.ReasonBadPayload})
		return
	}
	res, err := ctl.Engine.Pairing.Enqueue(ctx, domain.UserID(p.UserID))
	if err != nil {
		reason := app.ReasonStorage
		if errors.Is(err, domain.ErrUserNotFound) {
			reason = app.ReasonUserNotFound
		}
		ctl.sendJSON(conn, pairAck{Type: "pair_ack", Reason: reason})
		return
	}
	ctl.sendJSON(conn, pairAck{Type: "pair_ack", OK: true, Matched: res.Matched, Queued: res.Queued, Room: res.RoomID})
	if res.Queued {
		ctl.sendJSON(conn, core.PairingQueuedEvent{Type: core.EvPairingQueued})
	}
}

func (ctl *Controller) handlePairCancel(ctx context.Context, connID core.ConnID, conn *wsConn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		ctl.sendJSON(conn, pairAck{Type: "pair_cancel_ack", Reason: app.ReasonBadPayload})
		return
	}
	if err := ctl.Engine.Pairing.Cancel(ctx, domain.UserID(p.UserID)); err != nil {
		ctl.sendJSON(conn, pairAck{Type: "pair_cancel_ack", Reason: app.ReasonStorage})
		return
	}
	ctl.sendJSON(conn, pairAck{Type: "pair_cancel_ack", OK: true})
}

// handlePing doubles as the liveness signal keeping the identity TTL
// fresh while the tab is open.
func (ctl *Controller) handlePing(ctx context.Context, connID core.ConnID, conn *wsConn) {
	ctl.Engine.Binder.Touch(ctx, connID)
	ctl.sendJSON(conn, struct {
		Type string `json:"type"`
	}{Type: core.EvPong})
}

// handleWhoAmI lets a reconnecting client reconcile what the server
// thinks it is bound to.
func (ctl *Controller) handleWhoAmI(connID core.ConnID, conn *wsConn) {
	resp := struct {
		Type   string        `json:"type"`
		UserID domain.UserID `json:"userId,omitempty"`
		Name   string        `json:"displayName,omitempty"`
		Room   domain.RoomID `json:"room,omitempty"`
		State  string        `json:"state"`
	}{Type: core.EvWhoAmI, State: core.StateUnbound.String()}

	if cc, ok := ctl.Engine.Binder.Conn(connID); ok {
		st, uid, rid := cc.Snapshot()
		resp.State = st.String()
		resp.UserID = uid
		resp.Name = cc.DisplayName()
		resp.Room = rid
	}
	ctl.sendJSON(conn, resp)
}

package app

import (
	"context"
	"encoding/base64"

	"github.com/rs/zerolog/log"

	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

type SendResult struct {
	OK        bool
	Reason    string
	MessageID domain.MessageID
}

// Relay accepts outbound messages: persist first, then broadcast, then ack
// the originating connection with the durable id. The order is an
// invariant; a crash between persist and broadcast loses visibility but
// never durability.
type Relay struct {
	cfg      Config
	binder   *Binder
	groups   *core.Groups
	messages core.MessageLog
}

func NewRelay(cfg Config, binder *Binder, groups *core.Groups, messages core.MessageLog) *Relay {
	return &Relay{cfg: cfg, binder: binder, groups: groups, messages: messages}
}

func (r *Relay) Send(ctx context.Context, connID core.ConnID, roomID domain.RoomID, userID domain.UserID, kind domain.MessageKind, body, clientTempID string) SendResult {
	conn, ok := r.binder.Conn(connID)
	if !ok {
		return SendResult{Reason: ReasonNotJoined}
	}
	st, uid, rid := conn.Snapshot()
	if st != core.StateJoined || uid != userID || rid != roomID {
		return SendResult{Reason: ReasonNotJoined}
	}
	if body == "" {
		return SendResult{Reason: ReasonInvalidLength}
	}
	switch kind {
	case domain.KindText:
		if len(body) > r.cfg.MaxTextBytes {
			return SendResult{Reason: ReasonInvalidLength}
		}
	case domain.KindAudio:
		// audio travels base64-encoded; cap the decoded size
		if base64.StdEncoding.DecodedLen(len(body)) > r.cfg.MaxAudioBytes {
			return SendResult{Reason: ReasonInvalidLength}
		}
	default:
		return SendResult{Reason: ReasonBadPayload}
	}

	msg := domain.NewMessage(roomID, userID, conn.DisplayName(), kind, body, clientTempID)

	sctx, cancel := r.cfg.storeCtx(ctx)
	defer cancel()
	if err := r.messages.Append(sctx, msg); err != nil {
		// Availability over strict delivery: the live room keeps moving,
		// but the loss is an error condition, never silent.
		log.Error().Err(err).Str("module", "app.relay").Str("room", string(roomID)).Str("msg", string(msg.ID)).Msg("persist failed, broadcasting best-effort")
	}

	// The sender receives the broadcast too, so all of their tabs converge
	// on the canonical record; the client de-duplicates by clientTempId.
	broadcastRoom(r.groups, roomID, core.MessageEvent{Type: core.EvMessage, Message: msg})
	_ = emit(conn, core.MessageAckEvent{Type: core.EvMessageAck, MessageID: msg.ID, ClientTempID: clientTempID})

	return SendResult{OK: true, MessageID: msg.ID}
}

// System persists and broadcasts a server-authored chat message.
func (r *Relay) System(ctx context.Context, roomID domain.RoomID, body string) {
	msg := domain.NewSystemMessage(roomID, body)
	sctx, cancel := r.cfg.storeCtx(ctx)
	defer cancel()
	if err := r.messages.Append(sctx, msg); err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("room", string(roomID)).Msg("system message persist failed")
	}
	broadcastRoom(r.groups, roomID, core.MessageEvent{Type: core.EvMessage, Message: msg})
}

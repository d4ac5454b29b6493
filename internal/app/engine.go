package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

// Engine wires the coordination components around the injected stores.
// Adapters talk to the exported fields; nothing in here is a global.
type Engine struct {
	Cfg Config

	Identity core.IdentityStore
	Rooms    core.RoomStore
	Messages core.MessageLog
	Queue    core.PairingQueue

	Groups    *core.Groups
	Binder    *Binder
	Presence  *Presence
	Relay     *Relay
	Reaper    *Reaper
	Cleanup   *Cleanup
	Admission *Admission
	Pairing   *Pairing
}

func NewEngine(cfg Config, identity core.IdentityStore, rooms core.RoomStore, messages core.MessageLog, queue core.PairingQueue) *Engine {
	groups := core.NewGroups()
	binder := NewBinder(identity, groups)
	presence := NewPresence(cfg, rooms, groups)
	relay := NewRelay(cfg, binder, groups, messages)
	reaper := NewReaper(cfg, rooms, messages, binder, groups, presence)
	cleanup := NewCleanup(cfg, rooms, messages, groups, presence, relay, reaper)
	admission := NewAdmission(cfg, binder, groups, identity, rooms, messages, presence, cleanup)
	pairing := NewPairing(cfg, queue, rooms, identity, binder, groups)

	return &Engine{
		Cfg:       cfg,
		Identity:  identity,
		Rooms:     rooms,
		Messages:  messages,
		Queue:     queue,
		Groups:    groups,
		Binder:    binder,
		Presence:  presence,
		Relay:     relay,
		Reaper:    reaper,
		Cleanup:   cleanup,
		Admission: admission,
		Pairing:   pairing,
	}
}

// Run starts the background sweeps and returns; they stop with ctx.
func (e *Engine) Run(ctx context.Context) {
	go e.Reaper.Run(ctx)
	go e.Presence.Run(ctx)
	log.Info().Str("module", "app.engine").Msg("engine running")
}

// Login creates an anonymous identity for a unique display name.
func (e *Engine) Login(ctx context.Context, displayName string) (*domain.User, error) {
	user, err := domain.NewUser(displayName)
	if err != nil {
		return nil, err
	}
	sctx, cancel := e.Cfg.storeCtx(ctx)
	defer cancel()
	taken, err := e.Identity.NameTaken(sctx, displayName)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrNameTaken
	}
	if err := e.Identity.CreateUser(sctx, user); err != nil {
		return nil, err
	}
	log.Info().Str("module", "app.engine").Str("user", string(user.ID)).Str("name", displayName).Msg("login")
	return user, nil
}

func (e *Engine) CreateRoom(ctx context.Context, name string, owner domain.UserID, maxUsers int, customCode string) (*domain.Room, error) {
	room, err := domain.NewRoom(name, owner, maxUsers, customCode)
	if err != nil {
		return nil, err
	}
	sctx, cancel := e.Cfg.storeCtx(ctx)
	defer cancel()
	if err := e.Rooms.CreateRoom(sctx, room); err != nil {
		return nil, err
	}
	log.Info().Str("module", "app.engine").Str("room", string(room.ID)).Str("owner", string(owner)).Msg("room created")
	return room, nil
}

func (e *Engine) GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, []domain.Member, error) {
	sctx, cancel := e.Cfg.storeCtx(ctx)
	defer cancel()
	room, err := e.Rooms.GetRoom(sctx, id)
	if err != nil {
		return nil, nil, err
	}
	members, err := e.Rooms.Members(sctx, id)
	if err != nil {
		return nil, nil, err
	}
	return room, members, nil
}

// DeleteRoom handles an explicit owner-initiated deletion; everyone still
// in the room is notified and evicted.
func (e *Engine) DeleteRoom(ctx context.Context, id domain.RoomID, requester domain.UserID) error {
	sctx, cancel := e.Cfg.storeCtx(ctx)
	defer cancel()
	room, err := e.Rooms.GetRoom(sctx, id)
	if err != nil {
		return err
	}
	if room.OwnerID != requester {
		return domain.ErrNotOwner
	}
	closeRoom(sctx, e.Rooms, e.Messages, e.Groups, id, "deleted")
	return nil
}

func (e *Engine) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	sctx, cancel := e.Cfg.storeCtx(ctx)
	defer cancel()
	return e.Rooms.ListRooms(sctx)
}

func (e *Engine) CheckNameAvailable(ctx context.Context, displayName string) (bool, error) {
	sctx, cancel := e.Cfg.storeCtx(ctx)
	defer cancel()
	taken, err := e.Identity.NameTaken(sctx, displayName)
	if err != nil {
		return false, err
	}
	return !taken, nil
}

package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

func TestLogin(t *testing.T) {
	h := newHarness(testConfig())

	user, err := h.engine.Login(context.Background(), "alice")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.ID == "" || user.DisplayName != "alice" {
		t.Fatalf("user = %+v", user)
	}

	if _, err := h.engine.Login(context.Background(), "alice"); !errors.Is(err, domain.ErrNameTaken) {
		t.Fatalf("duplicate login err = %v, want ErrNameTaken", err)
	}
}

func TestLoginValidation(t *testing.T) {
	h := newHarness(testConfig())

	if _, err := h.engine.Login(context.Background(), ""); !errors.Is(err, domain.ErrDisplayNameEmpty) {
		t.Fatalf("empty name err = %v", err)
	}
	long := strings.Repeat("x", domain.MaxDisplayNameLen+1)
	if _, err := h.engine.Login(context.Background(), long); !errors.Is(err, domain.ErrDisplayNameTooLong) {
		t.Fatalf("long name err = %v", err)
	}
}

func TestCheckNameAvailable(t *testing.T) {
	h := newHarness(testConfig())
	h.addUser(t, "alice")

	available, err := h.engine.CheckNameAvailable(context.Background(), "alice")
	if err != nil || available {
		t.Fatalf("got (%v, %v), want taken", available, err)
	}
	available, err = h.engine.CheckNameAvailable(context.Background(), "bob")
	if err != nil || !available {
		t.Fatalf("got (%v, %v), want available", available, err)
	}
}

func TestCreateRoom(t *testing.T) {
	h := newHarness(testConfig())
	alice := h.addUser(t, "alice")

	room, err := h.engine.CreateRoom(context.Background(), "lounge", alice.ID, 0, "")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.MaxUsers != domain.DefaultMaxUsers {
		t.Fatalf("MaxUsers = %d, want default %d", room.MaxUsers, domain.DefaultMaxUsers)
	}
	if !h.rooms.exists(room.ID) {
		t.Fatal("room not persisted")
	}
}

func TestCreateRoomCustomCode(t *testing.T) {
	h := newHarness(testConfig())
	alice := h.addUser(t, "alice")

	room, err := h.engine.CreateRoom(context.Background(), "lounge", alice.ID, 5, "my-room-42")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if room.ID != "my-room-42" {
		t.Fatalf("room id = %q, want the custom code", room.ID)
	}

	for _, code := range []string{"UP", "ab", "has space", "-leading", strings.Repeat("a", 40)} {
		if _, err := h.engine.CreateRoom(context.Background(), "lounge", alice.ID, 5, code); !errors.Is(err, domain.ErrBadRoomCode) {
			t.Fatalf("code %q err = %v, want ErrBadRoomCode", code, err)
		}
	}
}

func TestDeleteRoomOwnerOnly(t *testing.T) {
	h := newHarness(testConfig())
	alice := h.addUser(t, "alice")
	bob := h.addUser(t, "bob")
	room := h.addRoom(t, "lounge", alice.ID, 10)
	_, sigB := h.connect(t, "c-b", bob.ID)
	h.join(t, "c-b", room.ID, bob.ID)

	if err := h.engine.DeleteRoom(context.Background(), room.ID, bob.ID); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("non-owner delete err = %v, want ErrNotOwner", err)
	}
	if !h.rooms.exists(room.ID) {
		t.Fatal("non-owner delete removed the room")
	}

	if err := h.engine.DeleteRoom(context.Background(), room.ID, alice.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if h.rooms.exists(room.ID) {
		t.Fatal("room survived owner delete")
	}
	if !sigB.has(t, core.EvRoomClosed) {
		t.Fatal("member was not told the room closed")
	}
}

func TestGetRoomWithMembers(t *testing.T) {
	h := newHarness(testConfig())
	alice := h.addUser(t, "alice")
	room := h.addRoom(t, "lounge", alice.ID, 10)
	h.connect(t, "c-a", alice.ID)
	h.join(t, "c-a", room.ID, alice.ID)

	got, members, err := h.engine.GetRoom(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if got.ID != room.ID || len(members) != 1 {
		t.Fatalf("got room %q with %d members", got.ID, len(members))
	}

	if _, _, err := h.engine.GetRoom(context.Background(), "nope"); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("missing room err = %v", err)
	}
}

package app

import (
	"context"
	"testing"
	"time"

	"github.com/fadechat/fadechat/internal/domain"
)

func TestSweepDropsStaleMembers(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = time.Hour
	h := newHarness(cfg)
	alice := h.addUser(t, "alice")
	bob := h.addUser(t, "bob")
	room := h.addRoom(t, "lounge", alice.ID, 10)
	room.CreatedAt = time.Now().Add(-time.Hour)

	h.connect(t, "c-a", alice.ID)
	h.join(t, "c-a", room.ID, alice.ID)
	// bob's membership outlived his connections
	if err := h.rooms.AddMember(context.Background(), room.ID, domain.Member{UserID: bob.ID, DisplayName: "bob"}); err != nil {
		t.Fatal(err)
	}

	h.engine.Reaper.Sweep(context.Background())

	members, err := h.rooms.Members(context.Background(), room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].UserID != alice.ID {
		t.Fatalf("members after sweep = %v, want alice only", members)
	}
	if !h.rooms.exists(room.ID) {
		t.Fatal("room with a live member was deleted")
	}
}

func TestSweepSkipsYoungRooms(t *testing.T) {
	cfg := testConfig()
	cfg.MinRoomAge = time.Hour
	h := newHarness(cfg)
	alice := h.addUser(t, "alice")
	room := h.addRoom(t, "fresh", alice.ID, 10)
	// membership with no connection, but the room is brand new
	if err := h.rooms.AddMember(context.Background(), room.ID, domain.Member{UserID: alice.ID, DisplayName: "alice"}); err != nil {
		t.Fatal(err)
	}

	h.engine.Reaper.Sweep(context.Background())

	if got := h.rooms.memberCount(room.ID); got != 1 {
		t.Fatal("sweep touched a room younger than the minimum age")
	}
}

func TestSweepDeletesEmptyRoomAfterGrace(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = 0
	h := newHarness(cfg)
	alice := h.addUser(t, "alice")
	room := h.addRoom(t, "lounge", alice.ID, 10)
	room.CreatedAt = time.Now().Add(-time.Hour)

	// first sweep observes the room empty and starts the grace clock
	h.engine.Reaper.Sweep(context.Background())
	if !h.rooms.exists(room.ID) {
		t.Fatal("room deleted on the first empty observation")
	}

	// second sweep finds the grace period elapsed
	h.engine.Reaper.Sweep(context.Background())
	if h.rooms.exists(room.ID) {
		t.Fatal("empty room survived the grace period")
	}
}

func TestSweepGracePeriodSparesRoom(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = time.Hour
	h := newHarness(cfg)
	alice := h.addUser(t, "alice")
	room := h.addRoom(t, "lounge", alice.ID, 10)
	room.CreatedAt = time.Now().Add(-time.Hour)

	h.engine.Reaper.Sweep(context.Background())
	h.engine.Reaper.Sweep(context.Background())

	if !h.rooms.exists(room.ID) {
		t.Fatal("empty room deleted before the grace period elapsed")
	}
}

func TestSweepResetsGraceWhenRoomRepopulates(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = 0
	h := newHarness(cfg)
	alice := h.addUser(t, "alice")
	room := h.addRoom(t, "lounge", alice.ID, 10)
	room.CreatedAt = time.Now().Add(-time.Hour)

	h.engine.Reaper.Sweep(context.Background())

	// someone joins before the next sweep
	h.connect(t, "c-a", alice.ID)
	h.join(t, "c-a", room.ID, alice.ID)

	h.engine.Reaper.Sweep(context.Background())
	if !h.rooms.exists(room.ID) {
		t.Fatal("repopulated room was deleted")
	}
}

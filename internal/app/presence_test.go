package app

import (
	"context"
	"testing"

	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

func TestRecomputeIntersectsMembershipWithLiveConns(t *testing.T) {
	h := newHarness(testConfig())
	alice := h.addUser(t, "alice")
	bob := h.addUser(t, "bob")
	room := h.addRoom(t, "lounge", alice.ID, 10)

	_, sigA := h.connect(t, "c-a", alice.ID)
	h.join(t, "c-a", room.ID, alice.ID)

	// bob is in the membership set but has no live connection; presence
	// must hide him until the reaper catches up
	if err := h.rooms.AddMember(context.Background(), room.ID, domain.Member{UserID: bob.ID, DisplayName: "bob"}); err != nil {
		t.Fatal(err)
	}

	h.engine.Presence.Recompute(context.Background(), room.ID)

	ev := sigA.last(t, core.EvMembers)
	online := ev["online"].([]any)
	if len(online) != 1 {
		t.Fatalf("online = %v, want alice only", online)
	}
	m := online[0].(map[string]any)
	if m["userId"] != string(alice.ID) {
		t.Fatalf("online user = %v, want %s", m["userId"], alice.ID)
	}
}

func TestRecomputeAfterJoinAndLeave(t *testing.T) {
	h := newHarness(testConfig())
	alice := h.addUser(t, "alice")
	bob := h.addUser(t, "bob")
	room := h.addRoom(t, "lounge", alice.ID, 10)

	_, sigA := h.connect(t, "c-a", alice.ID)
	h.join(t, "c-a", room.ID, alice.ID)
	h.connect(t, "c-b", bob.ID)
	h.join(t, "c-b", room.ID, bob.ID)

	ev := sigA.last(t, core.EvMembers)
	if online := ev["online"].([]any); len(online) != 2 {
		t.Fatalf("online after join = %d, want 2", len(online))
	}

	res := h.engine.Admission.Leave(context.Background(), "c-b", room.ID, bob.ID)
	if !res.OK {
		t.Fatalf("leave failed: %q", res.Reason)
	}
	ev = sigA.last(t, core.EvMembers)
	if online := ev["online"].([]any); len(online) != 1 {
		t.Fatalf("online after leave = %d, want 1", len(online))
	}
}

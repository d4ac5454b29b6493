package app

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/fadechat/fadechat/internal/core"
	"github.com/fadechat/fadechat/internal/domain"
)

// fakeSignal captures every frame emitted to a connection so tests can
// assert on the event stream.
type fakeSignal struct {
	mu       sync.Mutex
	frames   []core.Frame
	closed   bool
	failures int
}

func (f *fakeSignal) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("closed")
	}
	if f.failures > 0 {
		f.failures--
		return errors.New("transport stalled")
	}
	f.frames = append(f.frames, fr)
	return nil
}

// failNext makes the next n sends fail, simulating a stalled transport.
func (f *fakeSignal) failNext(n int) {
	f.mu.Lock()
	f.failures = n
	f.mu.Unlock()
}

func (f *fakeSignal) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSignal) events(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		if err := json.Unmarshal(fr, &m); err != nil {
			t.Fatalf("bad frame %q: %v", fr, err)
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeSignal) has(t *testing.T, eventType string) bool {
	t.Helper()
	for _, ev := range f.events(t) {
		if ev["type"] == eventType {
			return true
		}
	}
	return false
}

func (f *fakeSignal) count(t *testing.T, eventType string) int {
	t.Helper()
	n := 0
	for _, ev := range f.events(t) {
		if ev["type"] == eventType {
			n++
		}
	}
	return n
}

func (f *fakeSignal) last(t *testing.T, eventType string) map[string]any {
	t.Helper()
	var found map[string]any
	for _, ev := range f.events(t) {
		if ev["type"] == eventType {
			found = ev
		}
	}
	if found == nil {
		t.Fatalf("no %q event, got %v", eventType, f.events(t))
	}
	return found
}

type fakeIdentity struct {
	mu      sync.Mutex
	users   map[domain.UserID]*domain.User
	deleted []domain.UserID
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{users: make(map[domain.UserID]*domain.User)}
}

func (f *fakeIdentity) CreateUser(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeIdentity) GetUser(_ context.Context, id domain.UserID) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeIdentity) DeleteUser(_ context.Context, id domain.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeIdentity) RefreshLiveness(context.Context, domain.UserID) error { return nil }

func (f *fakeIdentity) NameTaken(_ context.Context, displayName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.DisplayName == displayName {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeIdentity) wasDeleted(id domain.UserID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.deleted {
		if d == id {
			return true
		}
	}
	return false
}

type fakeRooms struct {
	mu      sync.Mutex
	rooms   map[domain.RoomID]*domain.Room
	members map[domain.RoomID]map[domain.UserID]domain.Member
	addErr  error
	onAdd   func() // one-shot, fired after a successful AddMember
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{
		rooms:   make(map[domain.RoomID]*domain.Room),
		members: make(map[domain.RoomID]map[domain.UserID]domain.Member),
	}
}

func (f *fakeRooms) CreateRoom(_ context.Context, room *domain.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[room.ID] = room
	return nil
}

func (f *fakeRooms) GetRoom(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return r, nil
}

func (f *fakeRooms) DeleteRoom(_ context.Context, id domain.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rooms, id)
	delete(f.members, id)
	return nil
}

func (f *fakeRooms) ListRooms(context.Context) ([]*domain.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Room, 0, len(f.rooms))
	for _, r := range f.rooms {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRooms) AddMember(_ context.Context, roomID domain.RoomID, m domain.Member) error {
	f.mu.Lock()
	if f.addErr != nil {
		f.mu.Unlock()
		return f.addErr
	}
	set, ok := f.members[roomID]
	if !ok {
		set = make(map[domain.UserID]domain.Member)
		f.members[roomID] = set
	}
	set[m.UserID] = m
	hook := f.onAdd
	f.onAdd = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeRooms) RemoveMember(_ context.Context, roomID domain.RoomID, uid domain.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[roomID], uid)
	return nil
}

func (f *fakeRooms) Members(_ context.Context, roomID domain.RoomID) ([]domain.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Member, 0, len(f.members[roomID]))
	for _, m := range f.members[roomID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (f *fakeRooms) memberCount(roomID domain.RoomID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.members[roomID])
}

func (f *fakeRooms) exists(roomID domain.RoomID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rooms[roomID]
	return ok
}

type fakeLog struct {
	mu       sync.Mutex
	logs     map[domain.RoomID][]*domain.Message
	onAppend func(*domain.Message)
}

func newFakeLog() *fakeLog {
	return &fakeLog{logs: make(map[domain.RoomID][]*domain.Message)}
}

func (f *fakeLog) Append(_ context.Context, msg *domain.Message) error {
	f.mu.Lock()
	hook := f.onAppend
	f.logs[msg.RoomID] = append(f.logs[msg.RoomID], msg)
	f.mu.Unlock()
	if hook != nil {
		hook(msg)
	}
	return nil
}

func (f *fakeLog) Recent(_ context.Context, roomID domain.RoomID, limit int) ([]*domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.logs[roomID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *fakeLog) Drop(_ context.Context, roomID domain.RoomID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.logs, roomID)
	return nil
}

func (f *fakeLog) stored(roomID domain.RoomID) []*domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*domain.Message, len(f.logs[roomID]))
	copy(out, f.logs[roomID])
	return out
}

type fakeQueue struct {
	mu      sync.Mutex
	entries []domain.PairingEntry
}

func (f *fakeQueue) Push(_ context.Context, e domain.PairingEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeQueue) Pop(context.Context) (domain.PairingEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.entries) == 0 {
		return domain.PairingEntry{}, false, nil
	}
	e := f.entries[0]
	f.entries = f.entries[1:]
	return e, true, nil
}

func (f *fakeQueue) Remove(_ context.Context, uid domain.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.entries[:0]
	for _, e := range f.entries {
		if e.UserID != uid {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

func (f *fakeQueue) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// harness wires an engine around the in-memory fakes with test-friendly
// timings.
type harness struct {
	engine   *Engine
	identity *fakeIdentity
	rooms    *fakeRooms
	logs     *fakeLog
	queue    *fakeQueue
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JoinWait = 100 * time.Millisecond
	cfg.DisconnectDebounce = 10 * time.Millisecond
	cfg.PairingBackoff = 5 * time.Millisecond
	cfg.StoreTimeout = time.Second
	return cfg
}

func newHarness(cfg Config) *harness {
	identity := newFakeIdentity()
	rooms := newFakeRooms()
	logs := newFakeLog()
	queue := &fakeQueue{}
	return &harness{
		engine:   NewEngine(cfg, identity, rooms, logs, queue),
		identity: identity,
		rooms:    rooms,
		logs:     logs,
		queue:    queue,
	}
}

func (h *harness) addUser(t *testing.T, name string) *domain.User {
	t.Helper()
	u, err := domain.NewUser(name)
	if err != nil {
		t.Fatalf("NewUser(%q): %v", name, err)
	}
	if err := h.identity.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func (h *harness) addRoom(t *testing.T, name string, owner domain.UserID, maxUsers int) *domain.Room {
	t.Helper()
	r, err := domain.NewRoom(name, owner, maxUsers, "")
	if err != nil {
		t.Fatalf("NewRoom(%q): %v", name, err)
	}
	if err := h.rooms.CreateRoom(context.Background(), r); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	return r
}

// connect registers a new connection and binds it to the user.
func (h *harness) connect(t *testing.T, id core.ConnID, uid domain.UserID) (*core.Conn, *fakeSignal) {
	t.Helper()
	sig := &fakeSignal{}
	c := core.NewConn(id, sig)
	h.engine.Binder.Register(c)
	if _, err := h.engine.Binder.Bind(context.Background(), id, uid); err != nil {
		t.Fatalf("Bind(%s, %s): %v", id, uid, err)
	}
	return c, sig
}

func (h *harness) join(t *testing.T, connID core.ConnID, roomID domain.RoomID, uid domain.UserID) JoinResult {
	t.Helper()
	res := h.engine.Admission.Join(context.Background(), connID, roomID, uid)
	if !res.OK {
		t.Fatalf("Join(%s, %s): reason %q", connID, roomID, res.Reason)
	}
	return res
}

func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

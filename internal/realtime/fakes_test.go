package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hrivera88/campfyr-sub001/internal/auth"
	"github.com/hrivera88/campfyr-sub001/internal/ephemeral"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}

type onlineWrite struct {
	userID int
	online bool
	at     time.Time
}

type fakeUsers struct {
	users     map[int]User
	getCalls  int
	setOnline []onlineWrite
	failGet   bool
}

func (f *fakeUsers) GetByIDs(_ context.Context, ids []int) (map[int]User, error) {
	f.getCalls++
	if f.failGet {
		return nil, errors.New("user store down")
	}
	out := make(map[int]User)
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (f *fakeUsers) SetOnline(_ context.Context, userID int, online bool, at time.Time) error {
	f.setOnline = append(f.setOnline, onlineWrite{userID: userID, online: online, at: at})
	return nil
}

type fakeRooms struct {
	rooms       map[int]Room
	saved       []StoredMessage
	recent      []StoredMessage
	recentCalls int
	failSave    bool
	nextID      int
}

func (f *fakeRooms) GetRoom(_ context.Context, roomID, orgID int) (Room, error) {
	room, ok := f.rooms[roomID]
	if !ok || room.OrgID != orgID {
		return Room{}, ErrNotFound
	}
	return room, nil
}

func (f *fakeRooms) SaveMessage(_ context.Context, msg *StoredMessage) (int, error) {
	if f.failSave {
		return 0, errors.New("durable store down")
	}
	f.nextID++
	msg.ID = f.nextID
	f.saved = append(f.saved, *msg)
	return f.nextID, nil
}

func (f *fakeRooms) RecentMessages(_ context.Context, roomID, limit int) ([]StoredMessage, error) {
	f.recentCalls++
	var out []StoredMessage
	for _, m := range f.recent {
		if m.RoomID == roomID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeConversations struct {
	convs    map[int]Conversation
	saved    []DirectMessageRecord
	nextID   int
	failSave bool
}

func (f *fakeConversations) GetConversation(_ context.Context, conversationID int) (Conversation, error) {
	conv, ok := f.convs[conversationID]
	if !ok {
		return Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (f *fakeConversations) CreateConversation(_ context.Context, orgID, userA, userB int) (Conversation, error) {
	if userA > userB {
		userA, userB = userB, userA
	}
	for _, conv := range f.convs {
		if conv.User1ID == userA && conv.User2ID == userB {
			return conv, nil
		}
	}
	f.nextID++
	conv := Conversation{ID: f.nextID, OrgID: orgID, User1ID: userA, User2ID: userB}
	if f.convs == nil {
		f.convs = make(map[int]Conversation)
	}
	f.convs[conv.ID] = conv
	return conv, nil
}

func (f *fakeConversations) SaveMessage(_ context.Context, msg *DirectMessageRecord) (int, error) {
	if f.failSave {
		return 0, errors.New("durable store down")
	}
	f.nextID++
	msg.ID = f.nextID
	f.saved = append(f.saved, *msg)
	return f.nextID, nil
}

type finishedCall struct {
	status   CallStatus
	endedAt  time.Time
	duration *int
}

type fakeCalls struct {
	created    map[string]CallRecord
	statuses   map[string]CallStatus
	finished   map[string]finishedCall
	failCreate bool
}

func newFakeCalls() *fakeCalls {
	return &fakeCalls{
		created:  make(map[string]CallRecord),
		statuses: make(map[string]CallStatus),
		finished: make(map[string]finishedCall),
	}
}

func (f *fakeCalls) Create(_ context.Context, rec CallRecord) error {
	if f.failCreate {
		return errors.New("durable store down")
	}
	f.created[rec.ID] = rec
	return nil
}

func (f *fakeCalls) SetStatus(_ context.Context, callID string, status CallStatus) error {
	f.statuses[callID] = status
	return nil
}

func (f *fakeCalls) Finish(_ context.Context, callID string, status CallStatus, endedAt time.Time, duration *int) error {
	f.finished[callID] = finishedCall{status: status, endedAt: endedAt, duration: duration}
	return nil
}

// fixture wires a Core to fakes, an in-memory ephemeral store and a fake
// clock.
type fixture struct {
	core  *Core
	eph   *ephemeral.Memory
	clock *fakeClock
	users *fakeUsers
	rooms *fakeRooms
	convs *fakeConversations
	calls *fakeCalls
}

func newFixture(cfg Config) *fixture {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		clock: clock,
		eph:   ephemeral.NewMemoryWithClock(clock.Now),
		users: &fakeUsers{users: make(map[int]User)},
		rooms: &fakeRooms{rooms: make(map[int]Room)},
		convs: &fakeConversations{convs: make(map[int]Conversation)},
		calls: newFakeCalls(),
	}
	f.core = New(cfg, Deps{
		Ephemeral:     f.eph,
		Users:         f.users,
		Rooms:         f.rooms,
		Conversations: f.convs,
		Calls:         f.calls,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:           clock.Now,
	})
	return f
}

// client registers a connection without a websocket; tests read outbound
// frames straight from the send channel.
func (f *fixture) client(userID int, username string) *Client {
	c := newClient(f.core, nil, auth.Identity{UserID: userID, OrgID: 1, Username: username})
	f.core.hub.Register(c)
	return c
}

type capturedEvent struct {
	Event string
	Data  map[string]any
}

// drain empties a client's send buffer into decoded events.
func drain(t *testing.T, c *Client) []capturedEvent {
	t.Helper()
	var out []capturedEvent
	for {
		select {
		case raw := <-c.send:
			var env envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				t.Fatalf("malformed outbound frame: %v", err)
			}
			var data map[string]any
			if len(env.Data) > 0 {
				if err := json.Unmarshal(env.Data, &data); err != nil {
					t.Fatalf("malformed outbound payload: %v", err)
				}
			}
			out = append(out, capturedEvent{Event: env.Event, Data: data})
		default:
			return out
		}
	}
}

// lastEvent returns the most recent frame with the given event name.
func lastEvent(t *testing.T, events []capturedEvent, name string) capturedEvent {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Event == name {
			return events[i]
		}
	}
	t.Fatalf("no %q event in %v", name, events)
	return capturedEvent{}
}

func hasEvent(events []capturedEvent, name string) bool {
	for _, ev := range events {
		if ev.Event == name {
			return true
		}
	}
	return false
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	b, err := json.Marshal(envelope{Event: event, Data: raw})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return b
}

// failingStore wraps the memory store and errors on selected operations.
type failingStore struct {
	ephemeral.Store
	failListRange bool
	failListPush  bool
}

func (s *failingStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if s.failListRange {
		return nil, fmt.Errorf("ephemeral store down")
	}
	return s.Store.ListRange(ctx, key, start, stop)
}

func (s *failingStore) ListPush(ctx context.Context, key, value string) error {
	if s.failListPush {
		return fmt.Errorf("ephemeral store down")
	}
	return s.Store.ListPush(ctx, key, value)
}

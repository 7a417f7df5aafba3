package realtime

import (
	"context"
	"testing"
)

func chatFixture() (*fixture, *Client, *Client) {
	f := newFixture(Config{})
	f.rooms.rooms[1] = Room{ID: 1, OrgID: 1, Name: "general"}
	f.users.users[1] = User{ID: 1, Username: "ada"}
	f.users.users[2] = User{ID: 2, Username: "grace"}
	c1 := f.client(1, "ada")
	c2 := f.client(2, "grace")
	return f, c1, c2
}

func TestEmptyMessageRejectedBeforeAnyWrite(t *testing.T) {
	f, c1, _ := chatFixture()
	ctx := context.Background()

	f.core.HandleEvent(ctx, c1, frame(t, evChatMessage, map[string]any{
		"roomId":  1,
		"content": "   ",
	}))

	if len(f.rooms.saved) != 0 {
		t.Fatalf("empty message must not reach the durable store")
	}
	if raw, _ := f.eph.ListRange(ctx, messagesKey(1), 0, 10); len(raw) != 0 {
		t.Fatalf("empty message must not reach the cache")
	}
}

func TestChatMessageWriteThroughAndBroadcast(t *testing.T) {
	f, c1, c2 := chatFixture()
	ctx := context.Background()
	join(t, f, c1, 1, 1)
	join(t, f, c2, 1, 2)
	drain(t, c1)
	drain(t, c2)

	f.core.HandleEvent(ctx, c1, frame(t, evChatMessage, map[string]any{
		"roomId":  1,
		"content": "hello",
	}))

	if len(f.rooms.saved) != 1 {
		t.Fatalf("expected one durable write, got %d", len(f.rooms.saved))
	}
	saved := f.rooms.saved[0]
	if saved.SenderID != 1 || saved.Content != "hello" || !saved.SentAt.Equal(f.clock.Now()) {
		t.Fatalf("unexpected durable row: %+v", saved)
	}

	raw, _ := f.eph.ListRange(ctx, messagesKey(1), 0, 10)
	if len(raw) != 1 {
		t.Fatalf("expected one cached message, got %d", len(raw))
	}

	// The sender's own connection receives the broadcast too.
	for _, c := range []*Client{c1, c2} {
		msg := lastEvent(t, drain(t, c), evChatMessage)
		if msg.Data["username"] != "ada" || msg.Data["content"] != "hello" {
			t.Fatalf("unexpected broadcast payload: %v", msg.Data)
		}
		if msg.Data["roomId"].(float64) != 1 {
			t.Fatalf("broadcast missing roomId: %v", msg.Data)
		}
		if msg.Data["timestampMillis"].(float64) != float64(f.clock.Now().UnixMilli()) {
			t.Fatalf("expected server-assigned timestamp, got %v", msg.Data)
		}
	}
}

func TestDurableWriteFailureSuppressesBroadcast(t *testing.T) {
	f, c1, c2 := chatFixture()
	ctx := context.Background()
	join(t, f, c1, 1, 1)
	join(t, f, c2, 1, 2)
	drain(t, c1)
	drain(t, c2)

	f.rooms.failSave = true
	f.core.HandleEvent(ctx, c1, frame(t, evChatMessage, map[string]any{
		"roomId":  1,
		"content": "lost",
	}))

	// The cache write is not rolled back; the broadcast is.
	if raw, _ := f.eph.ListRange(ctx, messagesKey(1), 0, 10); len(raw) != 1 {
		t.Fatalf("cache write should have happened, got %d entries", len(raw))
	}
	if evs := drain(t, c2); hasEvent(evs, evChatMessage) {
		t.Fatalf("broadcast must be suppressed on durable failure: %v", evs)
	}
}

func TestCacheWriteFailureDropsMessage(t *testing.T) {
	f, c1, c2 := chatFixture()
	ctx := context.Background()
	join(t, f, c1, 1, 1)
	join(t, f, c2, 1, 2)
	drain(t, c1)
	drain(t, c2)

	f.core.eph = &failingStore{Store: f.eph, failListPush: true}
	f.core.HandleEvent(ctx, c1, frame(t, evChatMessage, map[string]any{
		"roomId":  1,
		"content": "lost",
	}))

	// The cache write gates the durable write, so the durable store can
	// never hold a message the cache missed.
	if len(f.rooms.saved) != 0 {
		t.Fatalf("durable write must not happen after a cache-write failure, got %d", len(f.rooms.saved))
	}
	if evs := drain(t, c2); hasEvent(evs, evChatMessage) {
		t.Fatalf("broadcast must be suppressed on cache-write failure: %v", evs)
	}
}

func TestStrictRelayDropsUnknownRoom(t *testing.T) {
	f, c1, _ := chatFixture()
	ctx := context.Background()

	f.core.HandleEvent(ctx, c1, frame(t, evChatMessage, map[string]any{
		"roomId":  999,
		"content": "into the void",
	}))

	if len(f.rooms.saved) != 0 {
		t.Fatalf("strict relay must not persist for an unknown room")
	}
}

func TestPermissiveRelayKeepsProcessingUnknownRoom(t *testing.T) {
	f := newFixture(Config{PermissiveRelay: true})
	f.users.users[1] = User{ID: 1, Username: "ada"}
	c1 := f.client(1, "ada")
	join(t, f, c1, 999, 1)
	drain(t, c1)

	f.core.HandleEvent(context.Background(), c1, frame(t, evChatMessage, map[string]any{
		"roomId":  999,
		"content": "still delivered",
	}))

	if len(f.rooms.saved) != 1 {
		t.Fatalf("permissive relay should persist, got %d writes", len(f.rooms.saved))
	}
	msg := lastEvent(t, drain(t, c1), evChatMessage)
	if msg.Data["content"] != "still delivered" {
		t.Fatalf("permissive relay should broadcast, got %v", msg.Data)
	}
}

func TestDirectMessagePersistsAndBroadcasts(t *testing.T) {
	f, c1, c2 := chatFixture()
	ctx := context.Background()
	f.convs.convs[9] = Conversation{ID: 9, OrgID: 1, User1ID: 1, User2ID: 2}

	f.core.HandleEvent(ctx, c1, frame(t, evDirectJoin, map[string]int{"conversationId": 9}))
	f.core.HandleEvent(ctx, c2, frame(t, evDirectJoin, map[string]int{"conversationId": 9}))

	f.core.HandleEvent(ctx, c1, frame(t, evDirectMessage, map[string]any{
		"conversationId": 9,
		"content":        "psst",
	}))

	if len(f.convs.saved) != 1 {
		t.Fatalf("expected one direct message persisted, got %d", len(f.convs.saved))
	}
	for _, c := range []*Client{c1, c2} {
		msg := lastEvent(t, drain(t, c), evDirectMessage)
		if msg.Data["username"] != "ada" || msg.Data["content"] != "psst" {
			t.Fatalf("unexpected direct broadcast: %v", msg.Data)
		}
		if msg.Data["conversationId"].(float64) != 9 || msg.Data["id"].(float64) == 0 {
			t.Fatalf("direct broadcast missing ids: %v", msg.Data)
		}
	}
}

func TestDirectMessageRequiresContentOrFile(t *testing.T) {
	f, c1, _ := chatFixture()
	f.convs.convs[9] = Conversation{ID: 9, OrgID: 1, User1ID: 1, User2ID: 2}

	f.core.HandleEvent(context.Background(), c1, frame(t, evDirectMessage, map[string]any{
		"conversationId": 9,
	}))

	if len(f.convs.saved) != 0 {
		t.Fatalf("bodyless direct message must be dropped")
	}
}

func TestFileOnlyMessageIsAccepted(t *testing.T) {
	f, c1, _ := chatFixture()
	join(t, f, c1, 1, 1)
	drain(t, c1)

	f.core.HandleEvent(context.Background(), c1, frame(t, evChatMessage, map[string]any{
		"roomId":   1,
		"fileUrl":  "https://files.example/cat.png",
		"fileName": "cat.png",
		"mimeType": "image/png",
	}))

	if len(f.rooms.saved) != 1 {
		t.Fatalf("file-only message should persist, got %d", len(f.rooms.saved))
	}
	msg := lastEvent(t, drain(t, c1), evChatMessage)
	if msg.Data["fileUrl"] != "https://files.example/cat.png" {
		t.Fatalf("file fields should survive the relay: %v", msg.Data)
	}
}

func TestTypingIsPureRelay(t *testing.T) {
	f, c1, c2 := chatFixture()
	ctx := context.Background()
	join(t, f, c1, 1, 1)
	join(t, f, c2, 1, 2)
	drain(t, c1)
	drain(t, c2)

	f.core.HandleEvent(ctx, c1, frame(t, evChatTyping, map[string]int{"roomId": 1}))

	if evs := drain(t, c1); hasEvent(evs, evChatTyping) {
		t.Fatalf("typer must not receive its own typing event")
	}
	typing := lastEvent(t, drain(t, c2), evChatTyping)
	if typing.Data["userId"].(float64) != 1 {
		t.Fatalf("unexpected typing payload: %v", typing.Data)
	}
	if len(f.rooms.saved) != 0 {
		t.Fatalf("typing must not persist anything")
	}
}

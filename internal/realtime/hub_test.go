package realtime

import (
	"testing"

	"github.com/hrivera88/campfyr-sub001/internal/auth"
)

func hubClient(h *Hub, userID int) *Client {
	c := newClient(nil, nil, auth.Identity{UserID: userID, OrgID: 1})
	h.Register(c)
	return c
}

func TestBroadcastReachesSubscribersOnly(t *testing.T) {
	h := NewHub()
	c1 := hubClient(h, 1)
	c2 := hubClient(h, 2)
	c3 := hubClient(h, 3)

	h.Subscribe(c1, RoomChannel(5))
	h.Subscribe(c2, RoomChannel(5))
	h.Subscribe(c3, RoomChannel(6))

	h.Broadcast(RoomChannel(5), []byte("hi"), nil)

	if len(c1.send) != 1 || len(c2.send) != 1 {
		t.Fatalf("subscribers must receive the frame: %d %d", len(c1.send), len(c2.send))
	}
	if len(c3.send) != 0 {
		t.Fatalf("other channels must not receive the frame")
	}
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	h := NewHub()
	c1 := hubClient(h, 1)
	c2 := hubClient(h, 2)
	h.Subscribe(c1, RoomChannel(5))
	h.Subscribe(c2, RoomChannel(5))

	h.Broadcast(RoomChannel(5), []byte("hi"), c1)

	if len(c1.send) != 0 {
		t.Fatalf("excepted client must be skipped")
	}
	if len(c2.send) != 1 {
		t.Fatalf("other subscribers still receive the frame")
	}
}

func TestUnregisterClosesSendAndLeavesChannels(t *testing.T) {
	h := NewHub()
	c1 := hubClient(h, 1)
	c2 := hubClient(h, 2)
	h.Subscribe(c1, RoomChannel(5))
	h.Subscribe(c2, RoomChannel(5))

	h.Unregister(c1)

	if _, ok := <-c1.send; ok {
		t.Fatalf("send channel must be closed on unregister")
	}
	h.Broadcast(RoomChannel(5), []byte("hi"), nil)
	if len(c2.send) != 1 {
		t.Fatalf("remaining subscriber still receives broadcasts")
	}

	// Unregistering twice must not panic or double-close.
	h.Unregister(c1)
}

func TestClientChannelsSnapshot(t *testing.T) {
	h := NewHub()
	c := hubClient(h, 1)
	h.Subscribe(c, RoomChannel(5))
	h.Subscribe(c, ConversationChannel(9))

	got := h.ClientChannels(c)
	if len(got) != 2 {
		t.Fatalf("expected 2 channels, got %v", got)
	}

	h.Unsubscribe(c, RoomChannel(5))
	if got = h.ClientChannels(c); len(got) != 1 || got[0] != ConversationChannel(9) {
		t.Fatalf("expected only the conversation channel, got %v", got)
	}
}

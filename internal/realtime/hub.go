package realtime

import (
	"fmt"
	"sync"
)

// Channel is a broadcast scope: a room or a direct conversation. Clients
// subscribe to channels and fan-out happens per channel.
type Channel string

func RoomChannel(roomID int) Channel {
	return Channel(fmt.Sprintf("room:%d", roomID))
}

func ConversationChannel(conversationID int) Channel {
	return Channel(fmt.Sprintf("conv:%d", conversationID))
}

// Hub tracks live connections and their channel subscriptions. All state
// is guarded by one RWMutex; broadcasts take the read lock and never block
// on a slow client (full send buffers drop the frame for that client).
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[Channel]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		channels: make(map[Channel]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Unregister drops the client from every channel and closes its send
// channel, stopping the write pump. Safe to call once per client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for ch := range c.channels {
		h.removeFromChannel(c, ch)
	}
	close(c.send)
}

func (h *Hub) Subscribe(c *Client, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	if h.channels[ch] == nil {
		h.channels[ch] = make(map[*Client]struct{})
	}
	h.channels[ch][c] = struct{}{}
	c.channels[ch] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Client, ch Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromChannel(c, ch)
}

func (h *Hub) removeFromChannel(c *Client, ch Channel) {
	if subs, ok := h.channels[ch]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, ch)
		}
	}
	delete(c.channels, ch)
}

// ClientChannels snapshots the channels a client is subscribed to.
func (h *Hub) ClientChannels(c *Client) []Channel {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Channel, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

// Broadcast sends payload to every subscriber of ch, optionally skipping
// one client (the actor, for events like userJoined).
func (h *Hub) Broadcast(ch Channel, payload []byte, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.channels[ch] {
		if c == except {
			continue
		}
		c.enqueue(payload)
	}
}

// Send delivers payload to a single client.
func (h *Hub) Send(c *Client, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[c]; ok {
		c.enqueue(payload)
	}
}

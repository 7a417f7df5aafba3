package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hrivera88/campfyr-sub001/internal/auth"
)

const (
	writeWait  = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait   = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.

	// SDP offers routinely run to tens of kilobytes, so the read limit is
	// far above what plain chat needs.
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the CORS layer in front
	},
}

// Client is one authenticated connection: the websocket, its identity,
// its channel subscriptions, and at most one call it is party to.
type Client struct {
	core *Core
	conn *websocket.Conn

	// Buffered channel of outbound frames. Closed by Hub.Unregister.
	send chan []byte

	identity auth.Identity

	// channels is owned by the hub and guarded by hub.mu.
	channels map[Channel]struct{}

	// activeCall is only touched from this connection's read goroutine.
	activeCall string
}

func newClient(core *Core, conn *websocket.Conn, identity auth.Identity) *Client {
	return &Client{
		core:     core,
		conn:     conn,
		send:     make(chan []byte, 256),
		identity: identity,
		channels: make(map[Channel]struct{}),
	}
}

// enqueue hands a frame to the write pump without blocking. A full buffer
// means a slow consumer; the frame is dropped for that client only.
func (c *Client) enqueue(payload []byte) {
	if payload == nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// readPump processes frames in receipt order on this goroutine; every
// handler runs to completion before the next frame is read, which is the
// per-connection ordering guarantee.
func (c *Client) readPump() {
	defer func() {
		c.core.handleDisconnect(context.Background(), c)
		c.core.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.core.logger.Warn("websocket read failed", "userId", c.identity.UserID, "error", err)
			}
			break
		}
		c.core.HandleEvent(context.Background(), c, message)
	}
}

// writePump drains the send channel onto the wire, coalescing queued
// frames into one write and keeping the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS upgrades an authenticated request into a live connection. The
// identity must already be on the context; this is the one-time gate, and
// no event is dispatched without it.
func (co *Core) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		co.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(co, conn, identity)
	co.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

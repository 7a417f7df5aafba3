// Package realtime is the connection-scoped event core: it multiplexes
// room chat, direct messaging, presence and call signaling over one
// websocket per client, coordinating the ephemeral store (presence sets,
// message cache, call sessions) with the durable store (message history,
// call records).
package realtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/hrivera88/campfyr-sub001/internal/ephemeral"
)

type Config struct {
	// PermissiveRelay: keep persisting and broadcasting chat messages
	// whose room or sender cannot be resolved, logging a warning, instead
	// of dropping them.
	PermissiveRelay bool
}

// Deps are the collaborators the core runs against. Everything is an
// interface so tests run on fakes.
type Deps struct {
	Ephemeral     ephemeral.Store
	Users         UserStore
	Rooms         RoomStore
	Conversations ConversationStore
	Calls         CallStore
	Logger        *slog.Logger
	Now           func() time.Time
}

type Core struct {
	hub           *Hub
	eph           ephemeral.Store
	users         UserStore
	rooms         RoomStore
	conversations ConversationStore
	calls         CallStore
	cfg           Config
	logger        *slog.Logger
	now           func() time.Time
}

func New(cfg Config, deps Deps) *Core {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Core{
		hub:           NewHub(),
		eph:           deps.Ephemeral,
		users:         deps.Users,
		rooms:         deps.Rooms,
		conversations: deps.Conversations,
		calls:         deps.Calls,
		cfg:           cfg,
		logger:        logger,
		now:           now,
	}
}

// HandleEvent decodes and dispatches one inbound frame. The switch covers
// the whole Inbound union; decode rejects anything outside it.
func (co *Core) HandleEvent(ctx context.Context, c *Client, raw []byte) {
	ev, err := DecodeInbound(raw)
	if err != nil {
		co.logger.Warn("dropping inbound event", "userId", c.identity.UserID, "error", err)
		return
	}

	switch p := ev.(type) {
	case *JoinRoom:
		co.handleJoinRoom(ctx, c, p)
	case *LeaveRoom:
		co.handleLeaveRoom(ctx, c, p)
	case *ChatMessage:
		co.handleChatMessage(ctx, c, p)
	case *ChatTyping:
		co.handleChatTyping(c, p, evChatTyping)
	case *ChatStopTyping:
		co.handleChatTyping(c, (*ChatTyping)(p), evChatStopTyping)
	case *DirectJoin:
		co.handleDirectJoin(c, p)
	case *DirectLeave:
		co.handleDirectLeave(c, p)
	case *DirectMessage:
		co.handleDirectMessage(ctx, c, p)
	case *DirectTyping:
		co.handleDirectTyping(c, p.ConversationID, evDirectTyping)
	case *DirectStopTyping:
		co.handleDirectTyping(c, p.ConversationID, evDirectStopTyping)
	case *CallInitiate:
		co.handleCallInitiate(ctx, c, p)
	case *CallAccept:
		co.handleCallAccept(ctx, c, p)
	case *CallReject:
		co.handleCallReject(ctx, c, p)
	case *CallEnd:
		co.handleCallEnd(ctx, c, p)
	case *CallOffer:
		co.handleCallOffer(ctx, c, p)
	case *CallAnswer:
		co.handleCallAnswer(ctx, c, p)
	case *CallICECandidate:
		co.handleCallICECandidate(ctx, c, p)
	case *CallStatusUpdate:
		co.handleCallStatus(ctx, c, p)
	}
}

// handleDisconnect runs once when the transport closes: presence leave
// for every joined room, the durable online flag, and call teardown.
func (co *Core) handleDisconnect(ctx context.Context, c *Client) {
	co.presenceDisconnect(ctx, c)
	co.teardownCallOnDisconnect(ctx, c)
}

// broadcast fans an event out to a channel's subscribers.
func (co *Core) broadcast(ch Channel, event string, data any, except *Client) {
	co.hub.Broadcast(ch, encodeOutbound(event, data), except)
}

// sendTo delivers an event to one client only.
func (co *Core) sendTo(c *Client, event string, data any) {
	co.hub.Send(c, encodeOutbound(event, data))
}

// sendCallError surfaces a scoped error event to the offending connection
// only; it is never broadcast.
func (co *Core) sendCallError(c *Client, err *Error) {
	co.sendTo(c, evCallError, map[string]string{"message": err.Reason})
}

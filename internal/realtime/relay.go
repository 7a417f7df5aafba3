package realtime

import (
	"context"
	"strings"
)

type outChatMessage struct {
	cachedMessage
	Username string `json:"username"`
	RoomID   int    `json:"roomId"`
}

type outDirectMessage struct {
	ID             int     `json:"id"`
	ConversationID int     `json:"conversationId"`
	SenderID       int     `json:"senderId"`
	Username       string  `json:"username"`
	Content        string  `json:"content"`
	Timestamp      int64   `json:"timestamp"`
	FileURL        *string `json:"fileUrl,omitempty"`
	FileName       *string `json:"fileName,omitempty"`
	MimeType       *string `json:"mimeType,omitempty"`
}

func hasBody(content string, fileURL *string) bool {
	return strings.TrimSpace(content) != "" || fileURL != nil
}

// handleChatMessage validates, write-throughs (cache then durable) and
// fans out a room message. A cache-write failure drops the message before
// the durable write; a durable-write failure after a successful cache
// write is not rolled back, only the broadcast is suppressed.
func (co *Core) handleChatMessage(ctx context.Context, c *Client, p *ChatMessage) {
	if p.RoomID == 0 {
		co.logger.Warn("chat message without roomId", "userId", c.identity.UserID)
		return
	}
	if !hasBody(p.Content, p.FileURL) {
		co.logger.Warn("chat message without content or file", "userId", c.identity.UserID, "roomId", p.RoomID)
		return
	}

	if _, err := co.rooms.GetRoom(ctx, p.RoomID, c.identity.OrgID); err != nil {
		co.logger.Warn("chat message for unresolvable room", "roomId", p.RoomID, "error", err)
		if !co.cfg.PermissiveRelay {
			return
		}
	}

	username, ok := co.resolveSender(ctx, c)
	if !ok && !co.cfg.PermissiveRelay {
		co.logger.Warn("chat message from unresolvable sender", "userId", c.identity.UserID)
		return
	}

	now := co.now()
	msg := cachedMessage{
		SenderID:  c.identity.UserID,
		Content:   p.Content,
		Timestamp: now.UnixMilli(),
		FileURL:   p.FileURL,
		FileName:  p.FileName,
		MimeType:  p.MimeType,
	}

	// The cache write gates the durable write: if it fails the message is
	// dropped, so the durable store never holds a message the cache missed.
	if err := co.pushCachedMessage(ctx, p.RoomID, msg); err != nil {
		co.logger.Error("cache write failed", "roomId", p.RoomID, "error", err)
		return
	}

	stored := &StoredMessage{
		RoomID:   p.RoomID,
		SenderID: c.identity.UserID,
		Content:  p.Content,
		FileURL:  p.FileURL,
		FileName: p.FileName,
		MimeType: p.MimeType,
		SentAt:   now,
	}
	if _, err := co.rooms.SaveMessage(ctx, stored); err != nil {
		co.logger.Error("durable message write failed", "roomId", p.RoomID, "error", err)
		return
	}

	co.broadcast(RoomChannel(p.RoomID), evChatMessage, outChatMessage{
		cachedMessage: msg,
		Username:      username,
		RoomID:        p.RoomID,
	}, nil)
}

// resolveSender looks the sender up in the durable store. The fallback
// chain (token username, then "Unknown") only matters in permissive mode;
// strict mode drops the message when resolution fails.
func (co *Core) resolveSender(ctx context.Context, c *Client) (string, bool) {
	senders, err := co.users.GetByIDs(ctx, []int{c.identity.UserID})
	if err == nil {
		if u, ok := senders[c.identity.UserID]; ok {
			return u.Username, true
		}
	} else {
		co.logger.Error("sender lookup failed", "userId", c.identity.UserID, "error", err)
	}
	if c.identity.Username != "" {
		return c.identity.Username, false
	}
	return "Unknown", false
}

func (co *Core) handleChatTyping(c *Client, p *ChatTyping, event string) {
	if p.RoomID == 0 {
		return
	}
	co.broadcast(RoomChannel(p.RoomID), event, map[string]any{
		"roomId":   p.RoomID,
		"userId":   c.identity.UserID,
		"username": c.identity.Username,
	}, c)
}

func (co *Core) handleDirectJoin(c *Client, p *DirectJoin) {
	if p.ConversationID == 0 {
		co.logger.Warn("direct join without conversationId", "userId", c.identity.UserID)
		return
	}
	co.hub.Subscribe(c, ConversationChannel(p.ConversationID))
}

func (co *Core) handleDirectLeave(c *Client, p *DirectLeave) {
	if p.ConversationID == 0 {
		return
	}
	co.hub.Unsubscribe(c, ConversationChannel(p.ConversationID))
}

// handleDirectMessage persists straight to the durable store (direct
// messages have no cache layer) and fans out on success.
func (co *Core) handleDirectMessage(ctx context.Context, c *Client, p *DirectMessage) {
	if p.ConversationID == 0 {
		co.logger.Warn("direct message without conversationId", "userId", c.identity.UserID)
		return
	}
	if !hasBody(p.Content, p.FileURL) {
		co.logger.Warn("direct message without content or file", "userId", c.identity.UserID, "conversationId", p.ConversationID)
		return
	}

	now := co.now()
	rec := &DirectMessageRecord{
		ConversationID: p.ConversationID,
		SenderID:       c.identity.UserID,
		Content:        p.Content,
		FileURL:        p.FileURL,
		FileName:       p.FileName,
		MimeType:       p.MimeType,
		SentAt:         now,
	}
	id, err := co.conversations.SaveMessage(ctx, rec)
	if err != nil {
		co.logger.Error("direct message write failed", "conversationId", p.ConversationID, "error", err)
		return
	}

	username, _ := co.resolveSender(ctx, c)
	co.broadcast(ConversationChannel(p.ConversationID), evDirectMessage, outDirectMessage{
		ID:             id,
		ConversationID: p.ConversationID,
		SenderID:       c.identity.UserID,
		Username:       username,
		Content:        p.Content,
		Timestamp:      now.UnixMilli(),
		FileURL:        p.FileURL,
		FileName:       p.FileName,
		MimeType:       p.MimeType,
	}, nil)
}

func (co *Core) handleDirectTyping(c *Client, conversationID int, event string) {
	if conversationID == 0 {
		return
	}
	co.broadcast(ConversationChannel(conversationID), event, map[string]int{
		"conversationId": conversationID,
		"userId":         c.identity.UserID,
	}, c)
}

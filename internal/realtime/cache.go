package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// cacheCap bounds the per-room recency window; the durable store is
	// the system of record beyond it.
	cacheCap = 50

	// coldCacheTTL bounds how long a durable-store hydration lingers, so
	// cold rooms don't permanently duplicate durable data in the cache.
	coldCacheTTL = 60 * time.Second

	defaultPageSize = 20
)

// CacheCursor is a numeric offset into the head-ordered cache list. It is
// deliberately a distinct type: durable-store pagination uses id-based
// cursors and the two spaces are not interchangeable.
type CacheCursor int

func messagesKey(roomID int) string {
	return fmt.Sprintf("room:%d:messages", roomID)
}

// cachedMessage is the ephemeral copy of a chat message, stored newest
// first in the room's capped list.
type cachedMessage struct {
	SenderID  int     `json:"senderId"`
	Content   string  `json:"content"`
	Timestamp int64   `json:"timestampMillis"`
	FileURL   *string `json:"fileUrl,omitempty"`
	FileName  *string `json:"fileName,omitempty"`
	MimeType  *string `json:"mimeType,omitempty"`
}

// EnrichedMessage is a cached message with sender display fields resolved.
type EnrichedMessage struct {
	cachedMessage
	Username  string  `json:"username"`
	AvatarURL *string `json:"avatarUrl"`
}

type MessagePage struct {
	Data        []EnrichedMessage `json:"data"`
	HasNextPage bool              `json:"hasNextPage"`
	NextCursor  *CacheCursor      `json:"nextCursor"`
}

func emptyPage() MessagePage {
	return MessagePage{Data: []EnrichedMessage{}}
}

// pushCachedMessage inserts at the head and trims the list back to the
// cap, evicting the oldest entries.
func (co *Core) pushCachedMessage(ctx context.Context, roomID int, msg cachedMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	key := messagesKey(roomID)
	if err := co.eph.ListPush(ctx, key, string(raw)); err != nil {
		return err
	}
	return co.eph.ListTrim(ctx, key, 0, cacheCap-1)
}

// RecentMessages reads one page of recent history. A cold cache falls back
// to the durable store and warms the cache for 60 seconds. Retrieval is
// best-effort: every failure degrades to an empty page.
func (co *Core) RecentMessages(ctx context.Context, roomID int, cursor CacheCursor, take int) MessagePage {
	if take <= 0 {
		take = defaultPageSize
	}
	if cursor < 0 {
		cursor = 0
	}

	// The extra element past `take` is only a lookahead for hasNextPage.
	raw, err := co.eph.ListRange(ctx, messagesKey(roomID), int64(cursor), int64(cursor)+int64(take))
	if err != nil {
		co.logger.Error("message cache read failed", "roomId", roomID, "error", err)
		return emptyPage()
	}

	if len(raw) == 0 && cursor == 0 {
		return co.hydrateFromDurable(ctx, roomID, take)
	}

	hasNext := len(raw) > take
	if hasNext {
		raw = raw[:take]
	}

	msgs := make([]cachedMessage, 0, len(raw))
	senderIDs := make([]int, 0, len(raw))
	seen := make(map[int]bool)
	for _, entry := range raw {
		var m cachedMessage
		if err := json.Unmarshal([]byte(entry), &m); err != nil {
			co.logger.Error("malformed cache entry", "roomId", roomID, "error", err)
			return emptyPage()
		}
		msgs = append(msgs, m)
		if !seen[m.SenderID] {
			seen[m.SenderID] = true
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	senders, err := co.users.GetByIDs(ctx, senderIDs)
	if err != nil {
		co.logger.Error("sender lookup failed", "roomId", roomID, "error", err)
		return emptyPage()
	}

	// Reverse to oldest-first before delivery.
	data := make([]EnrichedMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		data = append(data, enrich(msgs[i], senders))
	}

	page := MessagePage{Data: data, HasNextPage: hasNext}
	if hasNext {
		next := cursor + CacheCursor(take)
		page.NextCursor = &next
	}
	return page
}

// enrich resolves sender display fields; unresolvable senders are kept
// with a sentinel rather than dropped.
func enrich(m cachedMessage, senders map[int]User) EnrichedMessage {
	out := EnrichedMessage{cachedMessage: m, Username: "Unknown"}
	if u, ok := senders[m.SenderID]; ok {
		out.Username = u.Username
		out.AvatarURL = u.AvatarURL
	}
	return out
}

// hydrateFromDurable serves a cold room from the durable store and writes
// the page into the cache (oldest-first pushes, so head order matches the
// cache convention) with a short expiry.
func (co *Core) hydrateFromDurable(ctx context.Context, roomID, take int) MessagePage {
	stored, err := co.rooms.RecentMessages(ctx, roomID, take)
	if err != nil {
		co.logger.Error("durable history read failed", "roomId", roomID, "error", err)
		return emptyPage()
	}
	if len(stored) == 0 {
		return emptyPage()
	}

	// stored is newest-first; push from the tail so the newest message
	// ends up at index 0.
	for i := len(stored) - 1; i >= 0; i-- {
		if err := co.pushCachedMessage(ctx, roomID, toCached(stored[i])); err != nil {
			co.logger.Error("cache hydration write failed", "roomId", roomID, "error", err)
			return emptyPage()
		}
	}
	if err := co.eph.Expire(ctx, messagesKey(roomID), coldCacheTTL); err != nil {
		co.logger.Error("cache hydration expire failed", "roomId", roomID, "error", err)
	}

	data := make([]EnrichedMessage, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		s := stored[i]
		data = append(data, EnrichedMessage{
			cachedMessage: toCached(s),
			Username:      s.SenderName,
			AvatarURL:     s.SenderAvatar,
		})
	}
	return MessagePage{Data: data}
}

func toCached(s StoredMessage) cachedMessage {
	return cachedMessage{
		SenderID:  s.SenderID,
		Content:   s.Content,
		Timestamp: s.SentAt.UnixMilli(),
		FileURL:   s.FileURL,
		FileName:  s.FileName,
		MimeType:  s.MimeType,
	}
}

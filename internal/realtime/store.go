package realtime

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by durable store adapters when a referenced row
// does not exist or is not visible to the caller's organization.
var ErrNotFound = errors.New("not found")

type User struct {
	ID        int
	Username  string
	AvatarURL *string
}

type Room struct {
	ID    int
	OrgID int
	Name  string
}

type Conversation struct {
	ID      int
	OrgID   int
	User1ID int
	User2ID int
}

func (c Conversation) HasParticipant(userID int) bool {
	return userID == c.User1ID || userID == c.User2ID
}

// OtherParticipant returns the second party of the pair, or 0 when userID
// is not part of the conversation.
func (c Conversation) OtherParticipant(userID int) int {
	switch userID {
	case c.User1ID:
		return c.User2ID
	case c.User2ID:
		return c.User1ID
	}
	return 0
}

// StoredMessage is a room message as the durable store hands it back,
// with sender display fields already joined in.
type StoredMessage struct {
	ID           int
	RoomID       int
	SenderID     int
	Content      string
	FileURL      *string
	FileName     *string
	MimeType     *string
	SentAt       time.Time
	SenderName   string
	SenderAvatar *string
}

type DirectMessageRecord struct {
	ID             int
	ConversationID int
	SenderID       int
	Content        string
	FileURL        *string
	FileName       *string
	MimeType       *string
	SentAt         time.Time
}

type CallRecord struct {
	ID             string
	ConversationID int
	InitiatorID    int
	ParticipantID  int
	Status         CallStatus
	StartedAt      time.Time
}

// The durable store contracts the core consumes. Implemented by the
// Postgres repositories under internal/user, internal/chat, internal/direct
// and internal/call; tests inject fakes.

type UserStore interface {
	// GetByIDs batch-resolves display fields; absent ids are simply
	// missing from the map, not an error.
	GetByIDs(ctx context.Context, ids []int) (map[int]User, error)
	SetOnline(ctx context.Context, userID int, online bool, lastSeen time.Time) error
}

type RoomStore interface {
	GetRoom(ctx context.Context, roomID, orgID int) (Room, error)
	SaveMessage(ctx context.Context, msg *StoredMessage) (int, error)
	// RecentMessages returns the newest messages first, sender joined.
	RecentMessages(ctx context.Context, roomID, limit int) ([]StoredMessage, error)
}

type ConversationStore interface {
	GetConversation(ctx context.Context, conversationID int) (Conversation, error)
	CreateConversation(ctx context.Context, orgID, userA, userB int) (Conversation, error)
	SaveMessage(ctx context.Context, msg *DirectMessageRecord) (int, error)
}

type CallStore interface {
	Create(ctx context.Context, rec CallRecord) error
	SetStatus(ctx context.Context, callID string, status CallStatus) error
	Finish(ctx context.Context, callID string, status CallStatus, endedAt time.Time, durationSeconds *int) error
}

package direct

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hrivera88/campfyr-sub001/internal/realtime"
)

type Repository struct {
	db *sql.DB
}

var _ realtime.ConversationStore = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// orderPair normalizes a user pair so user1 < user2, guaranteeing one
// conversation row per unordered pair.
func orderPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func (r *Repository) GetConversation(ctx context.Context, conversationID int) (realtime.Conversation, error) {
	conv := realtime.Conversation{}
	query := "SELECT id, organization_id, user1_id, user2_id FROM conversations WHERE id = $1"

	err := r.db.QueryRowContext(ctx, query, conversationID).
		Scan(&conv.ID, &conv.OrgID, &conv.User1ID, &conv.User2ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return realtime.Conversation{}, realtime.ErrNotFound
		}
		return realtime.Conversation{}, err
	}
	return conv, nil
}

// CreateConversation finds or creates the single conversation for a pair
// of users. The upsert keeps concurrent creates from racing past the
// unique constraint.
func (r *Repository) CreateConversation(ctx context.Context, orgID, userA, userB int) (realtime.Conversation, error) {
	u1, u2 := orderPair(userA, userB)

	conv := realtime.Conversation{OrgID: orgID, User1ID: u1, User2ID: u2}
	query := `
		INSERT INTO conversations (organization_id, user1_id, user2_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, orgID, u1, u2).Scan(&conv.ID)
	if err != nil {
		return realtime.Conversation{}, err
	}
	return conv, nil
}

func (r *Repository) SaveMessage(ctx context.Context, msg *realtime.DirectMessageRecord) (int, error) {
	var id int
	query := `
		INSERT INTO direct_messages (conversation_id, sender_id, content, file_url, file_name, mime_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		msg.ConversationID, msg.SenderID, msg.Content,
		msg.FileURL, msg.FileName, msg.MimeType, msg.SentAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	msg.ID = id
	return id, nil
}

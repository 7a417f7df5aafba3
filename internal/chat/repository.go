package chat

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hrivera88/campfyr-sub001/internal/realtime"
)

type Repository struct {
	db *sql.DB
}

var _ realtime.RoomStore = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetRoom resolves a room within one organization; rooms from other orgs
// are indistinguishable from missing ones.
func (r *Repository) GetRoom(ctx context.Context, roomID, orgID int) (realtime.Room, error) {
	room := realtime.Room{}
	query := "SELECT id, organization_id, name FROM rooms WHERE id = $1 AND organization_id = $2"

	err := r.db.QueryRowContext(ctx, query, roomID, orgID).Scan(&room.ID, &room.OrgID, &room.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return realtime.Room{}, realtime.ErrNotFound
		}
		return realtime.Room{}, err
	}
	return room, nil
}

func (r *Repository) SaveMessage(ctx context.Context, msg *realtime.StoredMessage) (int, error) {
	var id int
	query := `
		INSERT INTO messages (room_id, sender_id, content, file_url, file_name, mime_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		msg.RoomID, msg.SenderID, msg.Content,
		msg.FileURL, msg.FileName, msg.MimeType, msg.SentAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	msg.ID = id
	return id, nil
}

// RecentMessages returns the newest messages first with sender display
// fields joined in, for cold-cache hydration.
func (r *Repository) RecentMessages(ctx context.Context, roomID, limit int) ([]realtime.StoredMessage, error) {
	query := `
		SELECT m.id, m.room_id, m.sender_id, m.content,
		       m.file_url, m.file_name, m.mime_type, m.created_at,
		       u.username, u.avatar_url
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.room_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []realtime.StoredMessage
	for rows.Next() {
		var m realtime.StoredMessage
		if err := rows.Scan(
			&m.ID, &m.RoomID, &m.SenderID, &m.Content,
			&m.FileURL, &m.FileName, &m.MimeType, &m.SentAt,
			&m.SenderName, &m.SenderAvatar,
		); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

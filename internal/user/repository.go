package user

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hrivera88/campfyr-sub001/internal/realtime"
)

type Repository struct {
	db *sql.DB
}

var _ realtime.UserStore = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetByIDs batch-resolves display fields for a set of user ids. Ids with
// no row are simply absent from the result.
func (r *Repository) GetByIDs(ctx context.Context, ids []int) (map[int]realtime.User, error) {
	out := make(map[int]realtime.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(
		"SELECT id, username, avatar_url FROM users WHERE id IN (%s)",
		strings.Join(placeholders, ", "),
	)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u realtime.User
		if err := rows.Scan(&u.ID, &u.Username, &u.AvatarURL); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

func (r *Repository) SetOnline(ctx context.Context, userID int, online bool, lastSeen time.Time) error {
	query := "UPDATE users SET is_online = $2, last_seen_at = $3 WHERE id = $1"
	_, err := r.db.ExecContext(ctx, query, userID, online, lastSeen)
	return err
}

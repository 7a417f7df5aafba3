package call

import (
	"context"
	"database/sql"
	"time"

	"github.com/hrivera88/campfyr-sub001/internal/realtime"
)

type Repository struct {
	db *sql.DB
}

var _ realtime.CallStore = (*Repository)(nil)

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, rec realtime.CallRecord) error {
	query := `
		INSERT INTO video_calls (id, conversation_id, initiator_id, participant_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.ConversationID, rec.InitiatorID, rec.ParticipantID,
		string(rec.Status), rec.StartedAt,
	)
	return err
}

func (r *Repository) SetStatus(ctx context.Context, callID string, status realtime.CallStatus) error {
	query := "UPDATE video_calls SET status = $2 WHERE id = $1"
	_, err := r.db.ExecContext(ctx, query, callID, string(status))
	return err
}

// Finish records a terminal state. An already-recorded duration wins, so
// a double-end stays idempotent.
func (r *Repository) Finish(ctx context.Context, callID string, status realtime.CallStatus, endedAt time.Time, durationSeconds *int) error {
	query := `
		UPDATE video_calls
		SET status = $2,
		    ended_at = $3,
		    duration_seconds = COALESCE(duration_seconds, $4)
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, callID, string(status), endedAt, durationSeconds)
	return err
}

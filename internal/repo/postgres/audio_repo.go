package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
)

var ErrAudioNotFound = errors.New("audio reading not found")

type AudioRepo struct {
	pool *pgxpool.Pool
}

func NewAudioRepo(pool *pgxpool.Pool) *AudioRepo {
	return &AudioRepo{pool: pool}
}

func (r *AudioRepo) Create(ctx context.Context, userID, readingID string) (model.AudioReading, error) {
	if r.pool == nil {
		return model.AudioReading{}, errNilPool
	}

	rec := model.AudioReading{
		ID:        uuid.NewString(),
		UserID:    userID,
		ReadingID: readingID,
		Status:    enums.AudioStatusProcessing,
	}
	err := r.pool.QueryRow(ctx, `
INSERT INTO audio_readings (id, user_id, reading_id, status)
VALUES ($1, $2, $3, $4)
RETURNING created_at
`, rec.ID, rec.UserID, rec.ReadingID, string(rec.Status)).Scan(&rec.CreatedAt)
	if err != nil {
		return model.AudioReading{}, fmt.Errorf("insert audio reading: %w", err)
	}
	return rec, nil
}

func (r *AudioRepo) MarkCompleted(ctx context.Context, id, objectKey, audioURL string, at time.Time) error {
	if r.pool == nil {
		return errNilPool
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE audio_readings
SET status = 'completed', object_key = $2, audio_url = $3, completed_at = $4
WHERE id = $1 AND status = 'processing'
`, id, objectKey, audioURL, at.UTC())
	if err != nil {
		return fmt.Errorf("mark audio completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAudioNotFound
	}
	return nil
}

func (r *AudioRepo) MarkFailed(ctx context.Context, id string) error {
	if r.pool == nil {
		return errNilPool
	}

	if _, err := r.pool.Exec(ctx, `
UPDATE audio_readings
SET status = 'failed'
WHERE id = $1 AND status = 'processing'
`, id); err != nil {
		return fmt.Errorf("mark audio failed: %w", err)
	}
	return nil
}

func (r *AudioRepo) ListByReading(ctx context.Context, userID, readingID string) ([]model.AudioReading, error) {
	if r.pool == nil {
		return nil, errNilPool
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, user_id, reading_id, status, COALESCE(object_key, ''), COALESCE(audio_url, ''), created_at, completed_at
FROM audio_readings
WHERE user_id = $1 AND reading_id = $2
ORDER BY created_at DESC
`, userID, readingID)
	if err != nil {
		return nil, fmt.Errorf("list audio readings: %w", err)
	}
	defer rows.Close()

	out := make([]model.AudioReading, 0)
	for rows.Next() {
		var (
			rec    model.AudioReading
			status string
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ReadingID, &status, &rec.ObjectKey, &rec.AudioURL, &rec.CreatedAt, &rec.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan audio reading: %w", err)
		}
		rec.Status = enums.AudioStatus(status)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audio readings: %w", err)
	}
	return out, nil
}

type StaleAudioRecord struct {
	ID        string
	ObjectKey string
}

// FailStale marks audio records stuck in processing since before cutoff as
// failed and returns them. Rows locked by a concurrent run are skipped.
func (r *AudioRepo) FailStale(ctx context.Context, cutoff time.Time, limit int) ([]StaleAudioRecord, error) {
	if r.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 {
		limit = 100
	}

	var out []StaleAudioRecord
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
SELECT id, COALESCE(object_key, '')
FROM audio_readings
WHERE status = 'processing' AND created_at < $1
ORDER BY created_at
LIMIT $2
FOR UPDATE SKIP LOCKED
`, cutoff.UTC(), limit)
		if err != nil {
			return fmt.Errorf("select stale audio: %w", err)
		}
		for rows.Next() {
			var rec StaleAudioRecord
			if err := rows.Scan(&rec.ID, &rec.ObjectKey); err != nil {
				rows.Close()
				return fmt.Errorf("scan stale audio: %w", err)
			}
			out = append(out, rec)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate stale audio: %w", err)
		}
		if len(out) == 0 {
			return nil
		}

		ids := make([]string, 0, len(out))
		for _, rec := range out {
			ids = append(ids, rec.ID)
		}
		if _, err := tx.Exec(ctx, `
UPDATE audio_readings
SET status = 'failed'
WHERE id = ANY($1::uuid[])
`, ids); err != nil {
			return fmt.Errorf("fail stale audio: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

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

var ErrVideoNotFound = errors.New("video not found")

type VideoRepo struct {
	pool *pgxpool.Pool
}

func NewVideoRepo(pool *pgxpool.Pool) *VideoRepo {
	return &VideoRepo{pool: pool}
}

func (r *VideoRepo) Create(ctx context.Context, userID, readingID, avatarID string) (model.Video, error) {
	if r.pool == nil {
		return model.Video{}, errNilPool
	}

	v := model.Video{
		ID:        uuid.NewString(),
		UserID:    userID,
		ReadingID: readingID,
		AvatarID:  avatarID,
		Status:    enums.VideoStatusProcessing,
	}
	err := r.pool.QueryRow(ctx, `
INSERT INTO videos (id, user_id, reading_id, avatar_id, status)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at
`, v.ID, v.UserID, v.ReadingID, v.AvatarID, string(v.Status)).Scan(&v.CreatedAt)
	if err != nil {
		return model.Video{}, fmt.Errorf("insert video: %w", err)
	}
	return v, nil
}

func (r *VideoRepo) SetProviderID(ctx context.Context, id, providerID string) error {
	if r.pool == nil {
		return errNilPool
	}
	if _, err := r.pool.Exec(ctx, `UPDATE videos SET did_video_id = $2 WHERE id = $1`, id, providerID); err != nil {
		return fmt.Errorf("set video provider id: %w", err)
	}
	return nil
}

// UpdateStatus overwrites the stored status with whatever the latest poll saw.
func (r *VideoRepo) UpdateStatus(ctx context.Context, id string, status enums.VideoStatus, videoURL string, durationSec int, completedAt *time.Time) error {
	if r.pool == nil {
		return errNilPool
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE videos
SET
	status = $2,
	video_url = COALESCE(NULLIF($3, ''), video_url),
	duration = COALESCE(NULLIF($4, 0), duration),
	completed_at = COALESCE($5, completed_at)
WHERE id = $1
`, id, string(status), videoURL, durationSec, completedAt)
	if err != nil {
		return fmt.Errorf("update video status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVideoNotFound
	}
	return nil
}

func (r *VideoRepo) Get(ctx context.Context, userID, id string) (model.Video, error) {
	if r.pool == nil {
		return model.Video{}, errNilPool
	}

	var (
		v        model.Video
		status   string
		duration *int
	)
	err := r.pool.QueryRow(ctx, `
SELECT id, user_id, reading_id, avatar_id, COALESCE(did_video_id, ''), status, COALESCE(video_url, ''), duration, created_at, completed_at
FROM videos
WHERE id = $1 AND user_id = $2
`, id, userID).Scan(&v.ID, &v.UserID, &v.ReadingID, &v.AvatarID, &v.ProviderVideoID, &status, &v.VideoURL, &duration, &v.CreatedAt, &v.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Video{}, ErrVideoNotFound
		}
		return model.Video{}, fmt.Errorf("get video: %w", err)
	}
	v.Status = enums.VideoStatus(status)
	if duration != nil {
		v.DurationSec = *duration
	}
	return v, nil
}

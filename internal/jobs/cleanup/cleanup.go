package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/infra/metrics"
	pgrepo "github.com/dneufang33/mira-sora-visions/internal/repo/postgres"
)

const (
	jobName   = "stale_audio_cleanup"
	batchSize = 100
)

type staleAudioStore interface {
	FailStale(ctx context.Context, cutoff time.Time, limit int) ([]pgrepo.StaleAudioRecord, error)
}

type objectDeleter interface {
	Delete(ctx context.Context, key string) error
}

// Job fails narrations stuck in processing and removes any partial upload.
type Job struct {
	audio     staleAudioStore
	storage   objectDeleter
	retention time.Duration
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *zap.Logger
}

func New(audio staleAudioStore, storage objectDeleter, retention time.Duration, m *metrics.Metrics, logger *zap.Logger) *Job {
	if retention <= 0 {
		retention = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		audio:     audio,
		storage:   storage,
		retention: retention,
		metrics:   m,
		now:       time.Now,
		logger:    logger,
	}
}

func (j *Job) Name() string {
	return jobName
}

func (j *Job) Run(ctx context.Context) (err error) {
	defer func() { j.metrics.JobRun(jobName, err) }()

	if j.audio == nil {
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	total := 0
	for {
		stale, err := j.audio.FailStale(ctx, cutoff, batchSize)
		if err != nil {
			return fmt.Errorf("fail stale audio: %w", err)
		}

		for _, rec := range stale {
			if j.storage == nil || rec.ObjectKey == "" {
				continue
			}
			if err := j.storage.Delete(ctx, rec.ObjectKey); err != nil {
				j.logger.Warn("failed to delete stale audio object", zap.Error(err), zap.String("object_key", rec.ObjectKey))
			}
		}

		total += len(stale)
		if len(stale) < batchSize {
			break
		}
	}

	if total > 0 {
		j.logger.Info("cleanup stale audio completed", zap.Int("failed", total))
	}
	return nil
}

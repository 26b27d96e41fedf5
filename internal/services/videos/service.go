package videos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/infra/did"
	"github.com/dneufang33/mira-sora-visions/internal/infra/metrics"
	pgrepo "github.com/dneufang33/mira-sora-visions/internal/repo/postgres"
	authsvc "github.com/dneufang33/mira-sora-visions/internal/services/auth"
	entsvc "github.com/dneufang33/mira-sora-visions/internal/services/entitlements"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("video not found")
	ErrNoProviderID = errors.New("video has no provider id yet")
	ErrEmptyReading = errors.New("reading has no text to present")
)

const maxScriptRunes = 3000

type Store interface {
	Create(ctx context.Context, userID, readingID, avatarID string) (model.Video, error)
	SetProviderID(ctx context.Context, id, providerID string) error
	UpdateStatus(ctx context.Context, id string, status enums.VideoStatus, videoURL string, durationSec int, completedAt *time.Time) error
	Get(ctx context.Context, userID, id string) (model.Video, error)
}

type ReadingSource interface {
	GetReading(ctx context.Context, userID, readingID string) (model.Reading, error)
}

type Presenter interface {
	Submit(ctx context.Context, text, avatarID string) (string, error)
	Poll(ctx context.Context, talkID string) (did.TalkStatus, error)
}

type Gate interface {
	Perform(ctx context.Context, identity authsvc.Identity, action enums.GatedAction, fn func(context.Context) error) (entsvc.Result, error)
}

type Limiter interface {
	Allow(ctx context.Context, userID, kind string) error
}

type Dependencies struct {
	Store     Store
	Readings  ReadingSource
	Presenter Presenter
	Gate      Gate
	Limiter   Limiter
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

type Config struct {
	DefaultAvatar string
}

type Service struct {
	deps Dependencies
	cfg  Config
	log  *zap.Logger
	now  func() time.Time
}

type Outcome struct {
	Video      model.Video
	Accounting entsvc.Result
}

func NewService(deps Dependencies, cfg Config) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{deps: deps, cfg: cfg, log: log, now: time.Now}
}

// Submit queues a presenter video for a reading. Video spends an audio-class
// credit once the provider has accepted the job.
func (s *Service) Submit(ctx context.Context, identity authsvc.Identity, readingID, avatarID string) (Outcome, error) {
	if strings.TrimSpace(readingID) == "" {
		return Outcome{}, ErrValidation
	}
	if err := s.ready(); err != nil {
		return Outcome{}, err
	}
	avatarID = strings.TrimSpace(avatarID)
	if avatarID == "" {
		avatarID = s.cfg.DefaultAvatar
	}

	reading, err := s.deps.Readings.GetReading(ctx, identity.UserID, readingID)
	if err != nil {
		return Outcome{}, err
	}
	script := truncateRunes(strings.TrimSpace(reading.Content), maxScriptRunes)
	if script == "" {
		return Outcome{}, ErrEmptyReading
	}

	var video model.Video
	result, err := s.deps.Gate.Perform(ctx, identity, enums.GatedActionAudio, func(ctx context.Context) error {
		if s.deps.Limiter != nil {
			if err := s.deps.Limiter.Allow(ctx, identity.UserID, "video"); err != nil {
				return err
			}
		}
		created, err := s.deps.Store.Create(ctx, identity.UserID, reading.ID, avatarID)
		if err != nil {
			return fmt.Errorf("create video record: %w", err)
		}
		video = created

		started := s.now()
		providerID, err := s.deps.Presenter.Submit(ctx, script, avatarID)
		s.deps.Metrics.VendorCall("did", s.now().Sub(started), err)
		if err != nil {
			s.markError(ctx, video.ID)
			video.Status = enums.VideoStatusError
			return err
		}

		if err := s.deps.Store.SetProviderID(ctx, video.ID, providerID); err != nil {
			return fmt.Errorf("store provider id: %w", err)
		}
		video.ProviderVideoID = providerID
		return nil
	})
	return Outcome{Video: video, Accounting: result}, err
}

// Poll asks the provider for the current state of a video and records it.
// Concurrent polls race on the record and the last write wins. A state that
// could not be stored is reported as an error.
func (s *Service) Poll(ctx context.Context, identity authsvc.Identity, videoID string) (model.Video, error) {
	if strings.TrimSpace(videoID) == "" {
		return model.Video{}, ErrValidation
	}
	if s.deps.Store == nil || s.deps.Presenter == nil {
		return model.Video{}, fmt.Errorf("video service is not configured")
	}

	video, err := s.deps.Store.Get(ctx, identity.UserID, videoID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrVideoNotFound) {
			return model.Video{}, ErrNotFound
		}
		return model.Video{}, err
	}
	if video.ProviderVideoID == "" {
		return video, ErrNoProviderID
	}

	started := s.now()
	status, err := s.deps.Presenter.Poll(ctx, video.ProviderVideoID)
	s.deps.Metrics.VendorCall("did", s.now().Sub(started), err)
	if err != nil {
		return video, err
	}

	video.Status = status.Status
	var completedAt *time.Time
	if status.Status == enums.VideoStatusDone {
		at := s.now().UTC()
		completedAt = &at
		video.VideoURL = status.ResultURL
		video.DurationSec = status.DurationSec
		video.CompletedAt = completedAt
	}

	if err := s.deps.Store.UpdateStatus(ctx, video.ID, video.Status, status.ResultURL, status.DurationSec, completedAt); err != nil {
		s.log.Warn("store video status failed", zap.String("video_id", video.ID), zap.Error(err))
		return model.Video{}, fmt.Errorf("store video status: %w", err)
	}
	return video, nil
}

func (s *Service) markError(ctx context.Context, id string) {
	if err := s.deps.Store.UpdateStatus(context.WithoutCancel(ctx), id, enums.VideoStatusError, "", 0, nil); err != nil {
		s.log.Warn("mark video error failed", zap.String("video_id", id), zap.Error(err))
	}
}

func (s *Service) ready() error {
	switch {
	case s.deps.Store == nil:
		return fmt.Errorf("video store is nil")
	case s.deps.Readings == nil:
		return fmt.Errorf("reading source is nil")
	case s.deps.Presenter == nil:
		return fmt.Errorf("video presenter is nil")
	case s.deps.Gate == nil:
		return fmt.Errorf("entitlement gate is nil")
	}
	return nil
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

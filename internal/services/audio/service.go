package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/infra/metrics"
	authsvc "github.com/dneufang33/mira-sora-visions/internal/services/auth"
	entsvc "github.com/dneufang33/mira-sora-visions/internal/services/entitlements"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrEmptyReading = errors.New("reading has no text to narrate")
)

type Store interface {
	Create(ctx context.Context, userID, readingID string) (model.AudioReading, error)
	MarkCompleted(ctx context.Context, id, objectKey, audioURL string, at time.Time) error
	MarkFailed(ctx context.Context, id string) error
	ListByReading(ctx context.Context, userID, readingID string) ([]model.AudioReading, error)
}

type ReadingSource interface {
	GetReading(ctx context.Context, userID, readingID string) (model.Reading, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	ContentType() string
}

type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	URL(ctx context.Context, key string) (string, error)
}

type Gate interface {
	Perform(ctx context.Context, identity authsvc.Identity, action enums.GatedAction, fn func(context.Context) error) (entsvc.Result, error)
}

type Limiter interface {
	Allow(ctx context.Context, userID, kind string) error
}

type Dependencies struct {
	Store       Store
	Readings    ReadingSource
	Synthesizer Synthesizer
	Storage     ObjectStorage
	Gate        Gate
	Limiter     Limiter
	Metrics     *metrics.Metrics
	Logger      *zap.Logger
}

type Service struct {
	deps Dependencies
	log  *zap.Logger
	now  func() time.Time
}

type Outcome struct {
	Audio      model.AudioReading
	Accounting entsvc.Result
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{deps: deps, log: log, now: time.Now}
}

// Generate narrates a reading. It spends one audio credit, and only once the
// file is stored and the record is marked completed.
func (s *Service) Generate(ctx context.Context, identity authsvc.Identity, readingID string) (Outcome, error) {
	if strings.TrimSpace(readingID) == "" {
		return Outcome{}, ErrValidation
	}
	if err := s.ready(); err != nil {
		return Outcome{}, err
	}

	reading, err := s.deps.Readings.GetReading(ctx, identity.UserID, readingID)
	if err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(reading.Content) == "" {
		return Outcome{}, ErrEmptyReading
	}

	var rec model.AudioReading
	result, err := s.deps.Gate.Perform(ctx, identity, enums.GatedActionAudio, func(ctx context.Context) error {
		// Only requests the gate lets through count against the generation window.
		if s.deps.Limiter != nil {
			if err := s.deps.Limiter.Allow(ctx, identity.UserID, "audio"); err != nil {
				return err
			}
		}
		created, err := s.narrate(ctx, identity.UserID, reading)
		rec = created
		return err
	})
	return Outcome{Audio: rec, Accounting: result}, err
}

func (s *Service) List(ctx context.Context, identity authsvc.Identity, readingID string) ([]model.AudioReading, error) {
	if s.deps.Store == nil {
		return nil, fmt.Errorf("audio store is nil")
	}
	return s.deps.Store.ListByReading(ctx, identity.UserID, readingID)
}

func (s *Service) narrate(ctx context.Context, userID string, reading model.Reading) (model.AudioReading, error) {
	rec, err := s.deps.Store.Create(ctx, userID, reading.ID)
	if err != nil {
		return model.AudioReading{}, fmt.Errorf("create audio record: %w", err)
	}

	fail := func(err error) (model.AudioReading, error) {
		if markErr := s.deps.Store.MarkFailed(context.WithoutCancel(ctx), rec.ID); markErr != nil {
			s.log.Warn("mark audio failed", zap.String("audio_id", rec.ID), zap.Error(markErr))
		}
		rec.Status = enums.AudioStatusFailed
		return rec, err
	}

	started := s.now()
	data, err := s.deps.Synthesizer.Synthesize(ctx, reading.Content)
	s.deps.Metrics.VendorCall("deepgram", s.now().Sub(started), err)
	if err != nil {
		s.log.Warn("speech synthesis failed", zap.String("audio_id", rec.ID), zap.Error(err))
		return fail(err)
	}

	key := ObjectKey(rec.ID)
	if err := s.deps.Storage.Put(ctx, key, data, s.deps.Synthesizer.ContentType()); err != nil {
		return fail(fmt.Errorf("upload audio: %w", err))
	}
	audioURL, err := s.deps.Storage.URL(ctx, key)
	if err != nil {
		return fail(fmt.Errorf("resolve audio url: %w", err))
	}

	completedAt := s.now().UTC()
	if err := s.deps.Store.MarkCompleted(ctx, rec.ID, key, audioURL, completedAt); err != nil {
		return fail(fmt.Errorf("mark audio completed: %w", err))
	}

	rec.Status = enums.AudioStatusCompleted
	rec.ObjectKey = key
	rec.AudioURL = audioURL
	rec.CompletedAt = &completedAt
	return rec, nil
}

func (s *Service) ready() error {
	switch {
	case s.deps.Store == nil:
		return fmt.Errorf("audio store is nil")
	case s.deps.Readings == nil:
		return fmt.Errorf("reading source is nil")
	case s.deps.Synthesizer == nil:
		return fmt.Errorf("speech synthesizer is nil")
	case s.deps.Storage == nil:
		return fmt.Errorf("object storage is nil")
	case s.deps.Gate == nil:
		return fmt.Errorf("entitlement gate is nil")
	}
	return nil
}

func ObjectKey(audioID string) string {
	return "audio/" + audioID + ".mp3"
}

package export

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	authsvc "github.com/dneufang33/mira-sora-visions/internal/services/auth"
	entsvc "github.com/dneufang33/mira-sora-visions/internal/services/entitlements"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrEmptyReading = errors.New("reading has no text to export")
)

type ReadingSource interface {
	GetReading(ctx context.Context, userID, readingID string) (model.Reading, error)
}

type ObjectStorage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
}

type Gate interface {
	Perform(ctx context.Context, identity authsvc.Identity, action enums.GatedAction, fn func(context.Context) error) (entsvc.Result, error)
}

type Service struct {
	readings ReadingSource
	storage  ObjectStorage
	gate     Gate
	log      *zap.Logger
	now      func() time.Time
}

type Outcome struct {
	Export     model.Export
	Accounting entsvc.Result
}

func NewService(readings ReadingSource, storage ObjectStorage, gate Gate, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{readings: readings, storage: storage, gate: gate, log: log, now: time.Now}
}

// Export renders a reading to PDF behind the export gate and returns a
// time-limited download link.
func (s *Service) Export(ctx context.Context, identity authsvc.Identity, readingID string) (Outcome, error) {
	if strings.TrimSpace(readingID) == "" {
		return Outcome{}, ErrValidation
	}
	if s.readings == nil || s.storage == nil || s.gate == nil {
		return Outcome{}, fmt.Errorf("export service is not configured")
	}

	reading, err := s.readings.GetReading(ctx, identity.UserID, readingID)
	if err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(reading.Content) == "" {
		return Outcome{}, ErrEmptyReading
	}

	var exp model.Export
	result, err := s.gate.Perform(ctx, identity, enums.GatedActionExport, func(ctx context.Context) error {
		now := s.now().UTC()
		doc, err := renderReading(reading, now)
		if err != nil {
			return err
		}

		key := fmt.Sprintf("exports/%s/%s.pdf", reading.ID, uuid.NewString())
		if err := s.storage.Put(ctx, key, doc, "application/pdf"); err != nil {
			return fmt.Errorf("upload pdf: %w", err)
		}
		link, err := s.storage.PresignGet(ctx, key)
		if err != nil {
			return fmt.Errorf("presign pdf: %w", err)
		}

		exp = model.Export{
			ReadingID: reading.ID,
			ObjectKey: key,
			URL:       link,
			SizeBytes: int64(len(doc)),
			CreatedAt: now,
		}
		return nil
	})
	if err != nil {
		s.log.Warn("reading export failed", zap.String("reading_id", readingID), zap.Error(err))
	}
	return Outcome{Export: exp, Accounting: result}, err
}

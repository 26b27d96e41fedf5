package readings

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
	"github.com/dneufang33/mira-sora-visions/internal/pkg/validate"
	pgrepo "github.com/dneufang33/mira-sora-visions/internal/repo/postgres"
)

const (
	maxListItems   = 12
	maxItemLength  = 80
	maxPlaceLength = 200
	maxInfoLength  = 2000
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
)

type Store interface {
	CreateQuestionnaire(ctx context.Context, q model.Questionnaire) (model.Questionnaire, error)
	GetQuestionnaire(ctx context.Context, userID, id string) (model.Questionnaire, error)
	ListQuestionnaires(ctx context.Context, userID string, limit int) ([]model.Questionnaire, error)
	CreateReading(ctx context.Context, rd model.Reading) (model.Reading, error)
	GetReading(ctx context.Context, userID, id string) (model.Reading, error)
	ListReadings(ctx context.Context, userID string, limit int) ([]model.Reading, error)
}

type TextGenerator interface {
	Complete(ctx context.Context, system, prompt string, maxTokens int) (string, error)
}

type Limiter interface {
	Allow(ctx context.Context, userID, kind string) error
}

type Dependencies struct {
	Store     Store
	Generator TextGenerator
	Limiter   Limiter
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

type Service struct {
	store     Store
	generator TextGenerator
	limiter   Limiter
	metrics   *metrics.Metrics
	log       *zap.Logger
	now       func() time.Time
}

type QuestionnaireInput struct {
	BirthDate         string
	BirthTime         string
	BirthPlace        string
	PersonalityTraits []string
	LifeGoals         []string
	AdditionalInfo    string
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:     deps.Store,
		generator: deps.Generator,
		limiter:   deps.Limiter,
		metrics:   deps.Metrics,
		log:       log,
		now:       time.Now,
	}
}

func (s *Service) SubmitQuestionnaire(ctx context.Context, userID string, in QuestionnaireInput) (model.Questionnaire, error) {
	if strings.TrimSpace(userID) == "" {
		return model.Questionnaire{}, ErrValidation
	}
	if s.store == nil {
		return model.Questionnaire{}, fmt.Errorf("reading store is nil")
	}

	q, err := s.buildQuestionnaire(userID, in)
	if err != nil {
		return model.Questionnaire{}, err
	}
	return s.store.CreateQuestionnaire(ctx, q)
}

func (s *Service) ListQuestionnaires(ctx context.Context, userID string, limit int) ([]model.Questionnaire, error) {
	if s.store == nil {
		return nil, fmt.Errorf("reading store is nil")
	}
	return s.store.ListQuestionnaires(ctx, userID, limit)
}

// GenerateReading produces the free welcome reading for a questionnaire.
func (s *Service) GenerateReading(ctx context.Context, userID, questionnaireID string) (model.Reading, error) {
	q, err := s.prepare(ctx, userID, questionnaireID, "reading")
	if err != nil {
		return model.Reading{}, err
	}

	prompt := readingPrompt(q)
	text, err := s.complete(ctx, readingSystem, prompt, readingMaxTokens)
	if err != nil {
		return model.Reading{}, err
	}

	return s.store.CreateReading(ctx, model.Reading{
		UserID:          userID,
		QuestionnaireID: q.ID,
		Content:         text,
		Prompt:          prompt,
	})
}

// GenerateReport produces a purchased cosmic report. Unknown report types
// fall back to the natal chart.
func (s *Service) GenerateReport(ctx context.Context, userID, rawType, questionnaireID string) (model.Reading, error) {
	q, err := s.prepare(ctx, userID, questionnaireID, "report")
	if err != nil {
		return model.Reading{}, err
	}

	reportType := enums.ParseReportType(strings.TrimSpace(rawType))
	prompt := reportPrompt(reportType, q)
	text, err := s.complete(ctx, reportSystem, prompt, reportMaxTokens)
	if err != nil {
		return model.Reading{}, err
	}

	return s.store.CreateReading(ctx, model.Reading{
		UserID:          userID,
		QuestionnaireID: q.ID,
		ReportType:      &reportType,
		Content:         text,
		Prompt:          prompt,
	})
}

func (s *Service) GetReading(ctx context.Context, userID, readingID string) (model.Reading, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(readingID) == "" {
		return model.Reading{}, ErrValidation
	}
	if s.store == nil {
		return model.Reading{}, fmt.Errorf("reading store is nil")
	}

	rd, err := s.store.GetReading(ctx, userID, readingID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrReadingNotFound) {
			return model.Reading{}, ErrNotFound
		}
		return model.Reading{}, err
	}
	return rd, nil
}

func (s *Service) ListReadings(ctx context.Context, userID string, limit int) ([]model.Reading, error) {
	if s.store == nil {
		return nil, fmt.Errorf("reading store is nil")
	}
	return s.store.ListReadings(ctx, userID, limit)
}

func (s *Service) prepare(ctx context.Context, userID, questionnaireID, kind string) (model.Questionnaire, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(questionnaireID) == "" {
		return model.Questionnaire{}, ErrValidation
	}
	if s.store == nil {
		return model.Questionnaire{}, fmt.Errorf("reading store is nil")
	}
	if s.generator == nil {
		return model.Questionnaire{}, fmt.Errorf("text generator is nil")
	}

	q, err := s.store.GetQuestionnaire(ctx, userID, questionnaireID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrQuestionnaireNotFound) {
			return model.Questionnaire{}, ErrNotFound
		}
		return model.Questionnaire{}, err
	}

	if s.limiter != nil {
		if err := s.limiter.Allow(ctx, userID, kind); err != nil {
			return model.Questionnaire{}, err
		}
	}
	return q, nil
}

func (s *Service) complete(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	started := s.now()
	text, err := s.generator.Complete(ctx, system, prompt, maxTokens)
	s.metrics.VendorCall("openai", s.now().Sub(started), err)
	if err != nil {
		s.log.Warn("text generation failed", zap.Error(err))
		return "", err
	}
	return text, nil
}

func (s *Service) buildQuestionnaire(userID string, in QuestionnaireInput) (model.Questionnaire, error) {
	birthDate, err := time.Parse("2006-01-02", strings.TrimSpace(in.BirthDate))
	if err != nil {
		return model.Questionnaire{}, fmt.Errorf("%w: birth_date must be YYYY-MM-DD", ErrValidation)
	}
	if birthDate.After(s.now()) {
		return model.Questionnaire{}, fmt.Errorf("%w: birth_date is in the future", ErrValidation)
	}

	birthTime := strings.TrimSpace(in.BirthTime)
	if birthTime != "" {
		if _, err := time.Parse("15:04", birthTime); err != nil {
			return model.Questionnaire{}, fmt.Errorf("%w: birth_time must be HH:MM", ErrValidation)
		}
	}

	place := strings.TrimSpace(in.BirthPlace)
	if !validate.Required(place) || !validate.MaxRunes(place, maxPlaceLength) {
		return model.Questionnaire{}, fmt.Errorf("%w: birth_place is required", ErrValidation)
	}

	info := strings.TrimSpace(in.AdditionalInfo)
	if !validate.MaxRunes(info, maxInfoLength) {
		return model.Questionnaire{}, fmt.Errorf("%w: additional_info is too long", ErrValidation)
	}

	traits, err := cleanList(in.PersonalityTraits, "personality_traits")
	if err != nil {
		return model.Questionnaire{}, err
	}
	goals, err := cleanList(in.LifeGoals, "life_goals")
	if err != nil {
		return model.Questionnaire{}, err
	}

	return model.Questionnaire{
		UserID:            userID,
		BirthDate:         birthDate,
		BirthTime:         birthTime,
		BirthPlace:        place,
		PersonalityTraits: traits,
		LifeGoals:         goals,
		AdditionalInfo:    info,
	}, nil
}

func cleanList(values []string, field string) ([]string, error) {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !validate.MaxRunes(v, maxItemLength) {
			return nil, fmt.Errorf("%w: %s entries are too long", ErrValidation, field)
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	if len(out) > maxListItems {
		return nil, fmt.Errorf("%w: too many %s", ErrValidation, field)
	}
	return out, nil
}

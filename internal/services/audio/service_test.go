package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
	authsvc "github.com/dneufang33/mira-sora-visions/internal/services/auth"
	entsvc "github.com/dneufang33/mira-sora-visions/internal/services/entitlements"
)

var identity = authsvc.Identity{UserID: "user-1", Email: "star@example.com"}

type storeStub struct {
	created   int
	completed map[string]string
	failed    []string
}

func (s *storeStub) Create(_ context.Context, userID, readingID string) (model.AudioReading, error) {
	s.created++
	return model.AudioReading{ID: "audio-1", UserID: userID, ReadingID: readingID, Status: enums.AudioStatusProcessing}, nil
}

func (s *storeStub) MarkCompleted(_ context.Context, id, _, audioURL string, _ time.Time) error {
	if s.completed == nil {
		s.completed = make(map[string]string)
	}
	s.completed[id] = audioURL
	return nil
}

func (s *storeStub) MarkFailed(_ context.Context, id string) error {
	s.failed = append(s.failed, id)
	return nil
}

func (s *storeStub) ListByReading(context.Context, string, string) ([]model.AudioReading, error) {
	return nil, nil
}

type readingsStub struct{}

func (readingsStub) GetReading(_ context.Context, userID, readingID string) (model.Reading, error) {
	return model.Reading{ID: readingID, UserID: userID, Content: "The moon listens."}, nil
}

type synthStub struct {
	err error
}

func (s synthStub) Synthesize(context.Context, string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("ID3-audio"), nil
}

func (synthStub) ContentType() string { return "audio/mpeg" }

type storageStub struct {
	objects map[string][]byte
}

func (s *storageStub) Put(_ context.Context, key string, data []byte, _ string) error {
	if s.objects == nil {
		s.objects = make(map[string][]byte)
	}
	s.objects[key] = data
	return nil
}

func (s *storageStub) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.example/" + key, nil
}

type gateStub struct {
	decision rules.Decision
	debited  int
}

func (g *gateStub) Perform(ctx context.Context, _ authsvc.Identity, action enums.GatedAction, fn func(context.Context) error) (entsvc.Result, error) {
	if !g.decision.Allowed {
		return entsvc.Result{Decision: g.decision}, entsvc.ErrNoCreditsRemaining
	}
	if err := fn(ctx); err != nil {
		return entsvc.Result{Decision: g.decision}, err
	}
	g.debited++
	return entsvc.Result{Decision: g.decision}, nil
}

func TestGenerateStoresAudioAndDebits(t *testing.T) {
	store := &storeStub{}
	storage := &storageStub{}
	gate := &gateStub{decision: rules.Decision{Allowed: true, CreditsRemaining: 2}}
	svc := NewService(Dependencies{
		Store:       store,
		Readings:    readingsStub{},
		Synthesizer: synthStub{},
		Storage:     storage,
		Gate:        gate,
	})

	out, err := svc.Generate(context.Background(), identity, "reading-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out.Audio.Status != enums.AudioStatusCompleted || out.Audio.AudioURL != "https://cdn.example/audio/audio-1.mp3" {
		t.Fatalf("unexpected audio record: %+v", out.Audio)
	}
	if string(storage.objects["audio/audio-1.mp3"]) != "ID3-audio" {
		t.Fatalf("audio was not uploaded")
	}
	if gate.debited != 1 || store.completed["audio-1"] == "" {
		t.Fatalf("unexpected accounting: debited=%d completed=%v", gate.debited, store.completed)
	}
}

func TestGenerateFailureMarksRecordAndSkipsDebit(t *testing.T) {
	store := &storeStub{}
	gate := &gateStub{decision: rules.Decision{Allowed: true, CreditsRemaining: 2}}
	synthErr := errors.New("deepgram down")
	svc := NewService(Dependencies{
		Store:       store,
		Readings:    readingsStub{},
		Synthesizer: synthStub{err: synthErr},
		Storage:     &storageStub{},
		Gate:        gate,
	})

	out, err := svc.Generate(context.Background(), identity, "reading-1")
	if !errors.Is(err, synthErr) {
		t.Fatalf("unexpected error: %v", err)
	}
	if gate.debited != 0 {
		t.Fatalf("credit debited for failed narration")
	}
	if len(store.failed) != 1 || out.Audio.Status != enums.AudioStatusFailed {
		t.Fatalf("audio record not marked failed: failed=%v status=%s", store.failed, out.Audio.Status)
	}
}

func TestGenerateDeniedDoesNotCreateRecord(t *testing.T) {
	store := &storeStub{}
	gate := &gateStub{decision: rules.Decision{Reason: rules.DenyNoCreditsRemaining}}
	svc := NewService(Dependencies{
		Store:       store,
		Readings:    readingsStub{},
		Synthesizer: synthStub{},
		Storage:     &storageStub{},
		Gate:        gate,
	})

	if _, err := svc.Generate(context.Background(), identity, "reading-1"); !errors.Is(err, entsvc.ErrNoCreditsRemaining) {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.created != 0 {
		t.Fatalf("audio record created without entitlement")
	}
}

type limiterStub struct {
	calls int
}

func (l *limiterStub) Allow(context.Context, string, string) error {
	l.calls++
	return nil
}

func TestGenerateDeniedDoesNotSpendRateWindow(t *testing.T) {
	store := &storeStub{}
	limiter := &limiterStub{}
	svc := NewService(Dependencies{
		Store:       store,
		Readings:    readingsStub{},
		Synthesizer: synthStub{},
		Storage:     &storageStub{},
		Gate:        &gateStub{},
		Limiter:     limiter,
	})

	if _, err := svc.Generate(context.Background(), identity, "reading-1"); !errors.Is(err, entsvc.ErrNoCreditsRemaining) {
		t.Fatalf("unexpected error: %v", err)
	}
	if limiter.calls != 0 || store.created != 0 {
		t.Fatalf("limiter=%d created=%d", limiter.calls, store.created)
	}
}

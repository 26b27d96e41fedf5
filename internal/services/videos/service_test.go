package videos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
	"github.com/dneufang33/mira-sora-visions/internal/infra/did"
	pgrepo "github.com/dneufang33/mira-sora-visions/internal/repo/postgres"
	authsvc "github.com/dneufang33/mira-sora-visions/internal/services/auth"
	entsvc "github.com/dneufang33/mira-sora-visions/internal/services/entitlements"
)

var identity = authsvc.Identity{UserID: "user-1", Email: "star@example.com"}

type storeStub struct {
	videos    map[string]model.Video
	updates   int
	updateErr error
}

func newStoreStub() *storeStub {
	return &storeStub{videos: map[string]model.Video{}}
}

func (s *storeStub) Create(_ context.Context, userID, readingID, avatarID string) (model.Video, error) {
	v := model.Video{ID: "video-1", UserID: userID, ReadingID: readingID, AvatarID: avatarID, Status: enums.VideoStatusProcessing}
	s.videos[v.ID] = v
	return v, nil
}

func (s *storeStub) SetProviderID(_ context.Context, id, providerID string) error {
	v := s.videos[id]
	v.ProviderVideoID = providerID
	s.videos[id] = v
	return nil
}

func (s *storeStub) UpdateStatus(_ context.Context, id string, status enums.VideoStatus, videoURL string, durationSec int, completedAt *time.Time) error {
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	v := s.videos[id]
	v.Status = status
	if videoURL != "" {
		v.VideoURL = videoURL
	}
	if durationSec > 0 {
		v.DurationSec = durationSec
	}
	if completedAt != nil {
		v.CompletedAt = completedAt
	}
	s.videos[id] = v
	return nil
}

func (s *storeStub) Get(_ context.Context, _ string, id string) (model.Video, error) {
	v, ok := s.videos[id]
	if !ok {
		return model.Video{}, pgrepo.ErrVideoNotFound
	}
	return v, nil
}

type readingsStub struct{}

func (readingsStub) GetReading(_ context.Context, _ string, id string) (model.Reading, error) {
	return model.Reading{ID: id, Content: "The moon is kind to you this week."}, nil
}

type presenterStub struct {
	submitErr    error
	status       did.TalkStatus
	avatarSeen   string
	submitCalled int
}

func (p *presenterStub) Submit(_ context.Context, _ string, avatarID string) (string, error) {
	p.submitCalled++
	p.avatarSeen = avatarID
	if p.submitErr != nil {
		return "", p.submitErr
	}
	return "tlk_123", nil
}

func (p *presenterStub) Poll(context.Context, string) (did.TalkStatus, error) {
	return p.status, nil
}

type gateStub struct {
	deny    bool
	debited int
}

func (g *gateStub) Perform(ctx context.Context, _ authsvc.Identity, action enums.GatedAction, fn func(context.Context) error) (entsvc.Result, error) {
	if action != enums.GatedActionAudio {
		return entsvc.Result{}, errors.New("unexpected action")
	}
	if g.deny {
		return entsvc.Result{Decision: rules.Decision{Action: action}}, entsvc.ErrNoCreditsRemaining
	}
	if err := fn(ctx); err != nil {
		return entsvc.Result{}, err
	}
	g.debited++
	return entsvc.Result{Decision: rules.Decision{Action: action, Allowed: true}}, nil
}

type limiterStub struct {
	err   error
	calls int
}

func (l *limiterStub) Allow(context.Context, string, string) error {
	l.calls++
	return l.err
}

func newTestService(store *storeStub, presenter *presenterStub, gate *gateStub) *Service {
	return NewService(Dependencies{
		Store:     store,
		Readings:  readingsStub{},
		Presenter: presenter,
		Gate:      gate,
	}, Config{DefaultAvatar: "amy"})
}

func TestSubmitUsesDefaultAvatarAndDebits(t *testing.T) {
	store := newStoreStub()
	presenter := &presenterStub{}
	gate := &gateStub{}
	svc := newTestService(store, presenter, gate)

	out, err := svc.Submit(context.Background(), identity, "reading-1", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if presenter.avatarSeen != "amy" || out.Video.AvatarID != "amy" {
		t.Fatalf("unexpected avatar: %s", presenter.avatarSeen)
	}
	if out.Video.ProviderVideoID != "tlk_123" || store.videos["video-1"].ProviderVideoID != "tlk_123" {
		t.Fatalf("provider id not stored: %+v", out.Video)
	}
	if gate.debited != 1 {
		t.Fatalf("unexpected debit count: %d", gate.debited)
	}
}

func TestSubmitFailureMarksErrorWithoutDebit(t *testing.T) {
	store := newStoreStub()
	submitErr := errors.New("d-id down")
	gate := &gateStub{}
	svc := newTestService(store, &presenterStub{submitErr: submitErr}, gate)

	out, err := svc.Submit(context.Background(), identity, "reading-1", "custom")
	if !errors.Is(err, submitErr) {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Video.Status != enums.VideoStatusError || store.videos["video-1"].Status != enums.VideoStatusError {
		t.Fatalf("video not marked error")
	}
	if gate.debited != 0 {
		t.Fatalf("credit debited for failed submit")
	}
}

func TestSubmitDeniedSkipsProvider(t *testing.T) {
	presenter := &presenterStub{}
	svc := newTestService(newStoreStub(), presenter, &gateStub{deny: true})

	if _, err := svc.Submit(context.Background(), identity, "reading-1", ""); !errors.Is(err, entsvc.ErrNoCreditsRemaining) {
		t.Fatalf("unexpected error: %v", err)
	}
	if presenter.submitCalled != 0 {
		t.Fatalf("provider called for denied submit")
	}
}

func TestPollRecordsCompletion(t *testing.T) {
	store := newStoreStub()
	store.videos["video-1"] = model.Video{ID: "video-1", ProviderVideoID: "tlk_123", Status: enums.VideoStatusProcessing}
	presenter := &presenterStub{status: did.TalkStatus{Status: enums.VideoStatusDone, ResultURL: "https://cdn.example/v.mp4", DurationSec: 42}}
	svc := newTestService(store, presenter, &gateStub{})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	video, err := svc.Poll(context.Background(), identity, "video-1")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if video.Status != enums.VideoStatusDone || video.VideoURL == "" || video.DurationSec != 42 {
		t.Fatalf("unexpected video: %+v", video)
	}
	stored := store.videos["video-1"]
	if stored.CompletedAt == nil || !stored.CompletedAt.Equal(fixed) {
		t.Fatalf("completion time not stored")
	}
}

func TestPollProcessingKeepsCompletionEmpty(t *testing.T) {
	store := newStoreStub()
	store.videos["video-1"] = model.Video{ID: "video-1", ProviderVideoID: "tlk_123", Status: enums.VideoStatusProcessing}
	svc := newTestService(store, &presenterStub{status: did.TalkStatus{Status: enums.VideoStatusProcessing}}, &gateStub{})

	video, err := svc.Poll(context.Background(), identity, "video-1")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if video.CompletedAt != nil || store.updates != 1 {
		t.Fatalf("unexpected video: %+v", video)
	}
}

func TestPollErrors(t *testing.T) {
	store := newStoreStub()
	store.videos["pending"] = model.Video{ID: "pending"}
	svc := newTestService(store, &presenterStub{}, &gateStub{})

	if _, err := svc.Poll(context.Background(), identity, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Poll(context.Background(), identity, "pending"); !errors.Is(err, ErrNoProviderID) {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Poll(context.Background(), identity, " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSubmitDeniedDoesNotSpendRateWindow(t *testing.T) {
	limiter := &limiterStub{}
	svc := newTestService(newStoreStub(), &presenterStub{}, &gateStub{deny: true})
	svc.deps.Limiter = limiter

	if _, err := svc.Submit(context.Background(), identity, "reading-1", ""); !errors.Is(err, entsvc.ErrNoCreditsRemaining) {
		t.Fatalf("unexpected error: %v", err)
	}
	if limiter.calls != 0 {
		t.Fatalf("limiter consulted for denied submit: %d", limiter.calls)
	}
}

func TestSubmitRateLimitedSkipsProviderAndDebit(t *testing.T) {
	limitErr := errors.New("slow down")
	limiter := &limiterStub{err: limitErr}
	presenter := &presenterStub{}
	gate := &gateStub{}
	svc := newTestService(newStoreStub(), presenter, gate)
	svc.deps.Limiter = limiter

	if _, err := svc.Submit(context.Background(), identity, "reading-1", ""); !errors.Is(err, limitErr) {
		t.Fatalf("unexpected error: %v", err)
	}
	if limiter.calls != 1 || presenter.submitCalled != 0 || gate.debited != 0 {
		t.Fatalf("limiter=%d submit=%d debited=%d", limiter.calls, presenter.submitCalled, gate.debited)
	}
}

func TestPollReportsUnstoredStatus(t *testing.T) {
	store := newStoreStub()
	store.videos["video-1"] = model.Video{ID: "video-1", ProviderVideoID: "tlk_123", Status: enums.VideoStatusProcessing}
	writeErr := errors.New("db write timeout")
	store.updateErr = writeErr
	presenter := &presenterStub{status: did.TalkStatus{Status: enums.VideoStatusDone, ResultURL: "https://cdn.example/v.mp4", DurationSec: 42}}
	svc := newTestService(store, presenter, &gateStub{})

	video, err := svc.Poll(context.Background(), identity, "video-1")
	if !errors.Is(err, writeErr) {
		t.Fatalf("unexpected error: %v", err)
	}
	if video.Status == enums.VideoStatusDone {
		t.Fatalf("unstored done state returned: %+v", video)
	}
}

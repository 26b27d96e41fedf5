package entitlements

import (
	"context"
	"strings"
	"sync"

	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
)

// Mirror caches the last reconciled record per user. Set is reserved for
// reconciliation and DecrementCredits for the debit path.
type Mirror interface {
	Get(ctx context.Context, userID string) (model.SubscriptionRecord, bool, error)
	Set(ctx context.Context, rec model.SubscriptionRecord) error
	DecrementCredits(ctx context.Context, userID string) (int, error)
}

type MemoryMirror struct {
	mu      sync.Mutex
	records map[string]model.SubscriptionRecord
}

func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{records: make(map[string]model.SubscriptionRecord)}
}

func (m *MemoryMirror) Get(_ context.Context, userID string) (model.SubscriptionRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[strings.TrimSpace(userID)]
	if !ok {
		return model.Unsubscribed(userID, ""), false, nil
	}
	return rec, true, nil
}

func (m *MemoryMirror) Set(_ context.Context, rec model.SubscriptionRecord) error {
	if strings.TrimSpace(rec.UserID) == "" {
		return ErrValidation
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[strings.TrimSpace(rec.UserID)] = rec
	return nil
}

func (m *MemoryMirror) DecrementCredits(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.TrimSpace(userID)
	rec, ok := m.records[key]
	if !ok {
		return 0, ErrNotCached
	}
	if rec.CreditsRemaining <= 0 {
		return 0, ErrAlreadyExhausted
	}
	rec.CreditsRemaining--
	m.records[key] = rec
	return rec.CreditsRemaining, nil
}

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	authsvc "github.com/dneufang33/mira-sora-visions/internal/services/auth"
	entsvc "github.com/dneufang33/mira-sora-visions/internal/services/entitlements"
)

var (
	testIdentity = authsvc.Identity{UserID: "user-1", Email: "star@example.com", Role: "authenticated"}
	periodStart  = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	periodEnd    = time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
)

type billingStub struct {
	customer     *model.BillingCustomer
	subscription *model.BillingSubscription
	err          error
}

func (b *billingStub) FindCustomerByEmail(context.Context, string) (model.BillingCustomer, bool, error) {
	if b.err != nil {
		return model.BillingCustomer{}, false, b.err
	}
	if b.customer == nil {
		return model.BillingCustomer{}, false, nil
	}
	return *b.customer, true, nil
}

func (b *billingStub) ActiveSubscription(context.Context, string) (model.BillingSubscription, bool, error) {
	if b.subscription == nil {
		return model.BillingSubscription{}, false, nil
	}
	return *b.subscription, true, nil
}

func (b *billingStub) PriceAmount(context.Context, string) (int64, error) {
	return 0, nil
}

type subscriberStub struct {
	mu       sync.Mutex
	records  map[string]model.SubscriptionRecord
	writeErr error
}

func newSubscriberStub() *subscriberStub {
	return &subscriberStub{records: map[string]model.SubscriptionRecord{}}
}

func (s *subscriberStub) GetByEmail(_ context.Context, email string) (model.SubscriptionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[email]
	return rec, ok, nil
}

func (s *subscriberStub) Upsert(_ context.Context, rec model.SubscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Email] = rec
	return nil
}

func (s *subscriberStub) SetCreditsRemaining(_ context.Context, email string, credits int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	rec := s.records[email]
	rec.CreditsRemaining = credits
	s.records[email] = rec
	return nil
}

func subscribedBilling(amount int64) *billingStub {
	return &billingStub{
		customer: &model.BillingCustomer{ID: "cus_1", Email: testIdentity.Email},
		subscription: &model.BillingSubscription{
			ID:          "sub_1",
			CustomerID:  "cus_1",
			UnitAmount:  amount,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
		},
	}
}

func newEntitlements(billing *billingStub) *entsvc.Service {
	return entsvc.NewService(entsvc.Dependencies{
		Billing: billing,
		Store:   newSubscriberStub(),
		Mirror:  entsvc.NewMemoryMirror(),
	}, entsvc.Config{})
}

// serve routes one request through a chi router so URL params resolve.
func serve(t *testing.T, method, pattern, target, body string, handler http.HandlerFunc, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.Method(method, pattern, handler)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		req = req.WithContext(authsvc.WithIdentity(req.Context(), testIdentity))
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

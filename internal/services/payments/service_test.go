package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/infra/httpclient"
	stripeinfra "github.com/dneufang33/mira-sora-visions/internal/infra/stripe"
	authsvc "github.com/dneufang33/mira-sora-visions/internal/services/auth"
)

var identity = authsvc.Identity{UserID: "user-7", Email: "Moon@Example.com"}

type providerStub struct {
	customer    *model.BillingCustomer
	checkouts   []stripeinfra.CheckoutParams
	portalFor   string
	portalURL   string
	checkoutErr error
}

func (p *providerStub) FindCustomerByEmail(_ context.Context, email string) (model.BillingCustomer, bool, error) {
	if p.customer == nil {
		return model.BillingCustomer{}, false, nil
	}
	return *p.customer, true, nil
}

func (p *providerStub) CreateCheckoutSession(_ context.Context, in stripeinfra.CheckoutParams) (string, error) {
	if p.checkoutErr != nil {
		return "", p.checkoutErr
	}
	p.checkouts = append(p.checkouts, in)
	return "https://checkout.stripe.test/c/pay_1", nil
}

func (p *providerStub) CreatePortalSession(_ context.Context, customerID, returnURL string) (string, error) {
	p.portalFor = customerID
	p.portalURL = returnURL
	return "https://billing.stripe.test/p/session_1", nil
}

func TestStartCheckoutNewCustomer(t *testing.T) {
	provider := &providerStub{}
	svc := NewService(provider, Config{AppURL: "https://mira.example"}, nil)

	redirect, err := svc.StartCheckout(context.Background(), identity, "spoken", "https://app.mira.example/pricing")
	if err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	if redirect != "https://checkout.stripe.test/c/pay_1" {
		t.Fatalf("unexpected redirect: %s", redirect)
	}
	if len(provider.checkouts) != 1 {
		t.Fatalf("unexpected checkout count: %d", len(provider.checkouts))
	}

	got := provider.checkouts[0]
	if got.Mode != stripeinfra.ModeSubscription || !got.Recurring {
		t.Fatalf("unexpected mode: %+v", got)
	}
	if got.CustomerID != "" || got.CustomerEmail != "moon@example.com" {
		t.Fatalf("unexpected customer fields: id=%q email=%q", got.CustomerID, got.CustomerEmail)
	}
	if got.UnitAmount != 1999 || got.Currency != "eur" || got.ProductName != "Spoken Readings" {
		t.Fatalf("unexpected price data: %+v", got)
	}
	if got.SuccessURL != "https://app.mira.example/dashboard?payment=success" || got.CancelURL != "https://app.mira.example/dashboard?payment=canceled" {
		t.Fatalf("unexpected return urls: %s %s", got.SuccessURL, got.CancelURL)
	}
	if got.Metadata["user_id"] != "user-7" || got.Metadata["tier"] != "spoken" {
		t.Fatalf("unexpected metadata: %v", got.Metadata)
	}
}

func TestStartCheckoutExistingCustomerFallsBackToAppURL(t *testing.T) {
	provider := &providerStub{customer: &model.BillingCustomer{ID: "cus_42"}}
	svc := NewService(provider, Config{AppURL: "https://mira.example/"}, nil)

	if _, err := svc.StartCheckout(context.Background(), identity, "written", ""); err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	got := provider.checkouts[0]
	if got.CustomerID != "cus_42" || got.CustomerEmail != "" {
		t.Fatalf("unexpected customer fields: id=%q email=%q", got.CustomerID, got.CustomerEmail)
	}
	if got.UnitAmount != 999 {
		t.Fatalf("unexpected amount: %d", got.UnitAmount)
	}
	if got.SuccessURL != "https://mira.example/dashboard?payment=success" {
		t.Fatalf("unexpected success url: %s", got.SuccessURL)
	}
}

func TestStartCheckoutRejectsUnknownTier(t *testing.T) {
	provider := &providerStub{}
	svc := NewService(provider, Config{}, nil)

	for _, tier := range []string{"", "none", "lunar", "platinum"} {
		if _, err := svc.StartCheckout(context.Background(), identity, tier, ""); !errors.Is(err, ErrUnsupportedTier) {
			t.Fatalf("unexpected error for tier %q: %v", tier, err)
		}
	}
	if len(provider.checkouts) != 0 {
		t.Fatalf("checkout created for invalid tier")
	}
}

func TestStartCheckoutSurfacesProviderFailure(t *testing.T) {
	provider := &providerStub{checkoutErr: &httpclient.RequestError{Op: "stripe create checkout", StatusCode: 400, Message: "Invalid currency"}}
	svc := NewService(provider, Config{}, nil)

	_, err := svc.StartCheckout(context.Background(), identity, "written", "")
	if msg, ok := httpclient.ProviderMessage(err); !ok || msg != "Invalid currency" {
		t.Fatalf("unexpected provider error: %v", err)
	}
}

func TestStartProductCheckout(t *testing.T) {
	provider := &providerStub{}
	svc := NewService(provider, Config{AppURL: "https://mira.example"}, nil)

	if _, err := svc.StartProductCheckout(context.Background(), identity, "synastry-compatibility", "http://localhost:5173"); err != nil {
		t.Fatalf("start product checkout: %v", err)
	}
	got := provider.checkouts[0]
	if got.Mode != stripeinfra.ModePayment || got.Recurring {
		t.Fatalf("unexpected mode: %+v", got)
	}
	if got.UnitAmount != 1222 {
		t.Fatalf("unexpected amount: %d", got.UnitAmount)
	}
	if got.Metadata["product_type"] != "synastry" || got.Metadata["product_id"] != "synastry-compatibility" {
		t.Fatalf("unexpected metadata: %v", got.Metadata)
	}
	if got.SuccessURL != "http://localhost:5173/dashboard?payment=success&product=synastry-compatibility" {
		t.Fatalf("unexpected success url: %s", got.SuccessURL)
	}

	if _, err := svc.StartProductCheckout(context.Background(), identity, "horoscope", ""); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("unexpected unknown product error: %v", err)
	}
}

func TestOpenPortal(t *testing.T) {
	svc := NewService(&providerStub{}, Config{AppURL: "https://mira.example"}, nil)
	if _, err := svc.OpenPortal(context.Background(), identity, ""); !errors.Is(err, ErrNoBillingCustomer) {
		t.Fatalf("unexpected error without customer: %v", err)
	}

	provider := &providerStub{customer: &model.BillingCustomer{ID: "cus_42"}}
	svc = NewService(provider, Config{AppURL: "https://mira.example"}, nil)
	redirect, err := svc.OpenPortal(context.Background(), identity, "")
	if err != nil {
		t.Fatalf("open portal: %v", err)
	}
	if redirect == "" || provider.portalFor != "cus_42" || provider.portalURL != "https://mira.example/dashboard" {
		t.Fatalf("unexpected portal call: redirect=%s customer=%s return=%s", redirect, provider.portalFor, provider.portalURL)
	}
}

func TestNilProvider(t *testing.T) {
	svc := NewService(nil, Config{}, nil)
	if _, err := svc.StartCheckout(context.Background(), identity, "written", ""); !errors.Is(err, stripeinfra.ErrNotConfigured) {
		t.Fatalf("unexpected error: %v", err)
	}
}

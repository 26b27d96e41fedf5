package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
	stripeinfra "github.com/dneufang33/mira-sora-visions/internal/infra/stripe"
	authsvc "github.com/dneufang33/mira-sora-visions/internal/services/auth"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrUnsupportedTier   = errors.New("unsupported subscription tier")
	ErrUnknownProduct    = errors.New("unknown product")
	ErrNoBillingCustomer = errors.New("no billing customer for this user")
)

var planNames = map[enums.Tier]string{
	enums.TierWritten: "Written Readings",
	enums.TierSpoken:  "Spoken Readings",
}

type CheckoutProvider interface {
	FindCustomerByEmail(ctx context.Context, email string) (model.BillingCustomer, bool, error)
	CreateCheckoutSession(ctx context.Context, in stripeinfra.CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

type Config struct {
	Currency string
	AppURL   string
	Policy   rules.TierPolicy
}

type Service struct {
	provider CheckoutProvider
	cfg      Config
	log      *zap.Logger
}

func NewService(provider CheckoutProvider, cfg Config, log *zap.Logger) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "eur"
	}
	if len(cfg.Policy.Prices) == 0 {
		cfg.Policy = rules.DefaultTierPolicy()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{provider: provider, cfg: cfg, log: log}
}

// StartCheckout opens a hosted monthly subscription checkout for tier and
// returns the redirect URL. Completion is only observed by reconciliation.
func (s *Service) StartCheckout(ctx context.Context, identity authsvc.Identity, rawTier, origin string) (string, error) {
	tier, ok := enums.ParseTier(rawTier)
	if !ok {
		return "", ErrUnsupportedTier
	}
	amount, ok := s.cfg.Policy.PriceFor(tier)
	if !ok || amount <= 0 {
		return "", ErrUnsupportedTier
	}

	params, err := s.baseParams(ctx, identity, origin)
	if err != nil {
		return "", err
	}
	base := params.SuccessURL
	params.Mode = stripeinfra.ModeSubscription
	params.ProductName = planNames[tier]
	params.UnitAmount = amount
	params.Recurring = true
	params.SuccessURL = base + "/dashboard?payment=success"
	params.CancelURL = base + "/dashboard?payment=canceled"
	params.Metadata = map[string]string{
		"user_id": identity.UserID,
		"tier":    string(tier),
	}

	redirect, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create subscription checkout: %w", err)
	}
	s.log.Info("subscription checkout created", zap.String("user_id", identity.UserID), zap.String("tier", string(tier)))
	return redirect, nil
}

// StartProductCheckout opens a one-off payment checkout for a cosmic report.
func (s *Service) StartProductCheckout(ctx context.Context, identity authsvc.Identity, productID, origin string) (string, error) {
	product, ok := rules.ProductByID(strings.TrimSpace(productID))
	if !ok {
		return "", ErrUnknownProduct
	}

	params, err := s.baseParams(ctx, identity, origin)
	if err != nil {
		return "", err
	}
	base := params.SuccessURL
	params.Mode = stripeinfra.ModePayment
	params.ProductName = product.Name
	params.Description = product.Description
	params.UnitAmount = product.AmountCents
	params.SuccessURL = base + "/dashboard?payment=success&product=" + url.QueryEscape(string(product.ID))
	params.CancelURL = base + "/dashboard?payment=canceled"
	params.Metadata = map[string]string{
		"user_id":      identity.UserID,
		"product_type": string(product.ReportType),
		"product_id":   string(product.ID),
	}

	redirect, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", fmt.Errorf("create product checkout: %w", err)
	}
	s.log.Info("product checkout created", zap.String("user_id", identity.UserID), zap.String("product_id", string(product.ID)))
	return redirect, nil
}

func (s *Service) OpenPortal(ctx context.Context, identity authsvc.Identity, origin string) (string, error) {
	if s.provider == nil {
		return "", stripeinfra.ErrNotConfigured
	}
	email := normalizeEmail(identity.Email)
	if email == "" {
		return "", ErrValidation
	}

	customer, found, err := s.provider.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("find billing customer: %w", err)
	}
	if !found {
		return "", ErrNoBillingCustomer
	}

	redirect, err := s.provider.CreatePortalSession(ctx, customer.ID, s.returnBase(origin)+"/dashboard")
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	s.log.Info("billing portal opened", zap.String("user_id", identity.UserID))
	return redirect, nil
}

// baseParams resolves the customer and leaves the return base in SuccessURL.
func (s *Service) baseParams(ctx context.Context, identity authsvc.Identity, origin string) (stripeinfra.CheckoutParams, error) {
	if s.provider == nil {
		return stripeinfra.CheckoutParams{}, stripeinfra.ErrNotConfigured
	}
	email := normalizeEmail(identity.Email)
	if email == "" || strings.TrimSpace(identity.UserID) == "" {
		return stripeinfra.CheckoutParams{}, ErrValidation
	}

	params := stripeinfra.CheckoutParams{
		Currency:   s.cfg.Currency,
		SuccessURL: s.returnBase(origin),
	}

	customer, found, err := s.provider.FindCustomerByEmail(ctx, email)
	if err != nil {
		return stripeinfra.CheckoutParams{}, fmt.Errorf("find billing customer: %w", err)
	}
	if found {
		params.CustomerID = customer.ID
	} else {
		params.CustomerEmail = email
	}
	return params, nil
}

func (s *Service) returnBase(origin string) string {
	origin = strings.TrimSpace(origin)
	if u, err := url.Parse(origin); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return u.Scheme + "://" + u.Host
	}
	return strings.TrimRight(s.cfg.AppURL, "/")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

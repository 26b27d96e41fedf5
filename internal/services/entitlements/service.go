package entitlements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
	"github.com/dneufang33/mira-sora-visions/internal/domain/rules"
	"github.com/dneufang33/mira-sora-visions/internal/infra/metrics"
	redrepo "github.com/dneufang33/mira-sora-visions/internal/repo/redis"
	authsvc "github.com/dneufang33/mira-sora-visions/internal/services/auth"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrNotSubscribed      = errors.New("subscription required")
	ErrNoCreditsRemaining = errors.New("no credits remaining")
	ErrActionInProgress   = errors.New("action already in progress")
	ErrProvider           = errors.New("billing provider failure")
	ErrPersistence        = errors.New("persistence failure")

	// ErrAlreadyExhausted is shared with the redis mirror so both
	// implementations report a lost race the same way.
	ErrAlreadyExhausted = redrepo.ErrMirrorExhausted
	ErrNotCached        = redrepo.ErrMirrorMiss
)

type BillingProvider interface {
	FindCustomerByEmail(ctx context.Context, email string) (model.BillingCustomer, bool, error)
	ActiveSubscription(ctx context.Context, customerID string) (model.BillingSubscription, bool, error)
	PriceAmount(ctx context.Context, priceID string) (int64, error)
}

type Store interface {
	GetByEmail(ctx context.Context, email string) (model.SubscriptionRecord, bool, error)
	Upsert(ctx context.Context, rec model.SubscriptionRecord) error
	SetCreditsRemaining(ctx context.Context, email string, credits int) error
}

type BusyLocker interface {
	Acquire(ctx context.Context, userID, action string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, userID, action string) error
}

type Config struct {
	MonthlyAllotment int
	Policy           rules.TierPolicy
	BusyTTL          time.Duration
}

type Dependencies struct {
	Billing BillingProvider
	Store   Store
	Mirror  Mirror
	Busy    BusyLocker
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

type Service struct {
	billing BillingProvider
	store   Store
	mirror  Mirror
	busy    BusyLocker
	metrics *metrics.Metrics
	log     *zap.Logger
	cfg     Config
	now     func() time.Time
}

// Result is what a gated action produced on the accounting side. OverGranted
// is set when the action ran but another session had already spent the last
// credit. DebitFailed is set when the action ran but its credit could not be
// recorded.
type Result struct {
	Decision    rules.Decision
	Record      model.SubscriptionRecord
	OverGranted bool
	DebitFailed bool
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MonthlyAllotment <= 0 {
		cfg.MonthlyAllotment = rules.MonthlyAllotment
	}
	if len(cfg.Policy.Bands) == 0 {
		cfg.Policy = rules.DefaultTierPolicy()
	}
	if cfg.BusyTTL <= 0 {
		cfg.BusyTTL = 2 * time.Minute
	}
	mirror := deps.Mirror
	if mirror == nil {
		mirror = NewMemoryMirror()
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		billing: deps.Billing,
		store:   deps.Store,
		mirror:  mirror,
		busy:    deps.Busy,
		metrics: deps.Metrics,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Reconcile rebuilds the user's record from the billing provider and persists
// it. On failure the mirror keeps its previous value.
func (s *Service) Reconcile(ctx context.Context, identity authsvc.Identity) (model.SubscriptionRecord, error) {
	rec, outcome, err := s.reconcile(ctx, identity)
	if err != nil {
		s.metrics.Reconciliation("error")
		s.log.Warn("reconciliation failed, keeping last known state",
			zap.String("user_id", identity.UserID),
			zap.Error(err),
		)
		return model.SubscriptionRecord{}, err
	}
	s.metrics.Reconciliation(outcome)
	return rec, nil
}

func (s *Service) reconcile(ctx context.Context, identity authsvc.Identity) (model.SubscriptionRecord, string, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if strings.TrimSpace(identity.UserID) == "" || email == "" {
		return model.SubscriptionRecord{}, "", ErrValidation
	}
	if s.billing == nil {
		return model.SubscriptionRecord{}, "", fmt.Errorf("%w: billing provider is nil", ErrProvider)
	}
	if s.store == nil {
		return model.SubscriptionRecord{}, "", fmt.Errorf("%w: subscriber store is nil", ErrPersistence)
	}

	customer, found, err := s.billing.FindCustomerByEmail(ctx, email)
	if err != nil {
		return model.SubscriptionRecord{}, "", providerErr("find customer", err)
	}

	persisted, _, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return model.SubscriptionRecord{}, "", persistenceErr("read subscriber", err)
	}

	rec := model.Unsubscribed(identity.UserID, email)
	rec.LastResetAt = persisted.LastResetAt
	outcome := "no_customer"

	if found {
		customerID := customer.ID
		rec.StripeCustomerID = &customerID
		outcome = "unsubscribed"

		sub, active, err := s.billing.ActiveSubscription(ctx, customer.ID)
		if err != nil {
			return model.SubscriptionRecord{}, "", providerErr("list subscriptions", err)
		}
		if active {
			amount := sub.UnitAmount
			if amount <= 0 && sub.PriceID != "" {
				amount, err = s.billing.PriceAmount(ctx, sub.PriceID)
				if err != nil {
					return model.SubscriptionRecord{}, "", providerErr("retrieve price", err)
				}
			}

			periodEnd := sub.PeriodEnd.UTC()
			credits, lastReset := rules.ApplyRollover(
				persisted.CreditsRemaining,
				persisted.LastResetAt,
				sub.PeriodStart,
				s.cfg.MonthlyAllotment,
			)

			rec.Subscribed = true
			rec.Tier = s.cfg.Policy.TierForAmount(amount)
			rec.PeriodEnd = &periodEnd
			rec.CreditsRemaining = credits
			rec.LastResetAt = lastReset
			outcome = "subscribed"
		}
	}

	rec.UpdatedAt = s.now().UTC()
	if err := s.store.Upsert(ctx, rec); err != nil {
		return model.SubscriptionRecord{}, "", persistenceErr("upsert subscriber", err)
	}
	if err := s.mirror.Set(ctx, rec); err != nil {
		return model.SubscriptionRecord{}, "", fmt.Errorf("update mirror: %w", err)
	}
	return rec, outcome, nil
}

// Current returns the mirrored record, reconciling first when the mirror has
// nothing for the user yet.
func (s *Service) Current(ctx context.Context, identity authsvc.Identity) (model.SubscriptionRecord, error) {
	rec, found, err := s.mirror.Get(ctx, identity.UserID)
	if err != nil {
		s.log.Warn("mirror read failed, reconciling", zap.String("user_id", identity.UserID), zap.Error(err))
	}
	if err == nil && found {
		return rec, nil
	}
	return s.Reconcile(ctx, identity)
}

func (s *Service) Check(ctx context.Context, identity authsvc.Identity, action enums.GatedAction) (rules.Decision, error) {
	action, ok := enums.ParseGatedAction(string(action))
	if !ok {
		return rules.Decision{}, ErrValidation
	}

	rec, err := s.Current(ctx, identity)
	if err != nil {
		return rules.Decision{}, err
	}

	decision := rules.CanPerform(rec, action)
	s.metrics.GateDecision(string(action), string(decision.Reason))
	return decision, nil
}

// DebitOnSuccess spends one credit for an action that has already succeeded,
// then refreshes the record from persisted state.
func (s *Service) DebitOnSuccess(ctx context.Context, identity authsvc.Identity, action enums.GatedAction) (model.SubscriptionRecord, error) {
	action, ok := enums.ParseGatedAction(string(action))
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if !ok || strings.TrimSpace(identity.UserID) == "" || email == "" {
		return model.SubscriptionRecord{}, ErrValidation
	}

	left, err := s.decrement(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrAlreadyExhausted) {
			s.metrics.Debit("exhausted")
			s.log.Warn("credit already exhausted after gated action",
				zap.String("user_id", identity.UserID),
				zap.String("action", string(action)),
			)
			return model.SubscriptionRecord{}, ErrAlreadyExhausted
		}
		s.metrics.Debit("error")
		return model.SubscriptionRecord{}, fmt.Errorf("decrement mirror credits: %w", err)
	}

	if s.store == nil {
		s.metrics.Debit("error")
		return model.SubscriptionRecord{}, fmt.Errorf("%w: subscriber store is nil", ErrPersistence)
	}
	if err := s.store.SetCreditsRemaining(ctx, email, left); err != nil {
		s.metrics.Debit("error")
		return model.SubscriptionRecord{}, persistenceErr("persist credits", err)
	}
	s.metrics.Debit("ok")

	rec, err := s.Reconcile(ctx, identity)
	if err != nil {
		s.log.Warn("post-debit refresh failed", zap.String("user_id", identity.UserID), zap.Error(err))
		cached, _, mirrorErr := s.mirror.Get(ctx, identity.UserID)
		if mirrorErr != nil {
			return model.SubscriptionRecord{}, fmt.Errorf("read mirror: %w", mirrorErr)
		}
		return cached, nil
	}
	return rec, nil
}

// decrement spends one mirrored credit. An entry that expired after the gate
// check is reloaded from persisted state before spending.
func (s *Service) decrement(ctx context.Context, identity authsvc.Identity) (int, error) {
	left, err := s.mirror.DecrementCredits(ctx, identity.UserID)
	if !errors.Is(err, ErrNotCached) {
		return left, err
	}

	s.log.Info("mirror entry missing at debit, reconciling", zap.String("user_id", identity.UserID))
	if _, err := s.Reconcile(ctx, identity); err != nil {
		return 0, err
	}
	return s.mirror.DecrementCredits(ctx, identity.UserID)
}

// Perform runs fn behind the gate and debits only if fn succeeds. Once fn has
// succeeded its outcome stands: accounting problems after that point are
// reported on the Result, never as an error.
func (s *Service) Perform(ctx context.Context, identity authsvc.Identity, action enums.GatedAction, fn func(context.Context) error) (Result, error) {
	action, ok := enums.ParseGatedAction(string(action))
	if fn == nil || !ok {
		return Result{}, ErrValidation
	}

	if s.busy != nil {
		acquired, err := s.busy.Acquire(ctx, identity.UserID, string(action), s.cfg.BusyTTL)
		if err != nil {
			s.log.Warn("busy flag unavailable", zap.String("user_id", identity.UserID), zap.Error(err))
		} else if !acquired {
			return Result{}, ErrActionInProgress
		} else {
			defer func() {
				if err := s.busy.Release(context.WithoutCancel(ctx), identity.UserID, string(action)); err != nil {
					s.log.Warn("release busy flag", zap.String("user_id", identity.UserID), zap.Error(err))
				}
			}()
		}
	}

	decision, err := s.Check(ctx, identity, action)
	if err != nil {
		return Result{}, err
	}
	if !decision.Allowed {
		return Result{Decision: decision}, denialErr(decision.Reason)
	}

	if err := fn(ctx); err != nil {
		return Result{Decision: decision}, err
	}

	rec, err := s.DebitOnSuccess(ctx, identity, action)
	switch {
	case err == nil:
		return Result{Decision: decision, Record: rec}, nil
	case errors.Is(err, ErrAlreadyExhausted):
		return Result{Decision: decision, Record: s.recordAfterAction(ctx, identity, 0), OverGranted: true}, nil
	default:
		s.log.Warn("debit failed after gated action, keeping result",
			zap.String("user_id", identity.UserID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
		return Result{Decision: decision, Record: s.resync(ctx, identity, decision), DebitFailed: true}, nil
	}
}

// resync brings the mirror back in line with persisted state after a debit
// that could not be recorded.
func (s *Service) resync(ctx context.Context, identity authsvc.Identity, decision rules.Decision) model.SubscriptionRecord {
	rec, err := s.Reconcile(context.WithoutCancel(ctx), identity)
	if err != nil {
		return s.recordAfterAction(ctx, identity, max(decision.CreditsRemaining-1, 0))
	}
	return rec
}

// recordAfterAction reads the mirrored record for the response. When the
// mirror cannot answer, a subscribed record holding fallbackCredits stands in.
func (s *Service) recordAfterAction(ctx context.Context, identity authsvc.Identity, fallbackCredits int) model.SubscriptionRecord {
	rec, found, err := s.mirror.Get(ctx, identity.UserID)
	if err == nil && found {
		return rec
	}
	if err != nil {
		s.log.Warn("mirror read failed after gated action", zap.String("user_id", identity.UserID), zap.Error(err))
	}

	fallback := model.Unsubscribed(identity.UserID, strings.ToLower(strings.TrimSpace(identity.Email)))
	fallback.Subscribed = true
	fallback.CreditsRemaining = fallbackCredits
	return fallback
}

func denialErr(reason rules.DenyReason) error {
	switch reason {
	case rules.DenyNotSubscribed:
		return ErrNotSubscribed
	case rules.DenyNoCreditsRemaining:
		return ErrNoCreditsRemaining
	default:
		return ErrValidation
	}
}

func providerErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
}

func persistenceErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}

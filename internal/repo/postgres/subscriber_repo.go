package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
)

// SubscriberRepo persists one subscription record per email. Writes are
// last-write-wins; no read-modify-write is done inside the database.
type SubscriberRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriberRepo(pool *pgxpool.Pool) *SubscriberRepo {
	return &SubscriberRepo{pool: pool}
}

func (r *SubscriberRepo) GetByEmail(ctx context.Context, email string) (model.SubscriptionRecord, bool, error) {
	if r.pool == nil {
		return model.SubscriptionRecord{}, false, errNilPool
	}
	email = normalizeEmail(email)
	if email == "" {
		return model.SubscriptionRecord{}, false, fmt.Errorf("email is required")
	}

	var (
		rec  model.SubscriptionRecord
		tier string
	)
	err := r.pool.QueryRow(ctx, `
SELECT
	email,
	user_id,
	stripe_customer_id,
	subscribed,
	subscription_tier,
	subscription_end,
	readings_remaining,
	last_reset_date,
	updated_at
FROM subscribers
WHERE email = $1
LIMIT 1
`, email).Scan(
		&rec.Email,
		&rec.UserID,
		&rec.StripeCustomerID,
		&rec.Subscribed,
		&tier,
		&rec.PeriodEnd,
		&rec.CreditsRemaining,
		&rec.LastResetAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SubscriptionRecord{}, false, nil
		}
		return model.SubscriptionRecord{}, false, fmt.Errorf("get subscriber by email: %w", err)
	}
	rec.Tier = enums.Tier(tier)

	return rec, true, nil
}

func (r *SubscriberRepo) Upsert(ctx context.Context, rec model.SubscriptionRecord) error {
	if r.pool == nil {
		return errNilPool
	}
	email := normalizeEmail(rec.Email)
	if email == "" || strings.TrimSpace(rec.UserID) == "" {
		return fmt.Errorf("email and user id are required")
	}
	if rec.Tier == "" {
		rec.Tier = enums.TierNone
	}
	if rec.CreditsRemaining < 0 {
		rec.CreditsRemaining = 0
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO subscribers (
	email,
	user_id,
	stripe_customer_id,
	subscribed,
	subscription_tier,
	subscription_end,
	readings_remaining,
	last_reset_date,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
ON CONFLICT (email) DO UPDATE SET
	user_id = EXCLUDED.user_id,
	stripe_customer_id = EXCLUDED.stripe_customer_id,
	subscribed = EXCLUDED.subscribed,
	subscription_tier = EXCLUDED.subscription_tier,
	subscription_end = EXCLUDED.subscription_end,
	readings_remaining = EXCLUDED.readings_remaining,
	last_reset_date = EXCLUDED.last_reset_date,
	updated_at = NOW()
`,
		email,
		rec.UserID,
		rec.StripeCustomerID,
		rec.Subscribed,
		string(rec.Tier),
		rec.PeriodEnd,
		rec.CreditsRemaining,
		rec.LastResetAt,
	); err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}

	return nil
}

func (r *SubscriberRepo) SetCreditsRemaining(ctx context.Context, email string, credits int) error {
	if r.pool == nil {
		return errNilPool
	}
	if credits < 0 {
		credits = 0
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE subscribers
SET readings_remaining = $2, updated_at = NOW()
WHERE email = $1
`, normalizeEmail(email), credits)
	if err != nil {
		return fmt.Errorf("set readings remaining: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

var ErrSubscriberNotFound = errors.New("subscriber not found")

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package model

import (
	"time"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
)

// SubscriptionRecord is the cached projection of the billing provider's view of a user.
type SubscriptionRecord struct {
	UserID           string     `json:"user_id"`
	Email            string     `json:"email"`
	StripeCustomerID *string    `json:"stripe_customer_id,omitempty"`
	Subscribed       bool       `json:"subscribed"`
	Tier             enums.Tier `json:"tier"`
	PeriodEnd        *time.Time `json:"period_end"`
	CreditsRemaining int        `json:"credits_remaining"`
	LastResetAt      *time.Time `json:"last_reset_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Unsubscribed returns the zeroed record for a user without an active subscription.
func Unsubscribed(userID, email string) SubscriptionRecord {
	return SubscriptionRecord{
		UserID: userID,
		Email:  email,
		Tier:   enums.TierNone,
	}
}

type BillingCustomer struct {
	ID    string
	Email string
}

type BillingSubscription struct {
	ID          string
	CustomerID  string
	PriceID     string
	UnitAmount  int64
	PeriodStart time.Time
	PeriodEnd   time.Time
}

package dto

import "time"

// SubscriptionResponse keeps the field names the web client already reads.
type SubscriptionResponse struct {
	Subscribed        bool       `json:"subscribed"`
	SubscriptionTier  string     `json:"subscription_tier"`
	SubscriptionEnd   *time.Time `json:"subscription_end"`
	ReadingsRemaining int        `json:"readings_remaining"`
	LastResetAt       *time.Time `json:"last_reset_at,omitempty"`
}

type EntitlementResponse struct {
	Action           string `json:"action"`
	Allowed          bool   `json:"allowed"`
	Reason           string `json:"reason,omitempty"`
	CreditsRemaining int    `json:"credits_remaining"`
}

type CreditsResponse struct {
	Remaining   int  `json:"remaining"`
	OverGranted bool `json:"over_granted,omitempty"`
	DebitFailed bool `json:"debit_failed,omitempty"`
}

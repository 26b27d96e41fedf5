package rules

import (
	"time"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
	"github.com/dneufang33/mira-sora-visions/internal/domain/model"
)

const MonthlyAllotment = 4

type DenyReason string

const (
	DenyNone               DenyReason = ""
	DenyNotSubscribed      DenyReason = "not_subscribed"
	DenyNoCreditsRemaining DenyReason = "no_credits_remaining"
)

type Decision struct {
	Action           enums.GatedAction
	Allowed          bool
	Reason           DenyReason
	CreditsRemaining int
}

// CanPerform has no side effects; callers may consult it any number of times.
func CanPerform(record model.SubscriptionRecord, action enums.GatedAction) Decision {
	credits := record.CreditsRemaining
	if credits < 0 {
		credits = 0
	}

	decision := Decision{Action: action, CreditsRemaining: credits}
	switch {
	case !record.Subscribed:
		decision.Reason = DenyNotSubscribed
	case record.CreditsRemaining <= 0:
		decision.Reason = DenyNoCreditsRemaining
	default:
		decision.Allowed = true
	}
	return decision
}

// ShouldReset reports whether a billing period starting at periodStart has not
// yet been credited.
func ShouldReset(lastResetAt *time.Time, periodStart time.Time) bool {
	if lastResetAt == nil || lastResetAt.IsZero() {
		return true
	}
	return periodStart.After(*lastResetAt)
}

// ApplyRollover returns the credit balance and reset marker for the given billing period.
func ApplyRollover(persistedCredits int, lastResetAt *time.Time, periodStart time.Time, allotment int) (int, *time.Time) {
	if ShouldReset(lastResetAt, periodStart) {
		start := periodStart.UTC()
		return allotment, &start
	}
	if persistedCredits < 0 {
		persistedCredits = 0
	}
	return persistedCredits, lastResetAt
}

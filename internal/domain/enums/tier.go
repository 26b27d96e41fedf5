package enums

import "strings"

type Tier string

const (
	TierNone    Tier = "none"
	TierWritten Tier = "written"
	TierSpoken  Tier = "spoken"
)

// ParseTier accepts only purchasable tiers.
func ParseTier(raw string) (Tier, bool) {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierWritten:
		return TierWritten, true
	case TierSpoken:
		return TierSpoken, true
	default:
		return "", false
	}
}

func (t Tier) Paid() bool {
	return t == TierWritten || t == TierSpoken
}

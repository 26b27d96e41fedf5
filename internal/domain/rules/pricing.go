package rules

import (
	"sort"

	"github.com/dneufang33/mira-sora-visions/internal/domain/enums"
)

const (
	WrittenPriceCents int64 = 999
	SpokenPriceCents  int64 = 1999
)

// PriceBand maps every unit amount up to MaxAmount (inclusive) to Tier.
type PriceBand struct {
	MaxAmount int64
	Tier      enums.Tier
}

// TierPolicy classifies subscription prices into tiers. The last band with
// MaxAmount < 0 is open ended.
type TierPolicy struct {
	Bands  []PriceBand
	Prices map[enums.Tier]int64
}

func DefaultTierPolicy() TierPolicy {
	return NewTierPolicy(WrittenPriceCents, WrittenPriceCents, SpokenPriceCents)
}

func NewTierPolicy(writtenThreshold, writtenPrice, spokenPrice int64) TierPolicy {
	return TierPolicy{
		Bands: []PriceBand{
			{MaxAmount: writtenThreshold, Tier: enums.TierWritten},
			{MaxAmount: -1, Tier: enums.TierSpoken},
		},
		Prices: map[enums.Tier]int64{
			enums.TierWritten: writtenPrice,
			enums.TierSpoken:  spokenPrice,
		},
	}
}

// TierForAmount classifies a unit amount in minor currency units.
func (p TierPolicy) TierForAmount(amount int64) enums.Tier {
	bounded := make([]PriceBand, 0, len(p.Bands))
	open := enums.TierNone
	for _, band := range p.Bands {
		if band.MaxAmount < 0 {
			open = band.Tier
			continue
		}
		bounded = append(bounded, band)
	}
	sort.Slice(bounded, func(i, j int) bool { return bounded[i].MaxAmount < bounded[j].MaxAmount })

	for _, band := range bounded {
		if amount <= band.MaxAmount {
			return band.Tier
		}
	}
	return open
}

func (p TierPolicy) PriceFor(tier enums.Tier) (int64, bool) {
	price, ok := p.Prices[tier]
	if !ok || price <= 0 {
		return 0, false
	}
	return price, true
}

type Product struct {
	ID          enums.ProductID
	Name        string
	Description string
	AmountCents int64
	ReportType  enums.ReportType
}

var products = map[enums.ProductID]Product{
	enums.ProductNatalChart: {
		ID:          enums.ProductNatalChart,
		Name:        "Complete Natal Chart Reading",
		Description: "Detailed analysis of your birth chart with planetary positions and life guidance",
		AmountCents: 999,
		ReportType:  enums.ReportTypeNatalChart,
	},
	enums.ProductLunarCycle: {
		ID:          enums.ProductLunarCycle,
		Name:        "Lunar Cycle Guidance",
		Description: "Personalized guidance aligned with the moon phases for the coming month",
		AmountCents: 777,
		ReportType:  enums.ReportTypeLunarCycle,
	},
	enums.ProductSynastryCompat: {
		ID:          enums.ProductSynastryCompat,
		Name:        "Synastry Compatibility Report",
		Description: "Relationship compatibility analysis between two birth charts",
		AmountCents: 1222,
		ReportType:  enums.ReportTypeSynastry,
	},
	enums.ProductTransitForecast: {
		ID:          enums.ProductTransitForecast,
		Name:        "Transit Forecast",
		Description: "Upcoming planetary transits and their influence on your chart",
		AmountCents: 1444,
		ReportType:  enums.ReportTypeTransitForecast,
	},
	enums.ProductCelestialCollection: {
		ID:          enums.ProductCelestialCollection,
		Name:        "Celestial Collection",
		Description: "Natal chart, lunar guidance, synastry and transit forecast in one bundle",
		AmountCents: 2999,
		ReportType:  enums.ReportTypeBundle,
	},
}

func ProductByID(id string) (Product, bool) {
	p, ok := products[enums.ProductID(id)]
	return p, ok
}

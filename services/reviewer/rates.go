package reviewer

// RateTable maps a tier to its per-review payout in cents. It is a data
// table so new tiers only touch configuration, never engine logic.
type RateTable map[Tier]int64

// DefaultRates returns the production payout table.
func DefaultRates() RateTable {
	return RateTable{
		TierRookie:   15,
		TierVerified: 30,
		TierPro:      50,
	}
}

// NewRateTable builds a RateTable from config keys, falling back to the
// defaults for any missing tier.
func NewRateTable(rates map[string]int64) RateTable {
	table := DefaultRates()
	for k, v := range rates {
		if t := Tier(k); t.String() != "" {
			table[t] = v
		}
	}
	return table
}

// RateFor returns the payout for a tier; unknown tiers pay the rookie rate.
func (r RateTable) RateFor(tier Tier) int64 {
	if rate, ok := r[tier]; ok {
		return rate
	}
	return r[TierRookie]
}

// CalculateTier derives a reviewer's tier from volume and quality.
func CalculateTier(totalReviews int64, averageRating float64) Tier {
	if totalReviews >= 100 && averageRating >= 4.5 {
		return TierPro
	}
	if totalReviews >= 25 && averageRating >= 4.0 {
		return TierVerified
	}
	return TierRookie
}

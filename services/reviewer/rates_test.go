package reviewer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRateTable(t *testing.T) {
	rates := DefaultRates()
	require.Equal(t, int64(15), rates.RateFor(TierRookie))
	require.Equal(t, int64(30), rates.RateFor(TierVerified))
	require.Equal(t, int64(50), rates.RateFor(TierPro))

	// unknown tiers pay the rookie rate
	require.Equal(t, int64(15), rates.RateFor(Tier("LEGEND")))

	custom := NewRateTable(map[string]int64{
		"PRO":    75,
		"LEGEND": 999, // not a tier, ignored
	})
	require.Equal(t, int64(75), custom.RateFor(TierPro))
	require.Equal(t, int64(30), custom.RateFor(TierVerified))
}

func TestCalculateTier(t *testing.T) {
	cases := []struct {
		name    string
		reviews int64
		rating  float64
		want    Tier
	}{
		{"new reviewer", 0, 0, TierRookie},
		{"volume without quality", 200, 3.9, TierRookie},
		{"quality without volume", 10, 5.0, TierRookie},
		{"verified threshold", 25, 4.0, TierVerified},
		{"high volume short of pro rating", 150, 4.4, TierVerified},
		{"pro threshold", 100, 4.5, TierPro},
		{"well past pro", 500, 4.9, TierPro},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, CalculateTier(tc.reviews, tc.rating))
		})
	}
}

func TestTierWeight(t *testing.T) {
	require.Greater(t, TierPro.Weight(), TierVerified.Weight())
	require.Greater(t, TierVerified.Weight(), TierRookie.Weight())
}

package commission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name       string
		total      int64
		rateBps    int64
		minimum    int64
		commission int64
		payout     int64
	}{
		{"ten percent", 10000, 1000, 0, 1000, 9000},
		{"zero rate", 10000, 0, 0, 0, 10000},
		{"full rate", 10000, 10000, 0, 10000, 0},
		{"rounds half up", 10001, 50, 0, 50, 9951},        // 50.005 -> 50
		{"rounds half up boundary", 1000, 25, 0, 3, 997},  // 2.5 -> 3
		{"rounds down below half", 1000, 24, 0, 2, 998},   // 2.4 -> 2
		{"non-terminating decimal", 1000, 3333, 0, 333, 667},
		{"one third of a cent", 1, 3333, 0, 0, 1},
		{"minimum applies", 1000, 100, 250, 250, 750},
		{"minimum capped at total", 100, 100, 500, 100, 0},
		{"zero total", 0, 1000, 100, 0, 0},
		{"negative total", -500, 1000, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.total, tt.rateBps, tt.minimum)
			assert.Equal(t, tt.commission, got.Commission)
			assert.Equal(t, tt.payout, got.Payout)
		})
	}
}

// The split must never leak or mint minor units, whatever the inputs.
func TestComputeConservesTotal(t *testing.T) {
	totals := []int64{1, 2, 3, 99, 100, 101, 9999, 10000, 10001, 123457, 999999999}
	rates := []int64{0, 1, 3, 33, 100, 333, 1000, 1250, 3333, 6667, 9999, 10000}
	minimums := []int64{0, 1, 50, 1000}

	for _, total := range totals {
		for _, rate := range rates {
			for _, minimum := range minimums {
				got := Compute(total, rate, minimum)
				assert.Equal(t, total, got.Commission+got.Payout,
					"total=%d rate=%d min=%d", total, rate, minimum)
				assert.GreaterOrEqual(t, got.Commission, int64(0))
				assert.GreaterOrEqual(t, got.Payout, int64(0))
			}
		}
	}
}

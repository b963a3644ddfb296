package commission

// Split is the deterministic division of a booking price between the
// platform and the tenant, in minor currency units.
type Split struct {
	Commission int64 `json:"commission"`
	Payout     int64 `json:"payout"`
}

// Compute splits totalPrice between platform commission and tenant payout.
// rateBps is the tenant's commission rate in basis points (1% = 100 bps),
// which keeps the two-decimal percent precision in integer math. Rounding
// is half-up to the nearest minor unit. If minimum would exceed the total,
// commission is capped at totalPrice and the payout is zero.
//
// Invariant: Commission + Payout == totalPrice, both non-negative.
func Compute(totalPrice, rateBps, minimum int64) Split {
	if totalPrice <= 0 {
		return Split{}
	}
	if rateBps < 0 {
		rateBps = 0
	}
	if minimum < 0 {
		minimum = 0
	}

	// round(totalPrice * bps / 10000), half-up on the integer quotient
	c := (totalPrice*rateBps + 5000) / 10000

	if c < minimum {
		c = minimum
	}
	if c > totalPrice {
		c = totalPrice
	}

	return Split{Commission: c, Payout: totalPrice - c}
}

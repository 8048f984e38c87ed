// Package money implements the fixed-point integer representation used
// for every conserved quantity in the engine. Human-unit float/decimal
// values only ever appear at the view boundary (internal/views); all
// conservation math inside the ledger, book, and matching engine stays on
// plain int64.
package money

import "math"

// Scale is the fixed-point scale factor S (a configured power of ten,
// e.g. 100 for cent precision). It is carried explicitly rather than as a
// package global so multiple scenarios with different scales could in
// principle share a process.
type Scale int64

// ToFixed converts a human-unit amount to its fixed-point integer
// representation: to_fx(x) = floor(x * S).
func (s Scale) ToFixed(x float64) int64 {
	return int64(math.Floor(x * float64(s)))
}

// FromFixed converts a fixed-point integer back to a human-unit float:
// from_fx(n) = n / S. Prefer internal/views for decimal-precise
// projections; this helper exists for logging and metrics where a float
// approximation is acceptable.
func (s Scale) FromFixed(n int64) float64 {
	return float64(n) / float64(s)
}

// Fee computes the truncated-toward-zero fee on a trade:
// fee = floor(price * qty * ppm / 1_000_000).
// price and qty are both fixed-point/plain non-negative integers, ppm is
// parts-per-million, so integer division already truncates toward zero.
func Fee(price, qty int64, feeRatePPM int64) int64 {
	return (price * qty * feeRatePPM) / 1_000_000
}

// PerUnitFee computes the per-unit fee used by the market-order
// purchasing-power check: floor(price * ppm / 1_000_000).
func PerUnitFee(price int64, feeRatePPM int64) int64 {
	return (price * feeRatePPM) / 1_000_000
}

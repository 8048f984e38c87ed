package types

// EconomyInsight is the per-macro-tick economy snapshot. TrueValue and the
// TV interval bounds are fixed-point integers (scaled by the configured
// PRICE_SCALE); ShortRate and Width stay floats, matching the reference
// implementation's get_economy_insight scaling choice.
type EconomyInsight struct {
	MacroTick    int64
	TrueValue    int64
	ShortRate    float64
	Width        float64
	TVLower      int64
	TVUpper      int64
	DepositRates map[int64]float64 // term -> rate
}

package types

// PriceLevelSnapshot is one (price, size, order-count) row of an L1/L2
// market-data report.
type PriceLevelSnapshot struct {
	Price  int64
	Size   int64
	Orders int64
}

// MarketData is a per-(macro,micro) snapshot built by the CDA engine.
// Every pointer field is nullable in the same sense as the Python
// reference's Optional[...]: nil means "no observation" (e.g. an empty
// side of the book, or no trade since the previous report).
type MarketData struct {
	MacroTick int64
	MicroTick int64
	Timestamp int64

	TradeCount  int64
	TradeVolume int64

	LastTradedPrice *int64
	LastTradeSize   *int64

	L1Bid *PriceLevelSnapshot
	L1Ask *PriceLevelSnapshot

	Spread     *int64
	MidPrice   *int64
	MicroPrice *int64

	L2Bids []PriceLevelSnapshot
	L2Asks []PriceLevelSnapshot

	DepthN     int64
	BidsDepthN int64
	AsksDepthN int64
	ImbalanceN *float64

	VWAPMacro *int64
	VWAPMicro *int64
}

package types

import "github.com/exiort/mas-market-laboratory/internal/hybridtime"

// Trade is an immutable fact produced once by the CDA engine and attached
// to both participating orders. Trades never mutate after construction.
type Trade struct {
	TradeID int64
	Tick    hybridtime.Tick

	BuyerAgentID  int64
	BuyOrderID    int64
	SellerAgentID int64
	SellOrderID   int64

	Price    int64
	Quantity int64
	Fee      int64
}

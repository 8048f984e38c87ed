package types

import "github.com/exiort/mas-market-laboratory/internal/hybridtime"

// Order is the mutable order entity owned jointly by the order book (while
// resident) and the settlement ledger/CDA engine (for the rest of its
// life). Orders never move between arenas: the book indexes by pointer,
// the engine is the only mutator of lifecycle/end_reason, and the
// ledger's trade settlement is the only mutator of remaining quantity.
type Order struct {
	OrderID   int64
	AgentID   int64
	Timestamp int64 // informational only; the facade does not set it, so it stays zero
	Tick      hybridtime.Tick

	OrderType OrderType
	Side      Side

	Quantity          int64
	RemainingQuantity int64
	Price             *int64 // present iff OrderType == LIMIT

	Lifecycle Lifecycle
	EndReason EndReason

	Trades map[int64]*Trade

	// seq is an arrival sequence slot. Time priority within a price
	// level comes from the order book's FIFO append order, which does
	// not read seq.
	seq int64
}

// IsWorking reports whether the order can still participate in matching.
func (o *Order) IsWorking() bool {
	return o.Lifecycle == LifecycleWorking
}

// IsDone reports whether the order has reached a terminal state.
func (o *Order) IsDone() bool {
	return o.Lifecycle == LifecycleDone
}

// AttachTrade records a trade against this order's trade history.
func (o *Order) AttachTrade(t *Trade) {
	if o.Trades == nil {
		o.Trades = make(map[int64]*Trade)
	}
	o.Trades[t.TradeID] = t
}

// Seq returns the order's arrival sequence number. Matching does not
// read it.
func (o *Order) Seq() int64 { return o.seq }

// SetSeq stores an arrival sequence number. The facade does not call it,
// so seq stays zero for the orders it creates.
func (o *Order) SetSeq(seq int64) { o.seq = seq }

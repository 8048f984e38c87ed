package orderbook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exiort/mas-market-laboratory/internal/types"
)

func limitOrder(id int64, side types.Side, price, qty int64) *types.Order {
	p := price
	return &types.Order{
		OrderID:           id,
		AgentID:           id,
		OrderType:         types.OrderTypeLimit,
		Side:              side,
		Quantity:          qty,
		RemainingQuantity: qty,
		Price:             &p,
		Lifecycle:         types.LifecycleWorking,
		EndReason:         types.EndReasonNone,
	}
}

// TestOrderBook_AddAndBestPrice verifies best bid/ask tracking across
// inserts at distinct prices.
func TestOrderBook_AddAndBestPrice(t *testing.T) {
	ob := New()

	require.True(t, ob.Add(limitOrder(1, types.SideBuy, 100, 10)))
	require.True(t, ob.Add(limitOrder(2, types.SideBuy, 105, 5)))
	require.True(t, ob.Add(limitOrder(3, types.SideSell, 110, 7)))
	require.True(t, ob.Add(limitOrder(4, types.SideSell, 108, 3)))

	require.Equal(t, int64(105), ob.BestBid().Price)
	require.Equal(t, int64(108), ob.BestAsk().Price)
}

// TestOrderBook_AddDuplicateRejected verifies a duplicate order_id never
// mutates book state.
func TestOrderBook_AddDuplicateRejected(t *testing.T) {
	ob := New()
	require.True(t, ob.Add(limitOrder(1, types.SideBuy, 100, 10)))
	require.False(t, ob.Add(limitOrder(1, types.SideBuy, 100, 5)))
	require.Equal(t, 1, ob.TotalOrders())
}

// TestOrderBook_FIFOWithinPriceLevel verifies time priority: the
// earliest-arriving order at a price level heads the queue.
func TestOrderBook_FIFOWithinPriceLevel(t *testing.T) {
	ob := New()
	require.True(t, ob.Add(limitOrder(1, types.SideSell, 100, 5)))
	require.True(t, ob.Add(limitOrder(2, types.SideSell, 100, 5)))

	level := ob.BestAsk()
	require.Equal(t, int64(1), level.Head().Order.OrderID)
	require.Equal(t, int64(2), level.Head().Next().Order.OrderID)
}

// TestOrderBook_RemoveEmptiesLevel verifies a price level is dropped from
// its tree once its last order is removed.
func TestOrderBook_RemoveEmptiesLevel(t *testing.T) {
	ob := New()
	require.True(t, ob.Add(limitOrder(1, types.SideBuy, 100, 5)))

	removed := ob.Remove(1)
	require.NotNil(t, removed)
	require.Nil(t, ob.BestBid())
	require.Equal(t, 0, ob.TotalOrders())
}

// TestOrderBook_ExpireBookDrainsInQueueOrder verifies expire_book returns
// every resident order and leaves the book empty.
func TestOrderBook_ExpireBookDrainsInQueueOrder(t *testing.T) {
	ob := New()
	require.True(t, ob.Add(limitOrder(1, types.SideBuy, 100, 5)))
	require.True(t, ob.Add(limitOrder(2, types.SideBuy, 101, 5)))
	require.True(t, ob.Add(limitOrder(3, types.SideSell, 110, 5)))

	bids, asks := ob.ExpireBook()
	require.Len(t, bids, 2)
	require.Equal(t, int64(2), bids[0].OrderID) // best bid (101) drained first
	require.Len(t, asks, 1)
	require.Equal(t, 0, ob.TotalOrders())
	require.Nil(t, ob.BestBid())
	require.Nil(t, ob.BestAsk())
}

package matching

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exiort/mas-market-laboratory/internal/hybridtime"
	"github.com/exiort/mas-market-laboratory/internal/ledger"
	"github.com/exiort/mas-market-laboratory/internal/money"
	"github.com/exiort/mas-market-laboratory/internal/types"
)

const testScale = money.Scale(100)

type fakeSink struct {
	trades []*types.Trade
}

func (s *fakeSink) AddTrade(t *types.Trade) {
	s.trades = append(s.trades, t)
}

func newEngine(l *ledger.Ledger, sink *fakeSink) *Engine {
	return New(0, 5, l, sink)
}

func newOrder(id, agentID int64, orderType types.OrderType, side types.Side, qty int64, price *int64) *types.Order {
	return &types.Order{
		OrderID:           id,
		AgentID:           agentID,
		OrderType:         orderType,
		Side:              side,
		Quantity:          qty,
		RemainingQuantity: qty,
		Price:             price,
		Lifecycle:         types.LifecycleNew,
		EndReason:         types.EndReasonNone,
		Trades:            map[int64]*types.Trade{},
	}
}

func limitPrice(p int64) *int64 { return &p }

// TestEngine_PriceTimePriority exercises scenario 2 of §8: two asks at the
// same price, a market buy partially fills the first in full and the
// second partially by price-time priority.
func TestEngine_PriceTimePriority(t *testing.T) {
	l := ledger.New(0, testScale)
	_, _ = l.RegisterAccount(1, 0, 10)
	_, _ = l.RegisterAccount(2, 0, 10)
	_, _ = l.RegisterAccount(3, 100_000.00, 0)

	e := newEngine(l, &fakeSink{})
	tick := hybridtime.Tick{Macro: 0, Micro: 0}

	ask1 := newOrder(1, 1, types.OrderTypeLimit, types.SideSell, 5, limitPrice(100_00))
	e.ProcessNewOrder(ask1, tick)
	ask2 := newOrder(2, 2, types.OrderTypeLimit, types.SideSell, 5, limitPrice(100_00))
	e.ProcessNewOrder(ask2, tick)

	buy := newOrder(3, 3, types.OrderTypeMarket, types.SideBuy, 7, nil)
	e.ProcessNewOrder(buy, tick)

	require.Equal(t, types.LifecycleDone, ask1.Lifecycle)
	require.Equal(t, types.EndReasonFilled, ask1.EndReason)
	require.Equal(t, int64(0), ask1.RemainingQuantity)

	require.Equal(t, types.LifecycleWorking, ask2.Lifecycle)
	require.Equal(t, int64(3), ask2.RemainingQuantity)

	require.Equal(t, types.LifecycleDone, buy.Lifecycle)
	require.Equal(t, types.EndReasonFilled, buy.EndReason)
}

// TestEngine_WashTradeBlocked exercises scenario 3 of §8: a resting SELL
// and a crossing BUY from the same agent produce no trade.
func TestEngine_WashTradeBlocked(t *testing.T) {
	l := ledger.New(0, testScale)
	acc, _ := l.RegisterAccount(1, 10_000.00, 10)

	e := newEngine(l, &fakeSink{})
	tick := hybridtime.Tick{Macro: 0, Micro: 0}

	sell := newOrder(1, 1, types.OrderTypeLimit, types.SideSell, 5, limitPrice(100_00))
	e.ProcessNewOrder(sell, tick)

	before := acc.Cash
	buy := newOrder(2, 1, types.OrderTypeLimit, types.SideBuy, 5, limitPrice(101_00))
	e.ProcessNewOrder(buy, tick)

	require.Equal(t, types.LifecycleDone, buy.Lifecycle)
	require.Equal(t, types.EndReasonKilledWashTrade, buy.EndReason)
	require.Empty(t, buy.Trades)

	require.Equal(t, types.LifecycleWorking, sell.Lifecycle)
	require.Equal(t, int64(5), sell.RemainingQuantity)

	require.Equal(t, before, acc.Cash)
	require.Empty(t, acc.ReservedCash)
}

// TestEngine_ExpireSession exercises scenario 6 of §8: resting orders are
// all marked EXPIRED, reserves fully returned, book left empty.
func TestEngine_ExpireSession(t *testing.T) {
	l := ledger.New(0, testScale)
	buyerAcc, _ := l.RegisterAccount(1, 10_000.00, 0)
	sellerAcc, _ := l.RegisterAccount(2, 0, 10)

	e := newEngine(l, &fakeSink{})
	tick := hybridtime.Tick{Macro: 0, Micro: 0}

	bid1 := newOrder(1, 1, types.OrderTypeLimit, types.SideBuy, 5, limitPrice(98_00))
	e.ProcessNewOrder(bid1, tick)
	bid2 := newOrder(2, 1, types.OrderTypeLimit, types.SideBuy, 3, limitPrice(97_00))
	e.ProcessNewOrder(bid2, tick)
	ask1 := newOrder(3, 2, types.OrderTypeLimit, types.SideSell, 4, limitPrice(102_00))
	e.ProcessNewOrder(ask1, tick)

	beforeBuyerCash := buyerAcc.Cash
	beforeSellerShares := sellerAcc.Shares

	e.ExpireSession()

	for _, o := range []*types.Order{bid1, bid2, ask1} {
		require.Equal(t, types.LifecycleDone, o.Lifecycle)
		require.Equal(t, types.EndReasonExpired, o.EndReason)
	}

	require.Less(t, beforeBuyerCash, buyerAcc.Cash)
	require.Less(t, beforeSellerShares, sellerAcc.Shares)
	require.Empty(t, buyerAcc.ReservedCash)
	require.Empty(t, sellerAcc.ReservedShares)

	md := e.GetMarketData(tick, 5)
	require.Nil(t, md.L1Bid)
	require.Nil(t, md.L1Ask)
	require.Nil(t, md.Spread)
	require.Nil(t, md.MidPrice)
}

// TestEngine_NonCrossingRests verifies a non-crossing LIMIT order
// rests quietly even against the submitter's own resting order (price
// check happens before the wash check).
func TestEngine_NonCrossingRests(t *testing.T) {
	l := ledger.New(0, testScale)
	_, _ = l.RegisterAccount(1, 10_000.00, 10)

	e := newEngine(l, &fakeSink{})
	tick := hybridtime.Tick{Macro: 0, Micro: 0}

	ask := newOrder(1, 1, types.OrderTypeLimit, types.SideSell, 5, limitPrice(105_00))
	e.ProcessNewOrder(ask, tick)

	buy := newOrder(2, 1, types.OrderTypeLimit, types.SideBuy, 5, limitPrice(100_00))
	e.ProcessNewOrder(buy, tick)

	require.Equal(t, types.LifecycleWorking, buy.Lifecycle)
	require.Equal(t, types.EndReasonNone, buy.EndReason)
}

// TestEngine_MarketBuyEmptyBook verifies an empty book rejects a market
// order for insufficient market depth rather than panicking.
func TestEngine_MarketBuyEmptyBook(t *testing.T) {
	l := ledger.New(0, testScale)
	_, _ = l.RegisterAccount(1, 10_000.00, 0)

	e := newEngine(l, &fakeSink{})
	tick := hybridtime.Tick{Macro: 0, Micro: 0}

	buy := newOrder(1, 1, types.OrderTypeMarket, types.SideBuy, 5, nil)
	e.ProcessNewOrder(buy, tick)

	require.Equal(t, types.LifecycleDone, buy.Lifecycle)
	require.Equal(t, types.EndReasonRejectedInsufficientMarketDepth, buy.EndReason)
}

// TestEngine_CancelOrderReleasesReservation verifies cancellation removes
// the order from the book and returns its reservation in full.
func TestEngine_CancelOrderReleasesReservation(t *testing.T) {
	l := ledger.New(0, testScale)
	acc, _ := l.RegisterAccount(1, 10_000.00, 0)

	e := newEngine(l, &fakeSink{})
	tick := hybridtime.Tick{Macro: 0, Micro: 0}

	before := acc.Cash
	buy := newOrder(1, 1, types.OrderTypeLimit, types.SideBuy, 5, limitPrice(100_00))
	e.ProcessNewOrder(buy, tick)
	require.Less(t, acc.Cash, before)

	e.CancelOrder(buy.OrderID)
	require.Equal(t, before, acc.Cash)
	require.Equal(t, types.LifecycleDone, buy.Lifecycle)
	require.Equal(t, types.EndReasonCancelled, buy.EndReason)
}

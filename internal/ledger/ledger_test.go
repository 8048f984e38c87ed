package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exiort/mas-market-laboratory/internal/money"
	"github.com/exiort/mas-market-laboratory/internal/types"
)

const testScale = money.Scale(100)

func newLimitOrder(id, agentID int64, side types.Side, qty, price int64) *types.Order {
	p := price
	return &types.Order{
		OrderID:           id,
		AgentID:           agentID,
		OrderType:         types.OrderTypeLimit,
		Side:              side,
		Quantity:          qty,
		RemainingQuantity: qty,
		Price:             &p,
		Lifecycle:         types.LifecycleWorking,
		EndReason:         types.EndReasonNone,
		Trades:            map[int64]*types.Trade{},
	}
}

func newMarketOrder(id, agentID int64, side types.Side, qty int64) *types.Order {
	return &types.Order{
		OrderID:           id,
		AgentID:           agentID,
		OrderType:         types.OrderTypeMarket,
		Side:              side,
		Quantity:          qty,
		RemainingQuantity: qty,
		Lifecycle:         types.LifecycleWorking,
		EndReason:         types.EndReasonNone,
		Trades:            map[int64]*types.Trade{},
	}
}

// TestLedger_CleanCross exercises scenario 1 of §8: a resting SELL and a
// crossing BUY fully settle at the maker's price.
func TestLedger_CleanCross(t *testing.T) {
	l := New(0, testScale)

	aAcc, ok := l.RegisterAccount(1, 10_000.00, 0)
	require.True(t, ok)
	bAcc, ok := l.RegisterAccount(2, 0, 50)
	require.True(t, ok)

	sell := newLimitOrder(1, 2, types.SideSell, 10, 100_00)
	require.True(t, l.LimitCheckAndReserve(sell))

	buy := newLimitOrder(2, 1, types.SideBuy, 10, 101_00)
	require.True(t, l.LimitCheckAndReserve(buy))

	trade := &types.Trade{
		TradeID: 1, BuyerAgentID: 1, BuyOrderID: buy.OrderID,
		SellerAgentID: 2, SellOrderID: sell.OrderID,
		Price: 100_00, Quantity: 10, Fee: 0,
	}
	l.SettleTrade(buy, sell, trade)

	require.Equal(t, int64(9_000_00), aAcc.Cash)
	require.Equal(t, int64(10), aAcc.Shares)
	require.Equal(t, int64(1_000_00), bAcc.Cash)
	require.Equal(t, int64(40), bAcc.Shares)
	require.Equal(t, int64(0), buy.RemainingQuantity)
	require.Equal(t, int64(0), sell.RemainingQuantity)
	require.Empty(t, aAcc.ReservedCash)
	require.Empty(t, bAcc.ReservedShares)
}

// TestLedger_MarketShallowFunds exercises scenario 4 of §8: a market buy
// with only enough cash for part of the order.
func TestLedger_MarketShallowFunds(t *testing.T) {
	l := New(0, testScale)
	acc, ok := l.RegisterAccount(3, 250.00, 0)
	require.True(t, ok)

	order := newMarketOrder(1, 3, types.SideBuy, 10)
	possible := l.MarketPossibleQuantity(order, 100_00)
	require.Equal(t, int64(2), possible)
	require.Equal(t, int64(250_00), acc.Cash)
}

// TestLedger_DepositLifecycle exercises scenario 5 of §8: deposit
// creation reserves principal, maturity credits matured_cash.
func TestLedger_DepositLifecycle(t *testing.T) {
	l := New(0, testScale)
	acc, ok := l.RegisterAccount(4, 1_000.00, 0)
	require.True(t, ok)

	deposit, ok := l.CreateDeposit(4, 3, 500.00, 0, 100, 0.03)
	require.True(t, ok)
	require.Equal(t, int64(500_00), acc.Cash)
	require.Equal(t, int64(515_00), deposit.MaturedCash)

	matured := l.CheckMaturedDeposits(2)
	require.Empty(t, matured)

	matured = l.CheckMaturedDeposits(3)
	require.Len(t, matured, 1)
	require.Equal(t, int64(500_00+515_00), acc.Cash)
	require.Empty(t, acc.DepositedCash)
}

// TestLedger_CancelRestoresReservation verifies the round-trip property:
// reserving then releasing a LIMIT order in full restores pre-submission
// balances exactly.
func TestLedger_CancelRestoresReservation(t *testing.T) {
	l := New(10_000, testScale) // 1% fee
	acc, ok := l.RegisterAccount(5, 1_000.00, 0)
	require.True(t, ok)

	before := acc.Cash
	order := newLimitOrder(1, 5, types.SideBuy, 10, 50_00)
	require.True(t, l.LimitCheckAndReserve(order))
	require.Less(t, acc.Cash, before)

	l.ReleaseCashRemaining(order)
	require.Equal(t, before, acc.Cash)
	require.Empty(t, acc.ReservedCash)
}

// TestLedger_LimitReserveInsufficientFunds verifies the exact-cash
// boundary: a reservation equal to cash succeeds, one unit over fails.
func TestLedger_LimitReserveInsufficientFunds(t *testing.T) {
	l := New(0, testScale)
	_, ok := l.RegisterAccount(6, 100.00, 0)
	require.True(t, ok)

	exact := newLimitOrder(1, 6, types.SideBuy, 10, 10_00)
	require.True(t, l.LimitCheckAndReserve(exact))

	_, ok = l.RegisterAccount(7, 100.00, 0)
	require.True(t, ok)
	tooMuch := newLimitOrder(2, 7, types.SideBuy, 1, 100_01)
	require.False(t, l.LimitCheckAndReserve(tooMuch))
}

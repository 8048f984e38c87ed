package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exiort/mas-market-laboratory/internal/hybridtime"
	"github.com/exiort/mas-market-laboratory/internal/types"
)

func TestSink_FlushIsIdempotentPerMacroTick(t *testing.T) {
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	acc := types.NewAccount(1, 100, 1_000_00, 0)
	s.AddAccount(acc)

	trade := &types.Trade{
		TradeID: 1, Tick: hybridtime.Tick{Macro: 0, Micro: 0},
		BuyerAgentID: 100, BuyOrderID: 1, SellerAgentID: 200, SellOrderID: 2,
		Price: 100_00, Quantity: 5, Fee: 0,
	}
	s.AddTrade(trade)

	flushed, err := s.Flush(0)
	require.NoError(t, err)
	require.True(t, flushed)
	require.Empty(t, s.trades)
	require.NotEmpty(t, s.accounts)

	flushed, err = s.Flush(0)
	require.NoError(t, err)
	require.False(t, flushed)
}

func TestSink_AddOrderRejectsDuplicate(t *testing.T) {
	s, err := Open(":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	order := &types.Order{OrderID: 1, AgentID: 100, OrderType: types.OrderTypeMarket, Side: types.SideBuy, Quantity: 5, RemainingQuantity: 5}
	require.True(t, s.AddOrder(order))
	require.False(t, s.AddOrder(order))
}

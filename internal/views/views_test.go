package views

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/exiort/mas-market-laboratory/internal/money"
	"github.com/exiort/mas-market-laboratory/internal/types"
)

const testScale = money.Scale(100)

func TestAccount_ProjectsExactDecimal(t *testing.T) {
	account := types.NewAccount(1, 100, 1_234_56, 10)
	v := Account(account, testScale)

	require.True(t, v.Cash.Equal(decimal.NewFromFloat(1234.56)))
	require.Equal(t, int64(10), v.Shares)
}

func TestOrder_NilPriceForMarketOrders(t *testing.T) {
	order := &types.Order{OrderID: 1, OrderType: types.OrderTypeMarket, Side: types.SideBuy, Quantity: 5, RemainingQuantity: 5}
	v := Order(order, testScale)
	require.Nil(t, v.Price)
}

func TestOrder_ProjectsLimitPrice(t *testing.T) {
	price := int64(101_50)
	order := &types.Order{OrderID: 1, OrderType: types.OrderTypeLimit, Side: types.SideSell, Quantity: 5, RemainingQuantity: 5, Price: &price}
	v := Order(order, testScale)
	require.NotNil(t, v.Price)
	require.True(t, v.Price.Equal(decimal.NewFromFloat(101.50)))
}

func TestMarketData_HandlesEmptyBookNils(t *testing.T) {
	md := &types.MarketData{MacroTick: 1, MicroTick: 0}
	v := MarketData(md, testScale)
	require.Nil(t, v.L1Bid)
	require.Nil(t, v.Spread)
	require.Empty(t, v.L2Bids)
}

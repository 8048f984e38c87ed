package facade

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exiort/mas-market-laboratory/internal/economy"
	"github.com/exiort/mas-market-laboratory/internal/money"
	"github.com/exiort/mas-market-laboratory/internal/types"
)

func testConfig() Config {
	return Config{
		PriceScale:          money.Scale(100),
		FeeRatePPM:          0,
		DepthN:              5,
		SimulationMacroTick: 100,
		SimulationMicroTick: 10,
		EconomyScenario: economy.Scenario{
			Seed:                1,
			TVInitial:           100.0,
			TVLongRunMean:       100.0,
			TVMeanReversion:     0.1,
			TVVol:               1.0,
			RInitial:            0.02,
			RLongRunMean:        0.02,
			RMeanReversion:      0.1,
			RVol:                0.001,
			TVIntervalBaseWidth: 1.0,
			TVIntervalVol:       0.1,
			TermCurveSlope:      0.001,
			TermCurveCurvature:  -0.0001,
			DepositTerms:        []int64{1, 3, 6, 12},
		},
	}
}

func price(p float64) *float64 { return &p }

func TestEnvironment_RegisterAgentRejectsDuplicate(t *testing.T) {
	env := New(testConfig(), nil, nil, nil)
	require.NotNil(t, env.RegisterAgent(1, 1000.00, 0))
	require.Nil(t, env.RegisterAgent(1, 1000.00, 0))
}

func TestEnvironment_CreateOrderRejectsUnknownAgent(t *testing.T) {
	env := New(testConfig(), nil, nil, nil)
	require.Nil(t, env.CreateOrder(99, types.OrderTypeLimit, types.SideBuy, 5, price(100.00)))
}

func TestEnvironment_CreateOrderRejectsMarketOrderWithPrice(t *testing.T) {
	env := New(testConfig(), nil, nil, nil)
	env.RegisterAgent(1, 1000.00, 0)
	require.Nil(t, env.CreateOrder(1, types.OrderTypeMarket, types.SideBuy, 5, price(100.00)))
}

func TestEnvironment_CreateOrderCrosses(t *testing.T) {
	env := New(testConfig(), nil, nil, nil)
	env.RegisterAgent(1, 0, 10)
	env.RegisterAgent(2, 10_000.00, 0)

	sell := env.CreateOrder(1, types.OrderTypeLimit, types.SideSell, 5, price(100.00))
	require.NotNil(t, sell)
	require.Equal(t, types.LifecycleWorking, sell.Lifecycle)

	buy := env.CreateOrder(2, types.OrderTypeLimit, types.SideBuy, 5, price(101.00))
	require.NotNil(t, buy)
	require.Equal(t, types.LifecycleDone, buy.Lifecycle)
	require.Equal(t, types.EndReasonFilled, buy.EndReason)
}

func TestEnvironment_CancelOrderRejectsWrongAgent(t *testing.T) {
	env := New(testConfig(), nil, nil, nil)
	env.RegisterAgent(1, 0, 10)
	env.RegisterAgent(2, 1000.00, 0)

	order := env.CreateOrder(1, types.OrderTypeLimit, types.SideSell, 5, price(100.00))
	require.NotNil(t, order)

	env.CancelOrder(2, order.OrderID)
	md := env.GetMarketData(5)
	require.NotNil(t, md.L1Ask)
}

func TestEnvironment_CreateDepositRejectsUnknownTerm(t *testing.T) {
	env := New(testConfig(), nil, nil, nil)
	env.RegisterAgent(1, 1000.00, 0)
	require.Nil(t, env.CreateDeposit(1, 2, 500.00))
}

func TestEnvironment_CreateDepositSucceeds(t *testing.T) {
	env := New(testConfig(), nil, nil, nil)
	env.RegisterAgent(1, 1000.00, 0)
	deposit := env.CreateDeposit(1, 3, 500.00)
	require.NotNil(t, deposit)
	require.True(t, deposit.MaturedCash.IsPositive())
}

func TestEnvironment_GetEconomyInsightAtTickZero(t *testing.T) {
	env := New(testConfig(), nil, nil, nil)
	insight := env.GetEconomyInsight()
	require.Equal(t, int64(0), insight.MacroTick)
}

package economy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exiort/mas-market-laboratory/internal/money"
)

func testScenario() Scenario {
	return Scenario{
		Seed:                42,
		TVInitial:           100.0,
		TVLongRunMean:       100.0,
		TVDrift:             0,
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
	}
}

// TestProcess_LazyExtensionIsMonotone verifies step() never regenerates
// ticks it has already produced.
func TestProcess_LazyExtensionIsMonotone(t *testing.T) {
	p := NewProcess(testScenario(), money.Scale(100))
	first := p.TrueValue(5)
	second := p.TrueValue(5)
	require.Equal(t, first, second)
}

// TestProcess_DeterministicForSeed verifies two processes built from the
// same seed and scenario produce byte-identical trajectories.
func TestProcess_DeterministicForSeed(t *testing.T) {
	p1 := NewProcess(testScenario(), money.Scale(100))
	p2 := NewProcess(testScenario(), money.Scale(100))

	for tick := int64(0); tick < 10; tick++ {
		require.Equal(t, p1.TrueValue(tick), p2.TrueValue(tick))
		require.Equal(t, p1.ShortRate(tick), p2.ShortRate(tick))
		require.Equal(t, p1.Width(tick), p2.Width(tick))
	}
}

// TestProcess_TVIntervalIsCachedPerTick verifies the one-shot uniform
// draw happens once per tick, regardless of repeat calls.
func TestProcess_TVIntervalIsCachedPerTick(t *testing.T) {
	p := NewProcess(testScenario(), money.Scale(100))
	l1, u1 := p.TVInterval(3)
	l2, u2 := p.TVInterval(3)
	require.Equal(t, l1, l2)
	require.Equal(t, u1, u2)
}

// TestProcess_DepositRatesAreAPureFunctionOfRate verifies DepositRates
// returns identical rates when called twice for the same tick, including
// an entry for the 12-tick term.
func TestProcess_DepositRatesAreAPureFunctionOfRate(t *testing.T) {
	p := NewProcess(testScenario(), money.Scale(100))
	rates1 := p.DepositRates(4)
	rates2 := p.DepositRates(4)
	require.Equal(t, rates1, rates2)
	require.Contains(t, rates1, int64(12))
}

// TestProcess_Insight exercises the full per-tick projection used by the
// facade's get_economy_insight.
func TestProcess_Insight(t *testing.T) {
	p := NewProcess(testScenario(), money.Scale(100))
	insight := p.Insight(0)
	require.Equal(t, int64(0), insight.MacroTick)
	require.Equal(t, int64(100_00), insight.TrueValue)
	require.Len(t, insight.DepositRates, 4)
}

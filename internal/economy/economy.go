// Package economy implements the lazy, per-macro-tick stochastic economy
// process: true value, short rate, and TV-interval width trajectories,
// plus the deposit term curve derived from the short rate. Arrays extend
// on demand with a high-water mark, never further than a caller has
// asked, and a single seeded source draws in a fixed per-tick order: TV
// noise, rate noise, width noise, then (lazily, on first request) the
// interval uniform draw.
package economy

import (
	"math"

	"github.com/exiort/mas-market-laboratory/internal/money"
	"github.com/exiort/mas-market-laboratory/internal/rng"
	"github.com/exiort/mas-market-laboratory/internal/types"
)

// Scenario is the immutable configuration for one economy trajectory,
// passed by reference into NewProcess rather than read from a global.
type Scenario struct {
	Seed int64

	TVInitial       float64
	TVLongRunMean   float64 // μ_TV
	TVDrift         float64 // δ_TV
	TVMeanReversion float64 // α_TV
	TVVol           float64 // σ_TV

	RInitial       float64
	RLongRunMean   float64 // μ_r
	RMeanReversion float64 // κ_r
	RVol           float64 // σ_r

	TVIntervalBaseWidth float64 // w_0
	TVIntervalVol       float64 // σ_w

	TermCurveSlope     float64 // s_1
	TermCurveCurvature float64 // s_2

	DepositTerms []int64
}

const floorEpsilon = 1e-8

// tvInterval caches the one-shot uniform draw and resulting bounds for a
// single macro tick.
type tvInterval struct {
	lower, upper float64
}

// Process is the lazily-extended trajectory. It is owned by the facade
// and never read from a package-level variable.
type Process struct {
	scenario   Scenario
	rng        *rng.Source
	priceScale money.Scale

	tv []float64
	r  []float64
	w  []float64

	intervals        map[int64]tvInterval
	maxGeneratedTick int64
}

// NewProcess seeds a trajectory at tick 0 from the scenario constants.
func NewProcess(scenario Scenario, priceScale money.Scale) *Process {
	return &Process{
		scenario:   scenario,
		rng:        rng.New(scenario.Seed),
		priceScale: priceScale,
		tv:         []float64{scenario.TVInitial},
		r:          []float64{scenario.RInitial},
		w:          []float64{scenario.TVIntervalBaseWidth},
		intervals:  make(map[int64]tvInterval),
	}
}

// Step extends every trajectory one macro tick at a time up to and
// including toTick, drawing three Gaussians per new tick in order: TV
// noise, rate noise, width noise. Idempotent: re-requesting an
// already-generated tick is a no-op.
func (p *Process) Step(toTick int64) {
	for t := p.maxGeneratedTick; t < toTick; t++ {
		tvNoise := p.rng.Gaussian()
		rNoise := p.rng.Gaussian()
		wNoise := p.rng.Gaussian()

		prevTV := p.tv[t]
		nextTV := prevTV + p.scenario.TVMeanReversion*(p.scenario.TVLongRunMean-prevTV) + p.scenario.TVDrift + p.scenario.TVVol*tvNoise
		p.tv = append(p.tv, nextTV)

		prevR := p.r[t]
		nextR := prevR + p.scenario.RMeanReversion*(p.scenario.RLongRunMean-prevR) + p.scenario.RVol*rNoise
		p.r = append(p.r, math.Max(floorEpsilon, nextR))

		nextW := p.scenario.TVIntervalBaseWidth + p.scenario.TVIntervalVol*wNoise
		p.w = append(p.w, math.Max(floorEpsilon, nextW))
	}
	if toTick > p.maxGeneratedTick {
		p.maxGeneratedTick = toTick
	}
}

// TrueValue returns TV_t, extending the trajectory if needed.
func (p *Process) TrueValue(tick int64) float64 {
	p.Step(tick)
	return p.tv[tick]
}

// ShortRate returns r_t, extending the trajectory if needed.
func (p *Process) ShortRate(tick int64) float64 {
	p.Step(tick)
	return p.r[tick]
}

// Width returns w_t, extending the trajectory if needed.
func (p *Process) Width(tick int64) float64 {
	p.Step(tick)
	return p.w[tick]
}

// TVInterval returns the lower/upper TV bound for tick, drawing and
// caching the one-shot uniform Z_t on first request for that tick.
func (p *Process) TVInterval(tick int64) (lower, upper float64) {
	p.Step(tick)
	if cached, ok := p.intervals[tick]; ok {
		return cached.lower, cached.upper
	}

	z := p.rng.Uniform()
	tv := p.tv[tick]
	width := p.w[tick]
	interval := tvInterval{
		lower: tv - z*width,
		upper: tv + (1-z)*width,
	}
	p.intervals[tick] = interval
	return interval.lower, interval.upper
}

// DepositRates returns rate(x,t) = max(0, r_t + s1*x + s2*x^2) for every
// configured deposit term. This is a pure function of r_t; no draw.
func (p *Process) DepositRates(tick int64) map[int64]float64 {
	p.Step(tick)
	r := p.r[tick]
	rates := make(map[int64]float64, len(p.scenario.DepositTerms))
	for _, term := range p.scenario.DepositTerms {
		x := float64(term)
		rate := r + p.scenario.TermCurveSlope*x + p.scenario.TermCurveCurvature*x*x
		rates[term] = math.Max(0, rate)
	}
	return rates
}

// Insight builds the full per-tick EconomyInsight, scaling TrueValue and
// the TV interval bounds into the fixed-point price scale (ShortRate and
// Width stay floats, matching the reference implementation).
func (p *Process) Insight(tick int64) types.EconomyInsight {
	lower, upper := p.TVInterval(tick)
	return types.EconomyInsight{
		MacroTick:    tick,
		TrueValue:    p.priceScale.ToFixed(p.TrueValue(tick)),
		ShortRate:    p.ShortRate(tick),
		Width:        p.Width(tick),
		TVLower:      p.priceScale.ToFixed(lower),
		TVUpper:      p.priceScale.ToFixed(upper),
		DepositRates: p.DepositRates(tick),
	}
}

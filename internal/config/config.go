// Package config loads every enumerated configuration key of §6.4 from
// flags, environment variables, and an optional .env file, in that
// precedence order, via viper/pflag/godotenv. No config file is read.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/exiort/mas-market-laboratory/internal/economy"
	"github.com/exiort/mas-market-laboratory/internal/facade"
	"github.com/exiort/mas-market-laboratory/internal/money"
)

// Config is the fully-resolved, immutable configuration handle passed by
// reference into component construction. Nothing downstream reads viper
// or the environment directly.
type Config struct {
	// Environment
	PriceScale    money.Scale
	DBPath        string
	InsightL2Depth int64
	FeeRatePPM    int64

	// Simulation
	SimulationMacroTick int64
	SimulationMicroTick int64
	InitMacroTick       int64
	InitMicroTick       int64

	EconomyScenario economy.Scenario
}

// FacadeConfig projects Config into the facade.Config the environment
// needs at construction.
func (c Config) FacadeConfig() facade.Config {
	return facade.Config{
		PriceScale:          c.PriceScale,
		FeeRatePPM:          c.FeeRatePPM,
		DepthN:              c.InsightL2Depth,
		SimulationMacroTick: c.SimulationMacroTick,
		SimulationMicroTick: c.SimulationMicroTick,
		InitMacroTick:       c.InitMacroTick,
		InitMicroTick:       c.InitMicroTick,
		EconomyScenario:     c.EconomyScenario,
	}
}

// RegisterFlags attaches every configurable key to flags, to be called
// once on a cobra command's flag set before Load.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.Int64("price-scale", 100, "fixed-point scale (power of ten) every monetary amount is stored at")
	flags.String("db-path", "marketlab.db", "sqlite database path for the storage sink")
	flags.Int64("insight-l2-depth", 5, "number of top price levels per side summed into depth_N and the imbalance")
	flags.Int64("fee-rate-ppm", 0, "trade fee rate in parts-per-million")

	flags.Int64("simulation-macro-tick", 252, "exclusive macro-tick horizon")
	flags.Int64("simulation-micro-tick", 10, "micro-ticks per macro tick")
	flags.Int64("init-macro-tick", 0, "starting macro tick")
	flags.Int64("init-micro-tick", 0, "starting micro tick")

	flags.Int64("economy-seed", 42, "economy process PRNG seed")
	flags.Float64("economy-tv-initial", 100.0, "initial true value")
	flags.Float64("economy-tv-long-run-mean", 100.0, "true value long-run mean (μ_TV)")
	flags.Float64("economy-tv-drift", 0.0, "true value drift (δ_TV)")
	flags.Float64("economy-tv-mean-reversion", 0.1, "true value mean reversion (α_TV)")
	flags.Float64("economy-tv-vol", 1.0, "true value volatility (σ_TV)")
	flags.Float64("economy-r-initial", 0.02, "initial short rate")
	flags.Float64("economy-r-long-run-mean", 0.02, "short rate long-run mean (μ_r)")
	flags.Float64("economy-r-mean-reversion", 0.1, "short rate mean reversion (κ_r)")
	flags.Float64("economy-r-vol", 0.001, "short rate volatility (σ_r)")
	flags.Float64("economy-tv-interval-base-width", 1.0, "TV interval base width (w_0)")
	flags.Float64("economy-tv-interval-vol", 0.1, "TV interval width volatility (σ_w)")
	flags.Float64("economy-term-curve-slope", 0.001, "deposit term curve slope (s_1)")
	flags.Float64("economy-term-curve-curvature", -0.0001, "deposit term curve curvature (s_2)")
	flags.IntSlice("economy-deposit-terms", []int{1, 3, 6, 12}, "configured deposit terms, in macro ticks")
}

// Load resolves Config from flags (highest precedence), environment
// variables prefixed MARKETLAB_, an optional .env file, and defaults.
func Load(flags *pflag.FlagSet) (Config, error) {
	_ = godotenv.Load() // optional; absence is not an error

	v := viper.New()
	v.SetEnvPrefix("MARKETLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flags); err != nil {
		return Config{}, fmt.Errorf("config: bind flags: %w", err)
	}

	depositTerms := v.GetIntSlice("economy-deposit-terms")
	terms := make([]int64, len(depositTerms))
	for i, t := range depositTerms {
		terms[i] = int64(t)
	}

	cfg := Config{
		PriceScale:     money.Scale(v.GetInt64("price-scale")),
		DBPath:         v.GetString("db-path"),
		InsightL2Depth: v.GetInt64("insight-l2-depth"),
		FeeRatePPM:     v.GetInt64("fee-rate-ppm"),

		SimulationMacroTick: v.GetInt64("simulation-macro-tick"),
		SimulationMicroTick: v.GetInt64("simulation-micro-tick"),
		InitMacroTick:       v.GetInt64("init-macro-tick"),
		InitMicroTick:       v.GetInt64("init-micro-tick"),

		EconomyScenario: economy.Scenario{
			Seed:                v.GetInt64("economy-seed"),
			TVInitial:           v.GetFloat64("economy-tv-initial"),
			TVLongRunMean:       v.GetFloat64("economy-tv-long-run-mean"),
			TVDrift:             v.GetFloat64("economy-tv-drift"),
			TVMeanReversion:     v.GetFloat64("economy-tv-mean-reversion"),
			TVVol:               v.GetFloat64("economy-tv-vol"),
			RInitial:            v.GetFloat64("economy-r-initial"),
			RLongRunMean:        v.GetFloat64("economy-r-long-run-mean"),
			RMeanReversion:      v.GetFloat64("economy-r-mean-reversion"),
			RVol:                v.GetFloat64("economy-r-vol"),
			TVIntervalBaseWidth: v.GetFloat64("economy-tv-interval-base-width"),
			TVIntervalVol:       v.GetFloat64("economy-tv-interval-vol"),
			TermCurveSlope:      v.GetFloat64("economy-term-curve-slope"),
			TermCurveCurvature:  v.GetFloat64("economy-term-curve-curvature"),
			DepositTerms:        terms,
		},
	}

	if cfg.PriceScale <= 0 {
		return Config{}, fmt.Errorf("config: price-scale must be positive, got %d", cfg.PriceScale)
	}
	if cfg.SimulationMicroTick <= 0 {
		return Config{}, fmt.Errorf("config: simulation-micro-tick must be positive, got %d", cfg.SimulationMicroTick)
	}

	return cfg, nil
}

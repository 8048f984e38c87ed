package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAreSane(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(flags)
	require.NoError(t, err)
	require.Equal(t, int64(100), int64(cfg.PriceScale))
	require.Equal(t, int64(252), cfg.SimulationMacroTick)
	require.Len(t, cfg.EconomyScenario.DepositTerms, 4)
}

func TestLoad_RejectsNonPositivePriceScale(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--price-scale=0"}))

	_, err := Load(flags)
	require.Error(t, err)
}

package main

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/exiort/mas-market-laboratory/internal/config"
	"github.com/exiort/mas-market-laboratory/internal/facade"
	"github.com/exiort/mas-market-laboratory/internal/metrics"
	"github.com/exiort/mas-market-laboratory/internal/storage"
	"github.com/exiort/mas-market-laboratory/internal/types"
	"github.com/exiort/mas-market-laboratory/internal/wsfeed"
)

func newRunCmd() *cobra.Command {
	var scenarioPath string
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the environment through a scripted intent file, tick by tick",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if scenarioPath == "" {
				return fmt.Errorf("run: --scenario is required")
			}

			baseLogger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("run: build logger: %w", err)
			}
			defer baseLogger.Sync()

			// run_id is a non-deterministic per-process correlation tag for
			// log lines and the websocket feed; it never touches the
			// deterministic order_id/trade_id/deposit_id/account_id
			// sequences the core owns.
			runID := uuid.New().String()
			logger := baseLogger.With(zap.String("run_id", runID))

			sink, err := storage.Open(cfg.DBPath, logger)
			if err != nil {
				return fmt.Errorf("run: open storage: %w", err)
			}
			defer sink.Close()

			reg := metrics.NewRegistry(prometheus.DefaultRegisterer)

			scenario, err := loadScenario(scenarioPath)
			if err != nil {
				return err
			}

			env := facade.New(cfg.FacadeConfig(), sink, logger, reg)

			for _, spec := range scenario.Agents {
				if env.RegisterAgent(spec.AgentID, spec.InitialCash, spec.InitialShares) == nil {
					logger.Warn("run: agent registration rejected", zap.Int64("agent_id", spec.AgentID))
				}
			}

			var feed *wsfeed.Feed
			if listenAddr != "" {
				feed = wsfeed.New(logger)
				mux := http.NewServeMux()
				mux.Handle("/ws", feed)
				mux.Handle("/metrics", promhttp.Handler())
				server := &http.Server{Addr: listenAddr, Handler: mux}
				go func() {
					if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("run: http server", zap.Error(err))
					}
				}()
			}

			return driveScenario(env, scenario, sink, logger, feed)
		},
	}

	cmd.Flags().StringVar(&scenarioPath, "scenario", "", "path to a scripted intent JSON file")
	cmd.Flags().StringVar(&listenAddr, "listen-addr", "", "if set, serve /ws (market-data feed) and /metrics on this address")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// driveScenario steps the environment through one TickIntents entry per
// configured micro tick, applying every intent before the clock advances,
// and running the macro-boundary housekeeping (session expiry, matured
// deposits, a storage flush) whenever Step() carries into a new macro tick.
func driveScenario(env *facade.Environment, scenario Scenario, sink *storage.Sink, logger *zap.Logger, feed *wsfeed.Feed) error {
	for i, tick := range scenario.Ticks {
		for _, intent := range tick.Intents {
			applyIntent(env, intent, logger)
		}

		insight := env.GetEconomyInsight()
		md := env.GetMarketData(0)
		if feed != nil {
			feed.PublishEconomyInsight(insight)
			feed.PublishMarketData(md)
		}

		macroBefore := env.Clock().Now().Macro
		withinHorizon := env.Clock().Step()
		macroAfter := env.Clock().Now().Macro

		if macroAfter != macroBefore {
			env.ExpireSession()
			for _, deposit := range env.CheckMaturedDeposits() {
				logger.Info("deposit.matured",
					zap.Int64("deposit_id", deposit.DepositID),
					zap.Int64("agent_id", deposit.AgentID),
					zap.Int64("matured_cash", deposit.MaturedCash))
			}
			if sink != nil {
				if _, err := sink.Flush(macroBefore); err != nil {
					return fmt.Errorf("run: flush at macro %d: %w", macroBefore, err)
				}
			}
		}

		if !withinHorizon {
			logger.Info("run: simulation horizon reached", zap.Int("tick_index", i))
			break
		}
	}
	return nil
}

func applyIntent(env *facade.Environment, intent Intent, logger *zap.Logger) {
	switch intent.Type {
	case intentPlaceOrder:
		order := env.CreateOrder(intent.AgentID, types.OrderType(intent.OrderType), types.Side(intent.Side), intent.Quantity, intent.Price)
		if order == nil {
			logger.Warn("run: order rejected", zap.Int64("agent_id", intent.AgentID))
		}
	case intentCancelOrder:
		env.CancelOrder(intent.AgentID, intent.OrderID)
	case intentCreateDeposit:
		deposit := env.CreateDeposit(intent.AgentID, intent.Term, intent.Amount)
		if deposit == nil {
			logger.Warn("run: deposit rejected", zap.Int64("agent_id", intent.AgentID))
		}
	default:
		logger.Warn("run: unknown intent type", zap.String("type", intent.Type))
	}
}

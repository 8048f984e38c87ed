// Package facade implements the environment facade: the single entry
// point a simulation loop drives every tick. It owns the order_id
// sequence, composes the ledger, matching engine, economy process, and
// storage sink, and enforces the exact validation order of the
// reference environment (agent existence first, every other
// precondition after) — returning a nil view rather than mutating state
// on the first failure.
package facade

import (
	"go.uber.org/zap"

	"github.com/exiort/mas-market-laboratory/internal/economy"
	"github.com/exiort/mas-market-laboratory/internal/hybridtime"
	"github.com/exiort/mas-market-laboratory/internal/ledger"
	"github.com/exiort/mas-market-laboratory/internal/matching"
	"github.com/exiort/mas-market-laboratory/internal/metrics"
	"github.com/exiort/mas-market-laboratory/internal/money"
	"github.com/exiort/mas-market-laboratory/internal/storage"
	"github.com/exiort/mas-market-laboratory/internal/types"
	"github.com/exiort/mas-market-laboratory/internal/views"
)

// Config is the set of parameters the facade needs to assemble its
// components. It does not read any global configuration itself — see
// internal/config for where these values come from.
type Config struct {
	PriceScale money.Scale
	FeeRatePPM int64
	DepthN     int64

	SimulationMacroTick int64
	SimulationMicroTick int64
	InitMacroTick       int64
	InitMicroTick       int64

	EconomyScenario economy.Scenario
}

// Environment is the facade.
type Environment struct {
	clock   *hybridtime.Clock
	ledger  *ledger.Ledger
	engine  *matching.Engine
	economy *economy.Process
	sink    *storage.Sink
	logger  *zap.Logger
	metrics *metrics.Registry

	priceScale          money.Scale
	depthN              int64
	simulationMacroTick int64
	depositTerms        map[int64]bool

	nextOrderID int64
	ordersByID  map[int64]*types.Order
}

// New assembles an Environment from cfg, wired to sink (may be nil to
// disable persistence, e.g. in tests), logger (may be nil), and a
// metrics registry (may be nil to disable instrumentation).
func New(cfg Config, sink *storage.Sink, logger *zap.Logger, reg *metrics.Registry) *Environment {
	l := ledger.New(cfg.FeeRatePPM, cfg.PriceScale)

	recorder := newTradeRecorder(sink, reg)
	engine := matching.New(cfg.FeeRatePPM, cfg.DepthN, l, recorder)

	depositTerms := make(map[int64]bool, len(cfg.EconomyScenario.DepositTerms))
	for _, term := range cfg.EconomyScenario.DepositTerms {
		depositTerms[term] = true
	}

	return &Environment{
		clock:               hybridtime.NewClock(cfg.InitMacroTick, cfg.InitMicroTick, cfg.SimulationMacroTick, cfg.SimulationMicroTick),
		ledger:              l,
		engine:              engine,
		economy:             economy.NewProcess(cfg.EconomyScenario, cfg.PriceScale),
		sink:                sink,
		logger:              logger,
		metrics:             reg,
		priceScale:          cfg.PriceScale,
		depthN:              cfg.DepthN,
		simulationMacroTick: cfg.SimulationMacroTick,
		depositTerms:        depositTerms,
		ordersByID:          make(map[int64]*types.Order),
	}
}

// tradeRecorder fans a settled trade out to the storage sink and the
// metrics registry, either of which may be absent.
type tradeRecorder struct {
	sink    *storage.Sink
	metrics *metrics.Registry
}

func newTradeRecorder(sink *storage.Sink, reg *metrics.Registry) matching.TradeRecorder {
	if sink == nil && reg == nil {
		return nil
	}
	return &tradeRecorder{sink: sink, metrics: reg}
}

func (r *tradeRecorder) AddTrade(trade *types.Trade) {
	if r.sink != nil {
		r.sink.AddTrade(trade)
	}
	if r.metrics != nil {
		r.metrics.ObserveTrade(trade.Quantity)
	}
}

// Clock exposes the hybrid-time clock so the simulation loop can drive
// Step() itself; the facade never advances time on its own.
func (e *Environment) Clock() *hybridtime.Clock {
	return e.clock
}

func (e *Environment) allocateOrderID() int64 {
	id := e.nextOrderID
	e.nextOrderID++
	return id
}

// RegisterAgent creates a new account for agentID. Returns nil if the
// agent already has an account or either initial amount is negative.
func (e *Environment) RegisterAgent(agentID int64, initialCash float64, initialShares int64) *views.AccountView {
	if e.ledger.AccountExists(agentID) {
		return nil
	}
	if initialCash < 0 || initialShares < 0 {
		return nil
	}

	account, ok := e.ledger.RegisterAccount(agentID, initialCash, initialShares)
	if !ok {
		return nil
	}
	if e.sink != nil {
		e.sink.AddAccount(account)
	}

	v := views.Account(account, e.priceScale)
	return &v
}

// CreateOrder submits a new order on behalf of agentID. Returns nil
// without mutating state if the agent is unknown, quantity is
// non-positive, or the order_type/price combination is invalid (a
// missing/non-positive price on a LIMIT order, or any price at all on a
// MARKET order).
func (e *Environment) CreateOrder(agentID int64, orderType types.OrderType, side types.Side, quantity int64, price *float64) *views.OrderView {
	if !e.ledger.AccountExists(agentID) {
		return nil
	}
	if quantity <= 0 {
		return nil
	}

	var fixedPrice *int64
	switch orderType {
	case types.OrderTypeLimit:
		if price == nil || *price <= 0 {
			return nil
		}
		p := e.priceScale.ToFixed(*price)
		fixedPrice = &p
	case types.OrderTypeMarket:
		if price != nil {
			return nil
		}
	default:
		return nil
	}

	tick := e.clock.Now()
	order := &types.Order{
		OrderID:           e.allocateOrderID(),
		AgentID:           agentID,
		Tick:              tick,
		OrderType:         orderType,
		Side:              side,
		Quantity:          quantity,
		RemainingQuantity: quantity,
		Price:             fixedPrice,
		Lifecycle:         types.LifecycleNew,
		EndReason:         types.EndReasonNone,
		Trades:            map[int64]*types.Trade{},
	}

	e.ordersByID[order.OrderID] = order
	if e.sink != nil {
		e.sink.AddOrder(order)
	}

	e.engine.ProcessNewOrder(order, tick)

	if e.metrics != nil {
		e.metrics.ObserveOrder(order.EndReason)
	}

	v := views.Order(order, e.priceScale)
	return &v
}

// CancelOrder cancels order_id on behalf of agentID. Silently returns
// (no view; the reference cancel_order is fire-and-forget) if the agent
// is unknown, the order does not exist, belongs to a different agent, or
// is not currently WORKING.
func (e *Environment) CancelOrder(agentID, orderID int64) {
	if !e.ledger.AccountExists(agentID) {
		return
	}
	order := e.ordersByID[orderID]
	if order == nil {
		return
	}
	if order.AgentID != agentID {
		return
	}
	if order.Lifecycle != types.LifecycleWorking || order.EndReason != types.EndReasonNone {
		return
	}

	e.engine.CancelOrder(orderID)
}

// ExpireSession expires every resting order and resets the macro-level
// VWAP accumulator. The simulation loop is responsible for calling this
// at most once per macro tick, typically at the macro boundary returned
// by Clock().Step().
func (e *Environment) ExpireSession() {
	e.engine.ExpireSession()
}

// CreateDeposit opens a term deposit on behalf of agentID. Returns nil
// without mutating state if the agent is unknown, term is not one of the
// configured deposit terms, the maturity would fall beyond the
// simulation horizon, the cash amount is non-positive, or the account
// cannot cover the principal.
func (e *Environment) CreateDeposit(agentID, term int64, depositedCash float64) *views.DepositView {
	if !e.ledger.AccountExists(agentID) {
		return nil
	}
	if !e.depositTerms[term] {
		return nil
	}

	tick := e.clock.Now()
	if tick.Macro+term > e.simulationMacroTick {
		return nil
	}
	if depositedCash <= 0 {
		return nil
	}

	rates := e.economy.DepositRates(tick.Macro)
	rate, ok := rates[term]
	if !ok {
		return nil
	}

	deposit, ok := e.ledger.CreateDeposit(agentID, term, depositedCash, tick.Macro, e.simulationMacroTick, rate)
	if !ok {
		return nil
	}
	if e.sink != nil {
		e.sink.AddDeposit(deposit)
	}
	if e.metrics != nil {
		e.metrics.ObserveDepositOpened()
	}

	v := views.Deposit(deposit, e.priceScale)
	return &v
}

// CheckMaturedDeposits credits every deposit maturing at or before the
// current macro tick. The reference implementation runs this inline
// inside the simulation's per-tick driver rather than the facade
// surface proper; exposed here so the simulation loop can call it once
// per macro tick alongside ExpireSession.
func (e *Environment) CheckMaturedDeposits() []*types.Deposit {
	matured := e.ledger.CheckMaturedDeposits(e.clock.Now().Macro)
	if e.metrics != nil && len(matured) > 0 {
		e.metrics.ObserveDepositsMatured(len(matured))
	}
	return matured
}

// GetEconomyInsight returns the current macro tick's economy projection.
func (e *Environment) GetEconomyInsight() views.EconomyInsightView {
	insight := e.economy.Insight(e.clock.Now().Macro)
	if e.sink != nil {
		e.sink.AddInsight(insight)
	}
	return views.EconomyInsight(insight, e.priceScale)
}

// GetMarketData returns the current L1/L2 snapshot, reporting up to
// depthLevels price levels per side (0 means every level).
func (e *Environment) GetMarketData(depthLevels int) views.MarketDataView {
	tick := e.clock.Now()
	md := e.engine.GetMarketData(tick, depthLevels)
	if e.sink != nil {
		e.sink.AddMarketData(md)
	}
	if e.metrics != nil {
		bidLevels, askLevels := e.engine.DepthCounts()
		e.metrics.ObserveBookDepth(bidLevels, askLevels)
	}
	return views.MarketData(md, e.priceScale)
}

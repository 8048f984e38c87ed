// Package storage implements the sqlite-backed storage sink: an
// in-memory staging buffer per table, flushed to disk once per macro
// tick. The accounts buffer is a standing snapshot of every registered
// account and is never cleared on flush (so every macro tick's row set
// is a full point-in-time balance sheet); the other five buffers are
// write-once-per-id event logs and clear after each successful flush.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"go.uber.org/zap"

	"github.com/exiort/mas-market-laboratory/internal/types"
)

// Sink is the storage ledger: staging buffers plus the sqlite handle
// they flush into.
type Sink struct {
	db     *sql.DB
	logger *zap.Logger

	accounts map[int64]*types.Account
	orders   map[int64]*types.Order
	trades   map[int64]*types.Trade
	deposits map[int64]*types.Deposit
	insights map[int64]*types.EconomyInsight
	market   map[marketKey]*types.MarketData

	lastFlushMacroTick int64
}

type marketKey struct {
	macro, micro int64
}

// Open connects to (creating if absent) the sqlite database at dbPath
// and creates every table if missing.
func Open(dbPath string, logger *zap.Logger) (*Sink, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", dbPath, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}

	s := &Sink{
		db:                 db,
		logger:             logger,
		accounts:           make(map[int64]*types.Account),
		orders:             make(map[int64]*types.Order),
		trades:             make(map[int64]*types.Trade),
		deposits:           make(map[int64]*types.Deposit),
		insights:           make(map[int64]*types.EconomyInsight),
		market:             make(map[marketKey]*types.MarketData),
		lastFlushMacroTick: -1,
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			order_id INTEGER PRIMARY KEY,
			agent_id INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			macro_tick INTEGER NOT NULL,
			micro_tick INTEGER NOT NULL,
			order_type TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price INTEGER,
			lifecycle TEXT NOT NULL,
			end_reason TEXT NOT NULL,
			remaining_quantity INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			trade_id INTEGER PRIMARY KEY,
			macro_tick INTEGER NOT NULL,
			micro_tick INTEGER NOT NULL,
			buyer_agent_id INTEGER NOT NULL,
			buy_order_id INTEGER NOT NULL,
			seller_agent_id INTEGER NOT NULL,
			sell_order_id INTEGER NOT NULL,
			price INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			fee INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS accounts (
			macro_tick INTEGER NOT NULL,
			account_id INTEGER NOT NULL,
			agent_id INTEGER NOT NULL,
			cash INTEGER NOT NULL,
			shares INTEGER NOT NULL,
			reserved_cash INTEGER NOT NULL,
			reserved_shares INTEGER NOT NULL,
			deposited_cash INTEGER NOT NULL,
			PRIMARY KEY (macro_tick, account_id)
		);`,
		`CREATE TABLE IF NOT EXISTS economy_insights (
			macro_tick INTEGER PRIMARY KEY,
			true_value INTEGER NOT NULL,
			short_rate REAL NOT NULL,
			width REAL NOT NULL,
			tv_lower_bound INTEGER NOT NULL,
			tv_upper_bound INTEGER NOT NULL,
			deposit_rates TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS deposits (
			deposit_id INTEGER PRIMARY KEY,
			agent_id INTEGER NOT NULL,
			creation_macro_tick INTEGER NOT NULL,
			maturity_macro_tick INTEGER NOT NULL,
			deposited_cash INTEGER NOT NULL,
			interest_rate REAL NOT NULL,
			matured_cash INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS market_data (
			macro_tick INTEGER NOT NULL,
			micro_tick INTEGER NOT NULL,
			trade_count INTEGER NOT NULL,
			trade_volume INTEGER NOT NULL,
			last_traded_price INTEGER,
			last_trade_size INTEGER,
			l1_bid TEXT,
			l1_ask TEXT,
			spread INTEGER,
			mid_price INTEGER,
			micro_price INTEGER,
			l2_bids TEXT,
			l2_asks TEXT,
			depth_n INTEGER NOT NULL,
			bids_depth_n INTEGER NOT NULL,
			asks_depth_n INTEGER NOT NULL,
			imbalance_n REAL,
			vwap_macro INTEGER,
			vwap_micro INTEGER,
			PRIMARY KEY (macro_tick, micro_tick)
		);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("storage: create schema: %w", err)
		}
	}
	return nil
}

// AddAccount stages (or restages, since the accounts buffer is a
// standing snapshot) an account's current state. Unlike the other
// Add* methods this always overwrites, matching the per-flush
// full-snapshot behavior.
func (s *Sink) AddAccount(account *types.Account) {
	s.accounts[account.AccountID] = account
}

// AddOrder stages order for the next flush. Returns false (a no-op) if
// order_id was already staged, matching the reference implementation's
// duplicate-id guard.
func (s *Sink) AddOrder(order *types.Order) bool {
	if _, exists := s.orders[order.OrderID]; exists {
		return false
	}
	s.orders[order.OrderID] = order
	return true
}

// AddTrade stages trade for the next flush. Satisfies
// matching.TradeRecorder.
func (s *Sink) AddTrade(trade *types.Trade) {
	if _, exists := s.trades[trade.TradeID]; exists {
		return
	}
	s.trades[trade.TradeID] = trade
}

// AddDeposit stages deposit for the next flush.
func (s *Sink) AddDeposit(deposit *types.Deposit) bool {
	if _, exists := s.deposits[deposit.DepositID]; exists {
		return false
	}
	s.deposits[deposit.DepositID] = deposit
	return true
}

// AddInsight stages an economy insight for the next flush, keyed by
// macro tick.
func (s *Sink) AddInsight(insight types.EconomyInsight) bool {
	if _, exists := s.insights[insight.MacroTick]; exists {
		return false
	}
	cp := insight
	s.insights[insight.MacroTick] = &cp
	return true
}

// AddMarketData stages a market-data snapshot for the next flush, keyed
// by (macro_tick, micro_tick).
func (s *Sink) AddMarketData(md *types.MarketData) bool {
	key := marketKey{md.MacroTick, md.MicroTick}
	if _, exists := s.market[key]; exists {
		return false
	}
	s.market[key] = md
	return true
}

// Flush writes every staged row to sqlite in one transaction. It is a
// no-op (returns false) if currentMacroTick was already flushed — the
// simulation loop is expected to call Flush at most once per macro
// tick. The accounts buffer persists across flushes; every other buffer
// clears on success.
func (s *Sink) Flush(currentMacroTick int64) (bool, error) {
	if s.lastFlushMacroTick == currentMacroTick {
		return false, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("storage: begin flush: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, account := range s.accounts {
		if err := recordAccount(tx, currentMacroTick, account); err != nil {
			return false, err
		}
	}
	for _, order := range s.orders {
		if err := recordOrder(tx, order); err != nil {
			return false, err
		}
	}
	for _, trade := range s.trades {
		if err := recordTrade(tx, trade); err != nil {
			return false, err
		}
	}
	for _, deposit := range s.deposits {
		if err := recordDeposit(tx, deposit); err != nil {
			return false, err
		}
	}
	for _, insight := range s.insights {
		if err := recordInsight(tx, insight); err != nil {
			return false, err
		}
	}
	for _, md := range s.market {
		if err := recordMarketData(tx, md); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("storage: commit flush: %w", err)
	}

	s.orders = make(map[int64]*types.Order)
	s.trades = make(map[int64]*types.Trade)
	s.deposits = make(map[int64]*types.Deposit)
	s.insights = make(map[int64]*types.EconomyInsight)
	s.market = make(map[marketKey]*types.MarketData)

	s.lastFlushMacroTick = currentMacroTick
	if s.logger != nil {
		s.logger.Debug("storage flush committed", zap.Int64("macro_tick", currentMacroTick))
	}
	return true, nil
}

// Close closes the underlying sqlite handle.
func (s *Sink) Close() error {
	return s.db.Close()
}

func recordOrder(tx *sql.Tx, o *types.Order) error {
	_, err := tx.Exec(
		`INSERT INTO orders (order_id, agent_id, timestamp, macro_tick, micro_tick, order_type, side, quantity, price, lifecycle, end_reason, remaining_quantity)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.AgentID, o.Timestamp, o.Tick.Macro, o.Tick.Micro, string(o.OrderType), string(o.Side),
		o.Quantity, o.Price, string(o.Lifecycle), string(o.EndReason), o.RemainingQuantity,
	)
	if err != nil {
		return fmt.Errorf("storage: record order %d: %w", o.OrderID, err)
	}
	return nil
}

func recordTrade(tx *sql.Tx, t *types.Trade) error {
	_, err := tx.Exec(
		`INSERT INTO trades (trade_id, macro_tick, micro_tick, buyer_agent_id, buy_order_id, seller_agent_id, sell_order_id, price, quantity, fee)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Tick.Macro, t.Tick.Micro, t.BuyerAgentID, t.BuyOrderID, t.SellerAgentID, t.SellOrderID,
		t.Price, t.Quantity, t.Fee,
	)
	if err != nil {
		return fmt.Errorf("storage: record trade %d: %w", t.TradeID, err)
	}
	return nil
}

func recordAccount(tx *sql.Tx, macroTick int64, a *types.Account) error {
	_, err := tx.Exec(
		`INSERT INTO accounts (macro_tick, account_id, agent_id, cash, shares, reserved_cash, reserved_shares, deposited_cash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		macroTick, a.AccountID, a.AgentID, a.Cash, a.Shares,
		a.TotalReservedCash(), a.TotalReservedShares(), a.TotalDepositedCash(),
	)
	if err != nil {
		return fmt.Errorf("storage: record account %d: %w", a.AccountID, err)
	}
	return nil
}

func recordDeposit(tx *sql.Tx, d *types.Deposit) error {
	_, err := tx.Exec(
		`INSERT INTO deposits (deposit_id, agent_id, creation_macro_tick, maturity_macro_tick, deposited_cash, interest_rate, matured_cash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.DepositID, d.AgentID, d.CreationTick, d.MaturityTick, d.Principal, d.InterestRate, d.MaturedCash,
	)
	if err != nil {
		return fmt.Errorf("storage: record deposit %d: %w", d.DepositID, err)
	}
	return nil
}

func recordInsight(tx *sql.Tx, e *types.EconomyInsight) error {
	ratesJSON, err := json.Marshal(e.DepositRates)
	if err != nil {
		return fmt.Errorf("storage: marshal deposit rates for tick %d: %w", e.MacroTick, err)
	}
	_, err = tx.Exec(
		`INSERT INTO economy_insights (macro_tick, true_value, short_rate, width, tv_lower_bound, tv_upper_bound, deposit_rates)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.MacroTick, e.TrueValue, e.ShortRate, e.Width, e.TVLower, e.TVUpper, string(ratesJSON),
	)
	if err != nil {
		return fmt.Errorf("storage: record insight for tick %d: %w", e.MacroTick, err)
	}
	return nil
}

func recordMarketData(tx *sql.Tx, md *types.MarketData) error {
	l1Bid, err := json.Marshal(md.L1Bid)
	if err != nil {
		return fmt.Errorf("storage: marshal l1 bid: %w", err)
	}
	l1Ask, err := json.Marshal(md.L1Ask)
	if err != nil {
		return fmt.Errorf("storage: marshal l1 ask: %w", err)
	}
	l2Bids, err := json.Marshal(md.L2Bids)
	if err != nil {
		return fmt.Errorf("storage: marshal l2 bids: %w", err)
	}
	l2Asks, err := json.Marshal(md.L2Asks)
	if err != nil {
		return fmt.Errorf("storage: marshal l2 asks: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO market_data (macro_tick, micro_tick, trade_count, trade_volume, last_traded_price, last_trade_size,
		 l1_bid, l1_ask, spread, mid_price, micro_price, l2_bids, l2_asks, depth_n, bids_depth_n, asks_depth_n, imbalance_n, vwap_macro, vwap_micro)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		md.MacroTick, md.MicroTick, md.TradeCount, md.TradeVolume, md.LastTradedPrice, md.LastTradeSize,
		string(l1Bid), string(l1Ask), md.Spread, md.MidPrice, md.MicroPrice, string(l2Bids), string(l2Asks),
		md.DepthN, md.BidsDepthN, md.AsksDepthN, md.ImbalanceN, md.VWAPMacro, md.VWAPMicro,
	)
	if err != nil {
		return fmt.Errorf("storage: record market data (%d,%d): %w", md.MacroTick, md.MicroTick, err)
	}
	return nil
}

// Package ledger implements the settlement ledger: account registry,
// cash/share reservations backing resting LIMIT orders, the deposit
// maturity calendar, and trade settlement. It is the sole mutator of
// Account state — the order book and matching engine never touch cash or
// shares directly.
//
// Every exported method documents two kinds of failure, matching §7 of
// the specification: a bool/nil return communicates an expected,
// data-dependent outcome (insufficient funds, unknown account); a panic
// communicates a precondition violation that should never happen under
// correct calling discipline (settling a trade against a non-working
// order, releasing a reservation that does not exist).
package ledger

import (
	"fmt"
	"math"
	"sort"

	"github.com/exiort/mas-market-laboratory/internal/money"
	"github.com/exiort/mas-market-laboratory/internal/types"
)

// Ledger owns every account and the deposit maturity calendar.
type Ledger struct {
	feeRatePPM int64
	priceScale money.Scale

	accountsByAgent map[int64]*types.Account
	accountsByID    map[int64]*types.Account

	// depositsByMaturity and maturityTicks together model the
	// reference implementation's SortedDict-keyed calendar: a plain
	// map plus a maintained-sorted slice of distinct keys, so
	// CheckMaturedDeposits can pop buckets in ascending tick order
	// without re-sorting on every call.
	depositsByMaturity map[int64][]*types.Deposit
	maturityTicks      []int64

	nextAccountID int64
	nextDepositID int64
}

// New constructs an empty ledger for the given fee rate (parts-per-
// million) and fixed-point scale.
func New(feeRatePPM int64, priceScale money.Scale) *Ledger {
	return &Ledger{
		feeRatePPM:         feeRatePPM,
		priceScale:         priceScale,
		accountsByAgent:    make(map[int64]*types.Account),
		accountsByID:       make(map[int64]*types.Account),
		depositsByMaturity: make(map[int64][]*types.Deposit),
	}
}

// AccountExists reports whether agentID already has a registered account.
func (l *Ledger) AccountExists(agentID int64) bool {
	_, ok := l.accountsByAgent[agentID]
	return ok
}

// AccountByAgent returns the account for agentID, or nil.
func (l *Ledger) AccountByAgent(agentID int64) *types.Account {
	return l.accountsByAgent[agentID]
}

// AccountByID returns the account for accountID, or nil.
func (l *Ledger) AccountByID(accountID int64) *types.Account {
	return l.accountsByID[accountID]
}

// Accounts returns every registered account, for storage snapshots and
// conservation checks. The caller must not mutate the returned slice's
// contents outside the ledger's own methods.
func (l *Ledger) Accounts() []*types.Account {
	out := make([]*types.Account, 0, len(l.accountsByAgent))
	for _, a := range l.accountsByAgent {
		out = append(out, a)
	}
	return out
}

// RegisterAccount idempotently creates an account for agentID. Returns
// (nil, false) if the agent already has an account or either initial
// amount is negative — these are expected caller-input outcomes, not
// precondition violations, matching register_agent's null-on-duplicate
// behavior at the facade.
func (l *Ledger) RegisterAccount(agentID int64, initialCash float64, initialShares int64) (*types.Account, bool) {
	if l.AccountExists(agentID) {
		return nil, false
	}
	if initialCash < 0 || initialShares < 0 {
		return nil, false
	}

	accountID := l.nextAccountID
	l.nextAccountID++

	account := types.NewAccount(accountID, agentID, l.priceScale.ToFixed(initialCash), initialShares)
	l.accountsByAgent[agentID] = account
	l.accountsByID[accountID] = account
	return account, true
}

// LimitCheckAndReserve attempts to reserve funds/shares for a freshly
// submitted LIMIT order, per §4.4. Returns false (no mutation) if the
// account cannot cover the reservation.
func (l *Ledger) LimitCheckAndReserve(order *types.Order) bool {
	if order.OrderType != types.OrderTypeLimit {
		panic("ledger: LimitCheckAndReserve called on a non-LIMIT order")
	}
	if order.Price == nil || *order.Price <= 0 {
		panic("ledger: LIMIT order missing a positive price")
	}
	if order.Quantity <= 0 || order.RemainingQuantity != order.Quantity {
		panic("ledger: LimitCheckAndReserve called on a non-fresh order")
	}
	if order.Lifecycle != types.LifecycleWorking || order.EndReason != types.EndReasonNone {
		panic("ledger: LimitCheckAndReserve called on an order outside WORKING/NONE")
	}
	if len(order.Trades) != 0 {
		panic("ledger: LimitCheckAndReserve called on an order with prior trades")
	}

	account := l.accountsByAgent[order.AgentID]
	if account == nil {
		panic(fmt.Sprintf("ledger: no account for agent %d", order.AgentID))
	}

	price := *order.Price
	switch order.Side {
	case types.SideBuy:
		tradeCost := order.Quantity * price
		fee := money.Fee(price, order.Quantity, l.feeRatePPM)
		required := tradeCost + fee
		if account.Cash < required {
			return false
		}
		account.ReservedCash[order.OrderID] = types.CashReservation{RemainingQty: order.Quantity, LimitPrice: price}
		account.Cash -= required
		return true

	case types.SideSell:
		required := order.Quantity
		if account.Shares < required {
			return false
		}
		account.ReservedShares[order.OrderID] = order.Quantity
		account.Shares -= required
		return true

	default:
		panic("ledger: unknown side")
	}
}

// MarketPossibleQuantity computes the quantity a MARKET order could still
// transact against a maker resting at tradePrice, per §4.4. Zero means
// insufficient funds/shares.
func (l *Ledger) MarketPossibleQuantity(order *types.Order, tradePrice int64) int64 {
	if order.OrderType != types.OrderTypeMarket {
		panic("ledger: MarketPossibleQuantity called on a non-MARKET order")
	}
	if order.Price != nil {
		panic("ledger: MARKET order carries a price")
	}
	if order.Quantity <= 0 || order.RemainingQuantity <= 0 || order.RemainingQuantity > order.Quantity {
		panic("ledger: MarketPossibleQuantity called on an order with an invalid remaining quantity")
	}
	if order.Lifecycle != types.LifecycleWorking || order.EndReason != types.EndReasonNone {
		panic("ledger: MarketPossibleQuantity called on an order outside WORKING/NONE")
	}

	account := l.accountsByAgent[order.AgentID]
	if account == nil {
		panic(fmt.Sprintf("ledger: no account for agent %d", order.AgentID))
	}

	switch order.Side {
	case types.SideBuy:
		perUnitFee := money.PerUnitFee(tradePrice, l.feeRatePPM)
		possible := account.Cash / (tradePrice + perUnitFee)
		return min64(possible, order.RemainingQuantity)

	case types.SideSell:
		return min64(order.RemainingQuantity, account.Shares)

	default:
		panic("ledger: unknown side")
	}
}

// ReleaseCash releases releasedQty units of a BUY LIMIT order's cash
// reservation (principal plus the fee held alongside it) back to the
// account, dropping the reservation entry once it reaches zero.
func (l *Ledger) ReleaseCash(order *types.Order, releasedQty int64) {
	account := l.accountsByAgent[order.AgentID]
	if account == nil {
		panic(fmt.Sprintf("ledger: no account for agent %d", order.AgentID))
	}
	l.checkReleasePreconditions(order)

	reservation, ok := account.ReservedCash[order.OrderID]
	if !ok {
		panic(fmt.Sprintf("ledger: order %d has no cash reservation", order.OrderID))
	}
	if order.RemainingQuantity != reservation.RemainingQty {
		panic(fmt.Sprintf("ledger: order %d remaining quantity %d disagrees with reservation %d",
			order.OrderID, order.RemainingQuantity, reservation.RemainingQty))
	}
	if releasedQty > reservation.RemainingQty {
		panic(fmt.Sprintf("ledger: released quantity %d exceeds reserved quantity %d", releasedQty, reservation.RemainingQty))
	}

	releasedCost := releasedQty * reservation.LimitPrice
	releasedFee := money.Fee(reservation.LimitPrice, releasedQty, l.feeRatePPM)
	released := releasedCost + releasedFee

	remaining := reservation.RemainingQty - releasedQty
	if remaining == 0 {
		delete(account.ReservedCash, order.OrderID)
	} else {
		account.ReservedCash[order.OrderID] = types.CashReservation{RemainingQty: remaining, LimitPrice: reservation.LimitPrice}
	}

	account.Cash += released
}

// ReleaseCashRemaining releases whatever remains of order's cash
// reservation, used by the blanket wash-trade, cancel, and expire paths.
func (l *Ledger) ReleaseCashRemaining(order *types.Order) {
	account := l.accountsByAgent[order.AgentID]
	if account == nil {
		panic(fmt.Sprintf("ledger: no account for agent %d", order.AgentID))
	}
	reservation, ok := account.ReservedCash[order.OrderID]
	if !ok {
		panic(fmt.Sprintf("ledger: order %d has no cash reservation", order.OrderID))
	}
	l.ReleaseCash(order, reservation.RemainingQty)
}

// ReleaseShares releases releasedQty units of a SELL LIMIT order's share
// reservation back to the account.
func (l *Ledger) ReleaseShares(order *types.Order, releasedQty int64) {
	account := l.accountsByAgent[order.AgentID]
	if account == nil {
		panic(fmt.Sprintf("ledger: no account for agent %d", order.AgentID))
	}
	l.checkReleasePreconditions(order)

	reservedQty, ok := account.ReservedShares[order.OrderID]
	if !ok {
		panic(fmt.Sprintf("ledger: order %d has no share reservation", order.OrderID))
	}
	if order.RemainingQuantity != reservedQty {
		panic(fmt.Sprintf("ledger: order %d remaining quantity %d disagrees with reservation %d",
			order.OrderID, order.RemainingQuantity, reservedQty))
	}
	if releasedQty > reservedQty {
		panic(fmt.Sprintf("ledger: released quantity %d exceeds reserved quantity %d", releasedQty, reservedQty))
	}

	remaining := reservedQty - releasedQty
	if remaining == 0 {
		delete(account.ReservedShares, order.OrderID)
	} else {
		account.ReservedShares[order.OrderID] = remaining
	}

	account.Shares += releasedQty
}

// ReleaseSharesRemaining releases whatever remains of order's share
// reservation, used by the blanket wash-trade, cancel, and expire paths.
func (l *Ledger) ReleaseSharesRemaining(order *types.Order) {
	account := l.accountsByAgent[order.AgentID]
	if account == nil {
		panic(fmt.Sprintf("ledger: no account for agent %d", order.AgentID))
	}
	reservedQty, ok := account.ReservedShares[order.OrderID]
	if !ok {
		panic(fmt.Sprintf("ledger: order %d has no share reservation", order.OrderID))
	}
	l.ReleaseShares(order, reservedQty)
}

func (l *Ledger) checkReleasePreconditions(order *types.Order) {
	if order.OrderType != types.OrderTypeLimit {
		panic("ledger: release called on a non-LIMIT order")
	}
	if order.Price == nil || *order.Price <= 0 {
		panic("ledger: release called on a LIMIT order without a positive price")
	}
	if order.Quantity <= 0 || order.RemainingQuantity <= 0 || order.RemainingQuantity > order.Quantity {
		panic("ledger: release called on an order with an invalid remaining quantity")
	}
	if order.Lifecycle != types.LifecycleWorking || order.EndReason != types.EndReasonNone {
		panic("ledger: release called on an order outside WORKING/NONE")
	}
}

// Release dispatches to ReleaseCashRemaining or ReleaseSharesRemaining
// based on order.Side. Used by cancel_order and expire_session.
func (l *Ledger) Release(order *types.Order) {
	if order.Side == types.SideBuy {
		l.ReleaseCashRemaining(order)
		return
	}
	l.ReleaseSharesRemaining(order)
}

// SettleTrade applies a matched trade to both accounts: releases the
// LIMIT side's proportional reservation, transfers cash/shares at the
// trade price, deducts fees from both parties, and decrements both
// orders' remaining quantity. Every precondition is asserted; violation
// panics, since settlement only ever runs against internally-constructed,
// already-validated trades.
func (l *Ledger) SettleTrade(buyOrder, sellOrder *types.Order, trade *types.Trade) {
	buyerAccount := l.accountsByAgent[buyOrder.AgentID]
	sellerAccount := l.accountsByAgent[sellOrder.AgentID]
	if buyerAccount == nil || sellerAccount == nil {
		panic("ledger: SettleTrade referenced an unregistered account")
	}
	if buyOrder.Side != types.SideBuy || sellOrder.Side != types.SideSell {
		panic("ledger: SettleTrade called with mismatched sides")
	}
	if buyOrder.Quantity <= 0 || sellOrder.Quantity <= 0 {
		panic("ledger: SettleTrade called on a zero-quantity order")
	}
	if buyOrder.RemainingQuantity < trade.Quantity || sellOrder.RemainingQuantity < trade.Quantity {
		panic("ledger: SettleTrade quantity exceeds an order's remaining quantity")
	}
	if buyOrder.Price != nil && *buyOrder.Price < trade.Price {
		panic("ledger: SettleTrade trade price exceeds the buyer's limit")
	}
	if sellOrder.Price != nil && *sellOrder.Price > trade.Price {
		panic("ledger: SettleTrade trade price undercuts the seller's limit")
	}
	if buyOrder.Lifecycle != types.LifecycleWorking || sellOrder.Lifecycle != types.LifecycleWorking {
		panic("ledger: SettleTrade called on a non-WORKING order")
	}
	if buyOrder.EndReason != types.EndReasonNone || sellOrder.EndReason != types.EndReasonNone {
		panic("ledger: SettleTrade called on an order with a terminal end reason already set")
	}
	if trade.BuyerAgentID != buyOrder.AgentID || trade.SellerAgentID != sellOrder.AgentID {
		panic("ledger: SettleTrade trade agent ids disagree with the orders")
	}
	if trade.BuyOrderID != buyOrder.OrderID || trade.SellOrderID != sellOrder.OrderID {
		panic("ledger: SettleTrade trade order ids disagree with the orders")
	}
	if trade.Price <= 0 || trade.Quantity <= 0 {
		panic("ledger: SettleTrade called with a non-positive price or quantity")
	}

	if buyOrder.OrderType == types.OrderTypeLimit {
		l.ReleaseCash(buyOrder, trade.Quantity)
	}
	if sellOrder.OrderType == types.OrderTypeLimit {
		l.ReleaseShares(sellOrder, trade.Quantity)
	}

	tradeCost := trade.Quantity * trade.Price

	buyerAccount.Cash -= tradeCost
	buyerAccount.Shares += trade.Quantity
	buyerAccount.Cash -= trade.Fee

	sellerAccount.Cash += tradeCost
	sellerAccount.Shares -= trade.Quantity
	sellerAccount.Cash -= trade.Fee

	if buyerAccount.Cash < 0 || buyerAccount.Shares < 0 || sellerAccount.Cash < 0 || sellerAccount.Shares < 0 {
		panic("ledger: SettleTrade produced a negative balance")
	}

	buyOrder.RemainingQuantity -= trade.Quantity
	sellOrder.RemainingQuantity -= trade.Quantity

	buyOrder.AttachTrade(trade)
	sellOrder.AttachTrade(trade)
}

// CreateDeposit reserves depositCash (human units) from agentID's account
// for term macro ticks at interestRate, scheduling it on the maturity
// calendar. Returns (nil, false) if the account cannot cover the
// principal. Range validation on term/horizon/cash sign is the facade's
// responsibility (§4.7); here those are asserted preconditions.
func (l *Ledger) CreateDeposit(agentID, term int64, depositCash float64, currentMacroTick, simulationMacroTick int64, interestRate float64) (*types.Deposit, bool) {
	account := l.accountsByAgent[agentID]
	if account == nil {
		panic(fmt.Sprintf("ledger: no account for agent %d", agentID))
	}
	if depositCash <= 0 {
		panic("ledger: CreateDeposit called with non-positive cash")
	}
	if currentMacroTick+term > simulationMacroTick {
		panic("ledger: CreateDeposit maturity exceeds the simulation horizon")
	}

	principal := l.priceScale.ToFixed(depositCash)
	maturityTick := currentMacroTick + term
	maturedCash := int64(math.Floor(float64(principal) * (1 + interestRate)))

	deposit := &types.Deposit{
		DepositID:    l.nextDepositID,
		AgentID:      agentID,
		CreationTick: currentMacroTick,
		MaturityTick: maturityTick,
		Principal:    principal,
		InterestRate: interestRate,
		MaturedCash:  maturedCash,
	}

	if account.Cash < principal {
		return nil, false
	}

	l.nextDepositID++
	account.DepositedCash[deposit.DepositID] = principal
	account.Cash -= principal

	l.scheduleDeposit(deposit)
	return deposit, true
}

func (l *Ledger) scheduleDeposit(deposit *types.Deposit) {
	bucket, exists := l.depositsByMaturity[deposit.MaturityTick]
	l.depositsByMaturity[deposit.MaturityTick] = append(bucket, deposit)
	if !exists {
		idx := sort.Search(len(l.maturityTicks), func(i int) bool { return l.maturityTicks[i] >= deposit.MaturityTick })
		l.maturityTicks = append(l.maturityTicks, 0)
		copy(l.maturityTicks[idx+1:], l.maturityTicks[idx:])
		l.maturityTicks[idx] = deposit.MaturityTick
	}
}

// CheckMaturedDeposits pops every maturity bucket with maturity_tick <=
// currentMacroTick, in ascending tick order, crediting matured_cash to
// each account and removing the deposit from deposited_cash. Returns the
// matured deposits in the order they were credited.
func (l *Ledger) CheckMaturedDeposits(currentMacroTick int64) []*types.Deposit {
	var matured []*types.Deposit

	for len(l.maturityTicks) > 0 && l.maturityTicks[0] <= currentMacroTick {
		tick := l.maturityTicks[0]
		for _, deposit := range l.depositsByMaturity[tick] {
			l.releaseDeposit(deposit)
			matured = append(matured, deposit)
		}
		delete(l.depositsByMaturity, tick)
		l.maturityTicks = l.maturityTicks[1:]
	}

	return matured
}

func (l *Ledger) releaseDeposit(deposit *types.Deposit) {
	account := l.accountsByAgent[deposit.AgentID]
	if account == nil {
		panic(fmt.Sprintf("ledger: no account for agent %d", deposit.AgentID))
	}
	principal, ok := account.DepositedCash[deposit.DepositID]
	if !ok || principal != deposit.Principal {
		panic(fmt.Sprintf("ledger: deposit %d missing or inconsistent in account %d", deposit.DepositID, account.AccountID))
	}

	delete(account.DepositedCash, deposit.DepositID)
	account.Cash += deposit.MaturedCash
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Package views projects the engine's fixed-point internal state into
// human-unit decimal.Decimal values. Nothing outside this package ever
// constructs a decimal.Decimal; every conservation computation inside
// the ledger, book, and matching engine stays on plain int64 (see
// internal/money).
package views

import (
	"github.com/shopspring/decimal"

	"github.com/exiort/mas-market-laboratory/internal/hybridtime"
	"github.com/exiort/mas-market-laboratory/internal/money"
	"github.com/exiort/mas-market-laboratory/internal/types"
)

// ReservedCashView is the human-unit projection of a single open
// BUY-limit cash reservation: the remaining quantity and the limit
// price it was reserved at.
type ReservedCashView struct {
	Quantity int64
	Price    decimal.Decimal
}

// AccountView is the human-unit projection of types.Account. The
// reservation maps are keyed the same way the ledger keeps them —
// order_id for ReservedCash/ReservedShares, deposit_id for
// DepositedCash — so a caller can see exactly which order or deposit
// holds each reserve rather than only an aggregate total.
type AccountView struct {
	AccountID int64
	AgentID   int64

	Cash   decimal.Decimal
	Shares int64

	ReservedCash   map[int64]ReservedCashView // order_id -> (qty, human price)
	ReservedShares map[int64]int64            // order_id -> qty
	DepositedCash  map[int64]decimal.Decimal  // deposit_id -> human principal
}

// Account converts account's fixed-point fields into an AccountView at
// the given scale.
func Account(account *types.Account, scale money.Scale) AccountView {
	reservedCash := make(map[int64]ReservedCashView, len(account.ReservedCash))
	for orderID, r := range account.ReservedCash {
		reservedCash[orderID] = ReservedCashView{Quantity: r.RemainingQty, Price: toDecimal(r.LimitPrice, scale)}
	}

	reservedShares := make(map[int64]int64, len(account.ReservedShares))
	for orderID, qty := range account.ReservedShares {
		reservedShares[orderID] = qty
	}

	depositedCash := make(map[int64]decimal.Decimal, len(account.DepositedCash))
	for depositID, principal := range account.DepositedCash {
		depositedCash[depositID] = toDecimal(principal, scale)
	}

	return AccountView{
		AccountID:      account.AccountID,
		AgentID:        account.AgentID,
		Cash:           toDecimal(account.Cash, scale),
		Shares:         account.Shares,
		ReservedCash:   reservedCash,
		ReservedShares: reservedShares,
		DepositedCash:  depositedCash,
	}
}

// OrderView is the human-unit projection of types.Order.
type OrderView struct {
	OrderID int64
	AgentID int64
	Tick    hybridtime.Tick

	OrderType types.OrderType
	Side      types.Side

	Quantity          int64
	RemainingQuantity int64
	Price             *decimal.Decimal

	Lifecycle types.Lifecycle
	EndReason types.EndReason
}

// Order converts order into an OrderView.
func Order(order *types.Order, scale money.Scale) OrderView {
	v := OrderView{
		OrderID:           order.OrderID,
		AgentID:           order.AgentID,
		Tick:              order.Tick,
		OrderType:         order.OrderType,
		Side:              order.Side,
		Quantity:          order.Quantity,
		RemainingQuantity: order.RemainingQuantity,
		Lifecycle:         order.Lifecycle,
		EndReason:         order.EndReason,
	}
	if order.Price != nil {
		d := toDecimal(*order.Price, scale)
		v.Price = &d
	}
	return v
}

// TradeView is the human-unit projection of types.Trade.
type TradeView struct {
	TradeID int64
	Tick    hybridtime.Tick

	BuyerAgentID  int64
	BuyOrderID    int64
	SellerAgentID int64
	SellOrderID   int64

	Price    decimal.Decimal
	Quantity int64
	Fee      decimal.Decimal
}

// Trade converts trade into a TradeView.
func Trade(trade *types.Trade, scale money.Scale) TradeView {
	return TradeView{
		TradeID:       trade.TradeID,
		Tick:          trade.Tick,
		BuyerAgentID:  trade.BuyerAgentID,
		BuyOrderID:    trade.BuyOrderID,
		SellerAgentID: trade.SellerAgentID,
		SellOrderID:   trade.SellOrderID,
		Price:         toDecimal(trade.Price, scale),
		Quantity:      trade.Quantity,
		Fee:           toDecimal(trade.Fee, scale),
	}
}

// DepositView is the human-unit projection of types.Deposit.
type DepositView struct {
	DepositID    int64
	AgentID      int64
	CreationTick int64
	MaturityTick int64

	Principal    decimal.Decimal
	InterestRate decimal.Decimal
	MaturedCash  decimal.Decimal
}

// Deposit converts deposit into a DepositView.
func Deposit(deposit *types.Deposit, scale money.Scale) DepositView {
	return DepositView{
		DepositID:    deposit.DepositID,
		AgentID:      deposit.AgentID,
		CreationTick: deposit.CreationTick,
		MaturityTick: deposit.MaturityTick,
		Principal:    toDecimal(deposit.Principal, scale),
		InterestRate: decimal.NewFromFloat(deposit.InterestRate),
		MaturedCash:  toDecimal(deposit.MaturedCash, scale),
	}
}

// EconomyInsightView is the human-unit projection of types.EconomyInsight.
type EconomyInsightView struct {
	MacroTick int64

	TrueValue decimal.Decimal
	ShortRate decimal.Decimal
	Width     decimal.Decimal

	TVLower decimal.Decimal
	TVUpper decimal.Decimal

	DepositRates map[int64]decimal.Decimal
}

// EconomyInsight converts insight into an EconomyInsightView.
func EconomyInsight(insight types.EconomyInsight, scale money.Scale) EconomyInsightView {
	rates := make(map[int64]decimal.Decimal, len(insight.DepositRates))
	for term, rate := range insight.DepositRates {
		rates[term] = decimal.NewFromFloat(rate)
	}
	return EconomyInsightView{
		MacroTick:    insight.MacroTick,
		TrueValue:    toDecimal(insight.TrueValue, scale),
		ShortRate:    decimal.NewFromFloat(insight.ShortRate),
		Width:        decimal.NewFromFloat(insight.Width),
		TVLower:      toDecimal(insight.TVLower, scale),
		TVUpper:      toDecimal(insight.TVUpper, scale),
		DepositRates: rates,
	}
}

// PriceLevelView is the human-unit projection of a single L1/L2 row.
type PriceLevelView struct {
	Price  decimal.Decimal
	Size   int64
	Orders int64
}

// MarketDataView is the human-unit projection of types.MarketData.
type MarketDataView struct {
	MacroTick int64
	MicroTick int64

	TradeCount  int64
	TradeVolume int64

	LastTradedPrice *decimal.Decimal
	LastTradeSize   *int64

	L1Bid *PriceLevelView
	L1Ask *PriceLevelView

	Spread     *decimal.Decimal
	MidPrice   *decimal.Decimal
	MicroPrice *decimal.Decimal

	L2Bids []PriceLevelView
	L2Asks []PriceLevelView

	DepthN     int64
	BidsDepthN int64
	AsksDepthN int64
	ImbalanceN *float64

	VWAPMacro *decimal.Decimal
	VWAPMicro *decimal.Decimal
}

// MarketData converts md into a MarketDataView.
func MarketData(md *types.MarketData, scale money.Scale) MarketDataView {
	v := MarketDataView{
		MacroTick:   md.MacroTick,
		MicroTick:   md.MicroTick,
		TradeCount:  md.TradeCount,
		TradeVolume: md.TradeVolume,
		DepthN:      md.DepthN,
		BidsDepthN:  md.BidsDepthN,
		AsksDepthN:  md.AsksDepthN,
		ImbalanceN:  md.ImbalanceN,
		LastTradeSize: md.LastTradeSize,
	}

	if md.LastTradedPrice != nil {
		d := toDecimal(*md.LastTradedPrice, scale)
		v.LastTradedPrice = &d
	}
	if md.L1Bid != nil {
		v.L1Bid = toLevelView(md.L1Bid, scale)
	}
	if md.L1Ask != nil {
		v.L1Ask = toLevelView(md.L1Ask, scale)
	}
	if md.Spread != nil {
		d := toDecimal(*md.Spread, scale)
		v.Spread = &d
	}
	if md.MidPrice != nil {
		d := toDecimal(*md.MidPrice, scale)
		v.MidPrice = &d
	}
	if md.MicroPrice != nil {
		d := toDecimal(*md.MicroPrice, scale)
		v.MicroPrice = &d
	}
	if md.VWAPMacro != nil {
		d := toDecimal(*md.VWAPMacro, scale)
		v.VWAPMacro = &d
	}
	if md.VWAPMicro != nil {
		d := toDecimal(*md.VWAPMicro, scale)
		v.VWAPMicro = &d
	}

	v.L2Bids = toLevelViews(md.L2Bids, scale)
	v.L2Asks = toLevelViews(md.L2Asks, scale)

	return v
}

func toLevelView(level *types.PriceLevelSnapshot, scale money.Scale) *PriceLevelView {
	return &PriceLevelView{Price: toDecimal(level.Price, scale), Size: level.Size, Orders: level.Orders}
}

func toLevelViews(levels []types.PriceLevelSnapshot, scale money.Scale) []PriceLevelView {
	out := make([]PriceLevelView, 0, len(levels))
	for _, level := range levels {
		out = append(out, PriceLevelView{Price: toDecimal(level.Price, scale), Size: level.Size, Orders: level.Orders})
	}
	return out
}

// toDecimal converts a fixed-point integer to a decimal.Decimal at scale
// by constructing it as fixed/10^exponent, where exponent is scale's
// power of ten — exact, unlike routing through float64.
func toDecimal(fixed int64, scale money.Scale) decimal.Decimal {
	exponent := decimalExponent(scale)
	return decimal.New(fixed, -exponent)
}

func decimalExponent(scale money.Scale) int32 {
	var exponent int32
	for s := int64(scale); s > 1; s /= 10 {
		exponent++
	}
	return exponent
}

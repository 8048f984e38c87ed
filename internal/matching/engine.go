// Package matching implements the continuous double auction core: order
// acceptance, limit/market matching against the resident order book,
// trade emission and settlement, cancellation, session expiry, and the
// L1/L2 market-data snapshot. The engine owns the order book and the
// trade_id sequence; it drives the ledger but never touches an account
// field directly (see internal/ledger for the only code allowed to do
// that).
package matching

import (
	"fmt"

	"github.com/exiort/mas-market-laboratory/internal/hybridtime"
	"github.com/exiort/mas-market-laboratory/internal/ledger"
	"github.com/exiort/mas-market-laboratory/internal/money"
	"github.com/exiort/mas-market-laboratory/internal/orderbook"
	"github.com/exiort/mas-market-laboratory/internal/types"
)

// TradeRecorder is the narrow append surface the engine needs from the
// storage sink. Declared here (rather than imported from
// internal/storage) so matching never depends upward on the storage
// package's sqlite/json concerns — only on the one method it actually
// calls, matching the reference implementation's direct
// storage_ledger.add_trade call inside __execute_trade.
type TradeRecorder interface {
	AddTrade(trade *types.Trade)
}

// breakReason is the internal flag set when a match loop exits without
// fully filling the taker.
type breakReason int

const (
	breakNone breakReason = iota
	breakInsufficientMarketDepth
	breakNonCrossing
	breakWashTrade
	breakInsufficientFunds
)

// Engine is the CDA matching core for the single traded instrument.
type Engine struct {
	book   *orderbook.OrderBook
	ledger *ledger.Ledger
	sink   TradeRecorder

	feeRatePPM int64
	depthN     int64

	nextTradeID int64

	lastTradedPrice *int64
	lastTradeSize   *int64

	tradeCountMicro  int64
	tradeVolumeMicro int64
	tradeValueMicro  int64

	tradeVolumeMacro int64
	tradeValueMacro  int64
}

// New constructs an empty CDA engine.
func New(feeRatePPM, depthN int64, l *ledger.Ledger, sink TradeRecorder) *Engine {
	return &Engine{
		book:       orderbook.New(),
		ledger:     l,
		sink:       sink,
		feeRatePPM: feeRatePPM,
		depthN:     depthN,
	}
}

// ProcessNewOrder is the single entry point for a freshly constructed
// order. Preconditions (quantity==remaining_quantity>0, lifecycle==NEW,
// end_reason==NONE, no prior trades) are asserted; the facade is
// responsible for never calling this on anything else.
func (e *Engine) ProcessNewOrder(order *types.Order, tick hybridtime.Tick) {
	if order.Quantity <= 0 || order.RemainingQuantity != order.Quantity {
		panic("matching: ProcessNewOrder called on a non-fresh order")
	}
	if order.Lifecycle != types.LifecycleNew || order.EndReason != types.EndReasonNone {
		panic("matching: ProcessNewOrder called on an order outside NEW/NONE")
	}
	if len(order.Trades) != 0 {
		panic("matching: ProcessNewOrder called on an order with prior trades")
	}

	order.Tick = tick
	order.Lifecycle = types.LifecycleWorking

	switch order.OrderType {
	case types.OrderTypeLimit:
		e.processLimit(order, tick)
	case types.OrderTypeMarket:
		e.processMarket(order, tick)
	default:
		panic("matching: unknown order type")
	}
}

func (e *Engine) contraMaker(side types.Side) *types.Order {
	if side == types.SideBuy {
		return e.book.BestAskOrder()
	}
	return e.book.BestBidOrder()
}

// processLimit implements §4.5.1: reserve funds, then match while
// crossing and wash-free, resting on the book otherwise.
func (e *Engine) processLimit(order *types.Order, tick hybridtime.Tick) {
	if !e.ledger.LimitCheckAndReserve(order) {
		order.Lifecycle = types.LifecycleDone
		order.EndReason = types.EndReasonRejectedInsufficientFund
		return
	}

	reason := breakNone
	for order.RemainingQuantity > 0 {
		maker := e.contraMaker(order.Side)
		if maker == nil {
			reason = breakInsufficientMarketDepth
			break
		}

		// Price check before wash check (§9 design note): a
		// non-crossing order rests quietly even against its own
		// resting order.
		if !crosses(order, maker) {
			reason = breakNonCrossing
			break
		}
		if maker.AgentID == order.AgentID {
			reason = breakWashTrade
			break
		}

		e.matchAndSettle(order, maker, tick)
	}

	switch reason {
	case breakWashTrade:
		e.ledger.Release(order)
		order.Lifecycle = types.LifecycleDone
		order.EndReason = types.EndReasonKilledWashTrade
	case breakInsufficientMarketDepth, breakNonCrossing:
		if !e.book.Add(order) {
			panic("matching: failed to rest a validated LIMIT order")
		}
	default:
		order.Lifecycle = types.LifecycleDone
		order.EndReason = types.EndReasonFilled
	}
}

// crosses reports whether taker and maker (maker always a resting LIMIT
// order) can trade: a BUY taker must bid at least the ask, a SELL taker
// must offer at most the bid.
func crosses(taker, maker *types.Order) bool {
	if taker.OrderType != types.OrderTypeLimit {
		return true // MARKET orders always cross; see processMarket.
	}
	takerPrice := *taker.Price
	makerPrice := *maker.Price
	if taker.Side == types.SideBuy {
		return takerPrice >= makerPrice
	}
	return takerPrice <= makerPrice
}

// processMarket implements §4.5.2: no reservation, no resting; terminal
// reason precedence is wash_trade > insufficient_market_depth >
// insufficient_funds > FILLED, which falls directly out of per-iteration
// check order (depth, then wash, then funds).
func (e *Engine) processMarket(order *types.Order, tick hybridtime.Tick) {
	reason := breakNone
	for order.RemainingQuantity > 0 {
		maker := e.contraMaker(order.Side)
		if maker == nil {
			reason = breakInsufficientMarketDepth
			break
		}
		if maker.AgentID == order.AgentID {
			reason = breakWashTrade
			break
		}

		tradePrice := *maker.Price
		possibleQty := e.ledger.MarketPossibleQuantity(order, tradePrice)
		if possibleQty == 0 {
			reason = breakInsufficientFunds
			break
		}

		e.matchAndSettleQty(order, maker, tick, min64(possibleQty, maker.RemainingQuantity))
	}

	switch reason {
	case breakWashTrade:
		order.Lifecycle = types.LifecycleDone
		order.EndReason = types.EndReasonKilledWashTrade
	case breakInsufficientMarketDepth:
		order.Lifecycle = types.LifecycleDone
		order.EndReason = types.EndReasonRejectedInsufficientMarketDepth
	case breakInsufficientFunds:
		order.Lifecycle = types.LifecycleDone
		order.EndReason = types.EndReasonRejectedInsufficientFund
	default:
		order.Lifecycle = types.LifecycleDone
		order.EndReason = types.EndReasonFilled
	}
}

func (e *Engine) matchAndSettle(order, maker *types.Order, tick hybridtime.Tick) {
	tradeQty := min64(order.RemainingQuantity, maker.RemainingQuantity)
	e.matchAndSettleQty(order, maker, tick, tradeQty)
}

// matchAndSettleQty emits one trade at the maker's price for tradeQty
// units, settles it, appends it to storage, and retires the maker if it
// is now fully filled.
func (e *Engine) matchAndSettleQty(order, maker *types.Order, tick hybridtime.Tick, tradeQty int64) {
	tradePrice := *maker.Price
	fee := money.Fee(tradePrice, tradeQty, e.feeRatePPM)

	trade := &types.Trade{
		TradeID: e.nextTradeID,
		Tick:    tick,
		Price:   tradePrice,
		Quantity: tradeQty,
		Fee:      fee,
	}
	e.nextTradeID++

	var buyOrder, sellOrder *types.Order
	if order.Side == types.SideBuy {
		buyOrder, sellOrder = order, maker
	} else {
		buyOrder, sellOrder = maker, order
	}
	trade.BuyerAgentID = buyOrder.AgentID
	trade.BuyOrderID = buyOrder.OrderID
	trade.SellerAgentID = sellOrder.AgentID
	trade.SellOrderID = sellOrder.OrderID

	e.ledger.SettleTrade(buyOrder, sellOrder, trade)
	e.book.ReduceQuantity(maker.OrderID, tradeQty)

	if e.sink != nil {
		e.sink.AddTrade(trade)
	}
	e.recordMarketData(trade)

	if maker.RemainingQuantity == 0 {
		if e.book.Remove(maker.OrderID) == nil {
			panic(fmt.Sprintf("matching: maker order %d was not resident when fully filled", maker.OrderID))
		}
		maker.Lifecycle = types.LifecycleDone
		maker.EndReason = types.EndReasonFilled
	}
}

func (e *Engine) recordMarketData(trade *types.Trade) {
	price, qty := trade.Price, trade.Quantity

	e.lastTradedPrice = &price
	e.lastTradeSize = &qty

	e.tradeCountMicro++
	e.tradeVolumeMicro += qty
	e.tradeValueMicro += price * qty

	e.tradeVolumeMacro += qty
	e.tradeValueMacro += price * qty
}

// DepthCounts returns the number of resident price levels on each side,
// for metrics reporting.
func (e *Engine) DepthCounts() (bidLevels, askLevels int) {
	return len(e.book.BidDepth(0)), len(e.book.AskDepth(0))
}

// CancelOrder removes orderID from the book (it must be resident — a
// precondition the facade enforces before calling), releases its
// reservation in full, and marks it CANCELLED.
func (e *Engine) CancelOrder(orderID int64) {
	order := e.book.Remove(orderID)
	if order == nil {
		panic(fmt.Sprintf("matching: cancel called on non-resident order %d", orderID))
	}
	e.ledger.Release(order)
	order.Lifecycle = types.LifecycleDone
	order.EndReason = types.EndReasonCancelled
}

// ExpireSession drains the book, releases every resting order's
// reservation, marks each EXPIRED, and resets the macro-level VWAP
// accumulators (§4.5.5; micro accumulators are reset per get_market_data
// call regardless, so nothing to do for them here).
func (e *Engine) ExpireSession() {
	bids, asks := e.book.ExpireBook()
	for _, order := range bids {
		e.ledger.Release(order)
		order.Lifecycle = types.LifecycleDone
		order.EndReason = types.EndReasonExpired
	}
	for _, order := range asks {
		e.ledger.Release(order)
		order.Lifecycle = types.LifecycleDone
		order.EndReason = types.EndReasonExpired
	}

	e.tradeVolumeMacro = 0
	e.tradeValueMacro = 0
}

// GetMarketData builds the L1/L2 snapshot and VWAP view of §4.5.6, then
// resets the micro-level accumulators (last traded price/size, trade
// count/volume/value since the previous call). Macro accumulators persist
// until ExpireSession.
func (e *Engine) GetMarketData(tick hybridtime.Tick, depthLevels int) *types.MarketData {
	md := &types.MarketData{
		MacroTick:       tick.Macro,
		MicroTick:       tick.Micro,
		TradeCount:      e.tradeCountMicro,
		TradeVolume:     e.tradeVolumeMicro,
		LastTradedPrice: e.lastTradedPrice,
		LastTradeSize:   e.lastTradeSize,
		DepthN:          e.depthN,
	}

	bestBid := e.book.BestBid()
	bestAsk := e.book.BestAsk()

	if bestBid != nil {
		md.L1Bid = &types.PriceLevelSnapshot{Price: bestBid.Price, Size: bestBid.TotalQty, Orders: int64(bestBid.Count())}
	}
	if bestAsk != nil {
		md.L1Ask = &types.PriceLevelSnapshot{Price: bestAsk.Price, Size: bestAsk.TotalQty, Orders: int64(bestAsk.Count())}
	}

	if bestBid != nil && bestAsk != nil {
		spread := bestAsk.Price - bestBid.Price
		mid := (bestBid.Price + bestAsk.Price) / 2
		md.Spread = &spread
		md.MidPrice = &mid

		totalSize := bestBid.TotalQty + bestAsk.TotalQty
		if totalSize > 0 {
			micro := (bestBid.Price*bestAsk.TotalQty + bestAsk.Price*bestBid.TotalQty) / totalSize
			md.MicroPrice = &micro
		}
	}

	bidLevels := e.book.BidDepth(depthLevels)
	askLevels := e.book.AskDepth(depthLevels)
	md.L2Bids = toSnapshots(bidLevels)
	md.L2Asks = toSnapshots(askLevels)

	// bids_depth_N / asks_depth_N and the imbalance are cumulative size
	// over the top depthN levels, independent of how many L2 levels were
	// requested above.
	depthN := int(e.depthN)
	topBids := e.book.BidDepth(depthN)
	if len(topBids) > depthN {
		topBids = topBids[:depthN]
	}
	topAsks := e.book.AskDepth(depthN)
	if len(topAsks) > depthN {
		topAsks = topAsks[:depthN]
	}
	md.BidsDepthN = sumQty(topBids)
	md.AsksDepthN = sumQty(topAsks)

	if imbalance, ok := computeImbalance(topBids, topAsks); ok {
		md.ImbalanceN = &imbalance
	}

	if e.tradeVolumeMicro > 0 {
		vwap := e.tradeValueMicro / e.tradeVolumeMicro
		md.VWAPMicro = &vwap
	}
	if e.tradeVolumeMacro > 0 {
		vwap := e.tradeValueMacro / e.tradeVolumeMacro
		md.VWAPMacro = &vwap
	}

	e.lastTradedPrice = nil
	e.lastTradeSize = nil
	e.tradeCountMicro = 0
	e.tradeVolumeMicro = 0
	e.tradeValueMicro = 0

	return md
}

func toSnapshots(levels []*orderbook.PriceLevel) []types.PriceLevelSnapshot {
	out := make([]types.PriceLevelSnapshot, 0, len(levels))
	for _, level := range levels {
		out = append(out, types.PriceLevelSnapshot{Price: level.Price, Size: level.TotalQty, Orders: int64(level.Count())})
	}
	return out
}

func sumQty(levels []*orderbook.PriceLevel) int64 {
	var total int64
	for _, level := range levels {
		total += level.TotalQty
	}
	return total
}

func computeImbalance(bidLevels, askLevels []*orderbook.PriceLevel) (float64, bool) {
	var bidQty, askQty int64
	for _, level := range bidLevels {
		bidQty += level.TotalQty
	}
	for _, level := range askLevels {
		askQty += level.TotalQty
	}
	total := bidQty + askQty
	if total == 0 {
		return 0, false
	}
	return float64(bidQty-askQty) / float64(total), true
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

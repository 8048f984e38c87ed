package orderbook

import (
	"github.com/exiort/mas-market-laboratory/internal/types"
)

// OrderBook is the two-sided book for the single instrument this engine
// trades (see Non-goals: no multi-instrument matching, so there is no
// symbol field to key multiple books by).
//
//	                    OrderBook
//	                        │
//	       ┌────────────────┴────────────────┐
//	       │                                  │
//	    Bids (RBTree)                   Asks (RBTree)
//	    descending=true                 descending=false
//	       │                                  │
//	    PriceLevel                       PriceLevel
//	    (sorted high→low)                (sorted low→high)
//	       │                                  │
//	    OrderQueue                       OrderQueue
//	    (FIFO linked list)               (FIFO linked list)
//
// Price priority comes from the red-black tree (O(log P) insert/delete,
// O(1) best-price via cached min/max); time priority from the FIFO queue
// at each level. A side `order_id -> node` map gives O(1) cancellation.
type OrderBook struct {
	bids   *RBTree
	asks   *RBTree
	orders map[int64]*OrderNode
}

// New creates an empty order book.
func New() *OrderBook {
	return &OrderBook{
		bids:   NewRBTree(true),  // descending: best bid is the highest price
		asks:   NewRBTree(false), // ascending: best ask is the lowest price
		orders: make(map[int64]*OrderNode),
	}
}

// Add rests a LIMIT order in the book. Returns false without mutating
// state if the order fails any of the §4.3 preconditions (wrong type,
// non-positive price, not WORKING, remaining quantity out of range, a
// non-NONE end reason) or if order_id is a duplicate.
func (ob *OrderBook) Add(order *types.Order) bool {
	if order.OrderType != types.OrderTypeLimit {
		return false
	}
	if order.Price == nil || *order.Price <= 0 {
		return false
	}
	if order.Lifecycle != types.LifecycleWorking {
		return false
	}
	if order.RemainingQuantity <= 0 || order.RemainingQuantity > order.Quantity {
		return false
	}
	if order.EndReason != types.EndReasonNone {
		return false
	}
	if _, exists := ob.orders[order.OrderID]; exists {
		return false
	}

	tree := ob.treeFor(order.Side)
	price := *order.Price

	level := tree.Get(price)
	if level == nil {
		level = NewPriceLevel(price)
		tree.Insert(level)
	}

	node := level.Append(order)
	ob.orders[order.OrderID] = node
	return true
}

// Remove removes an order from the book by id and returns it, or nil if
// absent. Time complexity: O(1) for the FIFO removal, O(log P) if the
// price level becomes empty.
func (ob *OrderBook) Remove(orderID int64) *types.Order {
	node, exists := ob.orders[orderID]
	if !exists {
		return nil
	}

	order := node.Order
	level := node.level
	tree := ob.treeFor(order.Side)

	level.Remove(node)
	delete(ob.orders, orderID)

	if level.IsEmpty() {
		tree.Delete(level.Price)
	}

	return order
}

// ReduceQuantity adjusts the cached TotalQty of the price level holding
// orderID by -qty, keeping the L2 snapshot size in sync after a partial
// or final fill decrements the order's own RemainingQuantity. A no-op if
// orderID is not resident (already removed by a full fill).
func (ob *OrderBook) ReduceQuantity(orderID int64, qty int64) {
	node, exists := ob.orders[orderID]
	if !exists {
		return
	}
	node.level.UpdateQuantity(-qty)
}

// Get retrieves a resident order by id. Time complexity: O(1).
func (ob *OrderBook) Get(orderID int64) *types.Order {
	node, exists := ob.orders[orderID]
	if !exists {
		return nil
	}
	return node.Order
}

// BestBid returns the highest-priced bid level, or nil if the bid side is
// empty. Time complexity: O(1).
func (ob *OrderBook) BestBid() *PriceLevel {
	return ob.bids.Min()
}

// BestAsk returns the lowest-priced ask level, or nil if the ask side is
// empty. Time complexity: O(1).
func (ob *OrderBook) BestAsk() *PriceLevel {
	return ob.asks.Min()
}

// BestBidOrder returns the order at the head of the best bid level (the
// next maker for an incoming SELL), or nil if the bid side is empty.
func (ob *OrderBook) BestBidOrder() *types.Order {
	level := ob.BestBid()
	if level == nil {
		return nil
	}
	return level.Head().Order
}

// BestAskOrder returns the order at the head of the best ask level (the
// next maker for an incoming BUY), or nil if the ask side is empty.
func (ob *OrderBook) BestAskOrder() *types.Order {
	level := ob.BestAsk()
	if level == nil {
		return nil
	}
	return level.Head().Order
}

// BidDepth returns up to the top `levels` bid price levels, best first.
// levels <= 0 returns every level.
func (ob *OrderBook) BidDepth(levels int) []*PriceLevel {
	return ob.depth(ob.bids, levels)
}

// AskDepth returns up to the top `levels` ask price levels, best first.
// levels <= 0 returns every level.
func (ob *OrderBook) AskDepth(levels int) []*PriceLevel {
	return ob.depth(ob.asks, levels)
}

func (ob *OrderBook) depth(tree *RBTree, maxLevels int) []*PriceLevel {
	result := make([]*PriceLevel, 0)
	count := 0
	tree.ForEach(func(level *PriceLevel) bool {
		result = append(result, level)
		count++
		if maxLevels > 0 && count >= maxLevels {
			return false
		}
		return true
	})
	return result
}

// ExpireBook drains both sides of the book in FIFO queue order (bids
// best-to-worst, then asks best-to-worst) and clears all resident state.
// Callers (the CDA engine's expire_session) are responsible for releasing
// reserves and terminating each returned order.
func (ob *OrderBook) ExpireBook() (bids, asks []*types.Order) {
	ob.bids.ForEach(func(level *PriceLevel) bool {
		bids = append(bids, level.Orders()...)
		return true
	})
	ob.asks.ForEach(func(level *PriceLevel) bool {
		asks = append(asks, level.Orders()...)
		return true
	})

	ob.bids = NewRBTree(true)
	ob.asks = NewRBTree(false)
	ob.orders = make(map[int64]*OrderNode)
	return bids, asks
}

// TotalOrders returns the total number of resident orders.
func (ob *OrderBook) TotalOrders() int {
	return len(ob.orders)
}

func (ob *OrderBook) treeFor(side types.Side) *RBTree {
	if side == types.SideBuy {
		return ob.bids
	}
	return ob.asks
}

// Package orderbook implements the two-sided, price-indexed limit order
// book: a red-black tree per side for O(log P) best-price access, and a
// doubly-linked FIFO queue per price level for O(1) price-time priority
// matching and cancellation.
package orderbook

import (
	"github.com/exiort/mas-market-laboratory/internal/types"
)

// OrderNode is a node in the doubly-linked list of orders resting at a
// price level. A doubly-linked list gives O(1) removal from anywhere in
// the queue, which matters for cancellation.
type OrderNode struct {
	Order *types.Order
	prev  *OrderNode
	next  *OrderNode
	level *PriceLevel // back-pointer for O(1) removal
}

// Next returns the next node in the queue.
func (n *OrderNode) Next() *OrderNode {
	return n.next
}

// PriceLevel holds every order resting at a single price, in arrival
// order.
type PriceLevel struct {
	Price    int64
	head     *OrderNode
	tail     *OrderNode
	count    int
	TotalQty int64
}

// NewPriceLevel creates a new empty price level.
func NewPriceLevel(price int64) *PriceLevel {
	return &PriceLevel{Price: price}
}

// Count returns the number of orders at this price level.
func (pl *PriceLevel) Count() int {
	return pl.count
}

// IsEmpty returns true if there are no orders at this level.
func (pl *PriceLevel) IsEmpty() bool {
	return pl.count == 0
}

// Head returns the first order node (highest priority).
func (pl *PriceLevel) Head() *OrderNode {
	return pl.head
}

// Append adds an order to the tail of the queue (lowest priority at this
// price). Time complexity: O(1).
func (pl *PriceLevel) Append(order *types.Order) *OrderNode {
	node := &OrderNode{Order: order, level: pl}

	if pl.tail == nil {
		pl.head = node
		pl.tail = node
	} else {
		node.prev = pl.tail
		pl.tail.next = node
		pl.tail = node
	}

	pl.count++
	pl.TotalQty += order.RemainingQuantity
	return node
}

// Remove removes a node from the queue. Time complexity: O(1).
func (pl *PriceLevel) Remove(node *OrderNode) {
	if node == nil {
		return
	}

	pl.TotalQty -= node.Order.RemainingQuantity
	pl.count--

	if node.prev != nil {
		node.prev.next = node.next
	} else {
		pl.head = node.next
	}

	if node.next != nil {
		node.next.prev = node.prev
	} else {
		pl.tail = node.prev
	}

	node.prev = nil
	node.next = nil
	node.level = nil
}

// UpdateQuantity adjusts TotalQty when the head order is partially
// filled. Called by the matching engine alongside ledger settlement.
func (pl *PriceLevel) UpdateQuantity(delta int64) {
	pl.TotalQty += delta
}

// Orders returns every order at this level in arrival order. Allocates;
// used for expire_session draining.
func (pl *PriceLevel) Orders() []*types.Order {
	result := make([]*types.Order, 0, pl.count)
	for node := pl.head; node != nil; node = node.next {
		result = append(result, node.Order)
	}
	return result
}

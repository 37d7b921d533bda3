package tradeengine

import (
	"sync"

	"tradecore/internal/domain"
)

// caches holds the two write-through mirrors from spec.md §3. The engine is
// the sole mutator; strategies observe only through the callback contract.
// Both maps are engine-private, matching spec.md §5's "Caches are
// engine-private."
type caches struct {
	mu         sync.RWMutex
	liveOrders map[int64]domain.Order
	liveTrades map[int64]domain.Trade
}

func newCaches() *caches {
	return &caches{
		liveOrders: make(map[int64]domain.Order),
		liveTrades: make(map[int64]domain.Trade),
	}
}

// putOrder mirrors a persisted order row into the cache, unless it has
// reached a terminal state and its trade is gone — terminal orders are
// removed as a side effect of their trade reaching a terminal state
// (putTrade), not individually, so that an order terminating slightly ahead
// of its trade (e.g. the last leg to cancel) still observes a consistent
// mirror until the trade-level removal runs.
func (c *caches) putOrder(o domain.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, tradeLive := c.liveTrades[o.TradeID]; o.State.IsTerminal() && !tradeLive {
		return
	}
	c.liveOrders[o.OrderID] = o
}

// putTrade mirrors a persisted trade row. If the trade has reached a
// terminal state, it and every cached order belonging to it are removed
// atomically (spec.md §3's cache invariant and §8 property 3/4).
func (c *caches) putTrade(t domain.Trade) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.State.IsTerminal() {
		delete(c.liveTrades, t.TradeID)
		for id, o := range c.liveOrders {
			if o.TradeID == t.TradeID {
				delete(c.liveOrders, id)
			}
		}
		return
	}
	c.liveTrades[t.TradeID] = t
}

func (c *caches) trade(id int64) (domain.Trade, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.liveTrades[id]
	return t, ok
}

func (c *caches) order(id int64) (domain.Order, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.liveOrders[id]
	return o, ok
}

// snapshotTrades returns a copy of the live trade cache.
func (c *caches) snapshotTrades() map[int64]domain.Trade {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int64]domain.Trade, len(c.liveTrades))
	for k, v := range c.liveTrades {
		out[k] = v
	}
	return out
}

// snapshotOrders returns a copy of the live order cache.
func (c *caches) snapshotOrders() map[int64]domain.Order {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int64]domain.Order, len(c.liveOrders))
	for k, v := range c.liveOrders {
		out[k] = v
	}
	return out
}

// Package events is a lightweight pub/sub broker, adapted from the
// teacher's internal/events package, carrying order/trade lifecycle
// transitions (spec.md §7: "the log stream records every state change")
// instead of the teacher's exchange/strategy events.
package events

import (
	"sync"

	"tradecore/internal/domain"
)

// Bus is a lightweight pub/sub broker using channels.
type Bus struct {
	mu sync.RWMutex
	// publishMu serialises Publish calls so fan-out preserves the same
	// causal order persistence already guarantees (spec.md §5: "the
	// combined observable order of persisted rows for a trade respects
	// causal order of transitions") — without it, two goroutines racing
	// to publish consecutive transitions for the same trade could fan out
	// to a subscriber in the opposite order from how they were persisted.
	publishMu sync.Mutex
	subs      map[Event][]chan any
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Event][]chan any)}
}

// Subscribe registers a listener for an event and returns the channel and an unsubscribe function.
func (b *Bus) Subscribe(e Event, buffer int) (<-chan any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan any, buffer)
	b.subs[e] = append(b.subs[e], ch)

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[e]
		for i, c := range subs {
			if c == ch {
				close(c)
				b.subs[e] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}

	return ch, unsub
}

// Publish fan-outs the payload to subscribers, serialised against every
// other Publish call so the fan-out order matches call order.
func (b *Bus) Publish(e Event, payload any) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[e] {
		select {
		case ch <- payload:
		default:
			// drop if subscriber is slow; keep broker non-blocking
		}
	}
}

// PublishOrder narrows Publish to the order-lifecycle topics from spec.md
// §4.3, choosing the topic from the order's own state so callers (apply.go)
// never duplicate that mapping.
func (b *Bus) PublishOrder(o domain.Order) {
	switch o.State {
	case domain.OrderFilled:
		b.Publish(EventOrderFilled, o)
	case domain.OrderOpenFailed, domain.OrderCancelFailed:
		b.Publish(EventOrderFailed, o)
	case domain.OrderOpened:
		b.Publish(EventOrderOpened, o)
	default:
		b.Publish(EventOrderUpdate, o)
	}
}

// PublishTrade narrows Publish to the trade-lifecycle topics from spec.md
// §4.3; trade states with no dedicated topic (OPEN_PENDING, the failure
// states) are not published, matching apply.go's prior behaviour.
func (b *Bus) PublishTrade(t domain.Trade) {
	switch t.State {
	case domain.TradeOpened:
		b.Publish(EventTradeOpened, t)
	case domain.TradeClosed:
		b.Publish(EventTradeClosed, t)
	}
}

// SubscribeOrders is Subscribe narrowed to domain.Order payloads, for
// subscribers that only ever receive order events on e.
func (b *Bus) SubscribeOrders(e Event, buffer int) (<-chan domain.Order, func()) {
	raw, unsub := b.Subscribe(e, buffer)
	out := make(chan domain.Order, buffer)
	go func() {
		defer close(out)
		for payload := range raw {
			if o, ok := payload.(domain.Order); ok {
				out <- o
			}
		}
	}()
	return out, unsub
}

// SubscribeTrades is Subscribe narrowed to domain.Trade payloads, for
// subscribers that only ever receive trade events on e.
func (b *Bus) SubscribeTrades(e Event, buffer int) (<-chan domain.Trade, func()) {
	raw, unsub := b.Subscribe(e, buffer)
	out := make(chan domain.Trade, buffer)
	go func() {
		defer close(out)
		for payload := range raw {
			if t, ok := payload.(domain.Trade); ok {
				out <- t
			}
		}
	}()
	return out, unsub
}

package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradecore/internal/domain"
)

// MemClient is a deterministic in-memory Client double for tests and the
// dry-run demo (cmd/tradecore). It is not a venue adapter: it never touches
// the network. Submission is idempotent on ClientOrderID, matching the
// dedup contract in spec.md §4.4/§8 property 6 — a second CreateOrder call
// for an already-seen reference returns the first response instead of
// creating a second exchange-side order.
type MemClient struct {
	mu sync.Mutex

	// NextState is consulted, in FIFO order per symbol, to decide the
	// OrderState a CreateOrder call should report. When empty, OrderOpened
	// is reported. Tests drive the state machine by pre-loading this queue.
	NextState map[string][]domain.OrderState

	// FailNext, when set for a client order ID, makes the next call for
	// that ID return an error (ExchangeTransport), exactly once. A
	// CreateOrder replay of an already-accepted ID returns the recorded
	// response and does not consume it.
	FailNext map[string]bool

	seen map[string]Response
}

// NewMemClient builds an empty MemClient.
func NewMemClient() *MemClient {
	return &MemClient{
		NextState: make(map[string][]domain.OrderState),
		FailNext:  make(map[string]bool),
		seen:      make(map[string]Response),
	}
}

// CreateOrder implements Client.
func (c *MemClient) CreateOrder(_ context.Context, req CreateOrderRequest) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if resp, ok := c.seen[req.ClientOrderID]; ok {
		return resp, nil // idempotent replay
	}

	if c.FailNext[req.ClientOrderID] {
		delete(c.FailNext, req.ClientOrderID)
		return Response{}, fmt.Errorf("%w: memclient: simulated createOrder failure for %s", domain.ErrExchangeTransport, req.ClientOrderID)
	}

	state := domain.OrderOpened
	if q := c.NextState[req.BaseAsset+"/"+req.QuoteAsset]; len(q) > 0 {
		state, c.NextState[req.BaseAsset+"/"+req.QuoteAsset] = q[0], q[1:]
	}

	price := decimal.Zero
	if req.Price != "" {
		price, _ = decimal.NewFromString(req.Price)
	}

	resp := Response{
		OrderState:    state,
		OrderSide:     req.Side,
		OrderTmstmp:   time.Now().UTC(),
		Price:         price,
		ExtOrderRef:   "ext-" + req.ClientOrderID,
		ClientOrderID: req.ClientOrderID,
		RawData:       req,
	}
	c.seen[req.ClientOrderID] = resp
	return resp, nil
}

// CancelOrder implements Client.
func (c *MemClient) CancelOrder(_ context.Context, baseAsset, quoteAsset, clientOrderID string) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.FailNext[clientOrderID] {
		delete(c.FailNext, clientOrderID)
		return Response{}, fmt.Errorf("%w: memclient: simulated cancelOrder failure for %s", domain.ErrExchangeTransport, clientOrderID)
	}

	resp := Response{
		OrderState:    domain.OrderOpened, // ack that cancel request was accepted
		OrderTmstmp:   time.Now().UTC(),
		ExtOrderRef:   "ext-cancel-" + clientOrderID,
		ClientOrderID: clientOrderID,
	}
	return resp, nil
}

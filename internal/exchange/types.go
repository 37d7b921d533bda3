// Package exchange declares the opaque exchange client contract (spec.md
// §6) the engine submits orders through. Concrete venue adapters (REST,
// websocket) are deliberately out of scope — see spec.md §1 — this package
// only ships the contract and a deterministic in-memory test double.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradecore/internal/domain"
)

// CreateOrderRequest mirrors spec.md §6's createOrder signature. Qty/Price/
// StopPrice arrive as fixed-point strings at the symbol's precision — the
// wire format the exchange expects — not as decimal.Decimal, to keep the
// serialisation boundary explicit (spec.md §9).
type CreateOrderRequest struct {
	Side          domain.OrderSide
	Type          domain.OrderType
	BaseAsset     string
	QuoteAsset    string
	Qty           string
	StopPrice     string // empty when unset
	Price         string // empty when unset
	ClientOrderID string
}

// Response is the normalised exchange acknowledgement (spec.md §6).
type Response struct {
	OrderState    domain.OrderState
	OrderSide     domain.OrderSide
	OrderTmstmp   time.Time
	Price         decimal.Decimal // effective price, set for MARKET fills
	ExtOrderRef   string
	ClientOrderID string
	RawData       any // opaque payload kept only for logging
}

// Client is the exchange client contract from spec.md §6.
type Client interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (Response, error)
	CancelOrder(ctx context.Context, baseAsset, quoteAsset, clientOrderID string) (Response, error)
}

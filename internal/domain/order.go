package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a single exchange order belonging to a Trade. Decimal fields are
// never float64 — every quantity, price, and stop price flows through
// shopspring/decimal end to end (spec.md §9).
type Order struct {
	OrderID     int64
	TradeID     int64
	Side        OrderSide
	Type        OrderType
	Qty         decimal.Decimal
	Price       decimal.NullDecimal
	StopPrice   decimal.NullDecimal
	State       OrderState
	IntOrderRef string // stable client-generated reference, PREFIX+order_id
	ExtOrderRef string // exchange-assigned, empty until acknowledged

	InitTmstmp   time.Time
	OpenTmstmp   time.Time
	FilledTmstmp time.Time
	LstUpdTmstmp time.Time
}

// HasPrice reports whether Price is set (false for MARKET orders before
// OpenOrder adopts the candle close).
func (o Order) HasPrice() bool { return o.Price.Valid }

// HasStopPrice reports whether StopPrice is set.
func (o Order) HasStopPrice() bool { return o.StopPrice.Valid }

// Notional returns price*qty, or zero if price is unset.
func (o Order) Notional() decimal.Decimal {
	if !o.Price.Valid {
		return decimal.Zero
	}
	return o.Price.Decimal.Mul(o.Qty)
}

// Package shaper quantises order qty/price/stop_price to the exchange-legal
// grid (spec.md §4.1), snapping down.
package shaper

import (
	"context"
	"fmt"

	"tradecore/internal/domain"
	"tradecore/internal/moneymath"
	"tradecore/internal/rules"
)

// Shaper mutates orders in place to the nearest legal grid value.
type Shaper struct {
	Rules rules.Provider
}

// New builds a Shaper against the given rules provider.
func New(r rules.Provider) *Shaper {
	return &Shaper{Rules: r}
}

// Shape quantises qty, price (if set), and stop_price (if set) for every
// order against the (baseAsset, quoteAsset) symbol's rules.
func (s *Shaper) Shape(ctx context.Context, baseAsset, quoteAsset string, orders []*domain.Order) error {
	r, err := s.Rules.GetSymbolRules(ctx, baseAsset, quoteAsset)
	if err != nil {
		return fmt.Errorf("shaper: %w", err)
	}

	for _, o := range orders {
		o.Qty = moneymath.Shape(o.Qty, r.MinQty, r.MinQtyDenom)
		if o.Price.Valid {
			o.Price.Decimal = moneymath.Shape(o.Price.Decimal, r.MinPrice, r.MinPriceDenom)
		}
		if o.StopPrice.Valid {
			o.StopPrice.Decimal = moneymath.Shape(o.StopPrice.Decimal, r.MinPrice, r.MinPriceDenom)
		}
	}
	return nil
}

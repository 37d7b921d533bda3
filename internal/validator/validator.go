// Package validator runs the two independent validations from spec.md §4.2:
// structural validation against SymbolRules, and the immediate-execution
// guard against the current candle close.
package validator

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tradecore/internal/domain"
	"tradecore/internal/moneymath"
	"tradecore/internal/rules"
)

// Validator checks shaped orders against market rules and execution risk.
type Validator struct {
	Rules rules.Provider
}

// New builds a Validator against the given rules provider.
func New(r rules.Provider) *Validator {
	return &Validator{Rules: r}
}

// Structural runs the six structural predicates from spec.md §4.2 against
// every order. It returns the first violated predicate, wrapped in
// domain.ErrRuleViolation, naming it by construction (property 2, §8).
func (v *Validator) Structural(ctx context.Context, baseAsset, quoteAsset string, orders []*domain.Order) error {
	r, err := v.Rules.GetSymbolRules(ctx, baseAsset, quoteAsset)
	if err != nil {
		return fmt.Errorf("validator: %w", err)
	}

	for _, o := range orders {
		if o.Qty.LessThan(r.MinQty) {
			return fmt.Errorf("%w: qty %s below minQty %s", domain.ErrRuleViolation, o.Qty, r.MinQty)
		}
		if o.Qty.GreaterThan(r.MaxQty) {
			return fmt.Errorf("%w: qty %s above maxQty %s", domain.ErrRuleViolation, o.Qty, r.MaxQty)
		}
		if !moneymath.OnGrid(o.Qty, r.MinQty, r.MinQtyDenom) {
			return fmt.Errorf("%w: qty %s not a multiple of denom %s from minQty %s", domain.ErrRuleViolation, o.Qty, r.MinQtyDenom, r.MinQty)
		}

		if o.Price.Valid {
			if err := checkPriceBounds(o.Price.Decimal, r, "price"); err != nil {
				return err
			}
			if o.Price.Decimal.Mul(o.Qty).LessThan(r.MinNotional) {
				return fmt.Errorf("%w: notional %s below minNotional %s", domain.ErrRuleViolation, o.Price.Decimal.Mul(o.Qty), r.MinNotional)
			}
		}

		if o.StopPrice.Valid {
			if err := checkPriceBounds(o.StopPrice.Decimal, r, "stop price"); err != nil {
				return err
			}
			if o.StopPrice.Decimal.Mul(o.Qty).LessThan(r.MinNotional) {
				return fmt.Errorf("%w: stop notional %s below minNotional %s", domain.ErrRuleViolation, o.StopPrice.Decimal.Mul(o.Qty), r.MinNotional)
			}
		}
	}
	return nil
}

func checkPriceBounds(p decimal.Decimal, r domain.SymbolRules, label string) error {
	if p.LessThan(r.MinPrice) {
		return fmt.Errorf("%w: %s %s below minPrice %s", domain.ErrRuleViolation, label, p, r.MinPrice)
	}
	if p.GreaterThan(r.MaxPrice) {
		return fmt.Errorf("%w: %s %s above maxPrice %s", domain.ErrRuleViolation, label, p, r.MaxPrice)
	}
	if !moneymath.OnGrid(p, r.MinPrice, r.MinPriceDenom) {
		return fmt.Errorf("%w: %s %s not a multiple of denom %s from minPrice %s", domain.ErrRuleViolation, label, p, r.MinPriceDenom, r.MinPrice)
	}
	return nil
}

// ImmediateExecutionGuard rejects limit-style orders whose marketable side
// would cross the current candle close immediately (spec.md §4.2 table).
func (v *Validator) ImmediateExecutionGuard(close decimal.Decimal, orders []*domain.Order) error {
	for _, o := range orders {
		switch o.Side {
		case domain.SideBuy:
			switch {
			case o.Type == domain.TypeLimit && o.Price.Valid && o.Price.Decimal.GreaterThanOrEqual(close):
				return fmt.Errorf("%w: BUY LIMIT price %s >= market close %s", domain.ErrImmediateExecutionRisk, o.Price.Decimal, close)
			case o.Type.IsStopLoss() && o.StopPrice.Valid && o.StopPrice.Decimal.LessThanOrEqual(close):
				return fmt.Errorf("%w: BUY STOP_LOSS stop price %s <= market close %s", domain.ErrImmediateExecutionRisk, o.StopPrice.Decimal, close)
			case o.Type.IsTakeProfit() && o.StopPrice.Valid && o.StopPrice.Decimal.GreaterThanOrEqual(close):
				return fmt.Errorf("%w: BUY TAKE_PROFIT stop price %s >= market close %s", domain.ErrImmediateExecutionRisk, o.StopPrice.Decimal, close)
			}
		case domain.SideSell:
			switch {
			case o.Type == domain.TypeLimit && o.Price.Valid && o.Price.Decimal.LessThanOrEqual(close):
				return fmt.Errorf("%w: SELL LIMIT price %s <= market close %s", domain.ErrImmediateExecutionRisk, o.Price.Decimal, close)
			case o.Type.IsStopLoss() && o.StopPrice.Valid && o.StopPrice.Decimal.GreaterThanOrEqual(close):
				return fmt.Errorf("%w: SELL STOP_LOSS stop price %s >= market close %s", domain.ErrImmediateExecutionRisk, o.StopPrice.Decimal, close)
			case o.Type.IsTakeProfit() && o.StopPrice.Valid && o.StopPrice.Decimal.LessThanOrEqual(close):
				return fmt.Errorf("%w: SELL TAKE_PROFIT stop price %s <= market close %s", domain.ErrImmediateExecutionRisk, o.StopPrice.Decimal, close)
			}
		}
	}
	return nil
}

// Package closestrategy restores the TradeCloseStrategy.evalTradeClose
// dispatch from original_source/creten/orders/OrderManager.py as a
// first-class, polymorphic capability (spec.md §4.6, §9):
// {deriveFollowUp(trade, filled_order) -> orders[], shouldClose(trade) -> bool}.
package closestrategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradecore/internal/callback"
	"tradecore/internal/domain"
)

// Evaluator derives follow-up orders and close decisions for a filled
// order, per the trade's declared CloseType. It holds no mutable state of
// its own — everything it needs comes from its arguments — so it is safe
// to call synchronously inside processOrderUpdate's commit unit.
type Evaluator struct{}

// New builds an Evaluator.
func New() *Evaluator { return &Evaluator{} }

// DeriveFollowUp returns the orders to open in reaction to filled (an order
// that just transitioned to FILLED on trade). For CloseOnFirstFill, filling
// the entry BUY emits a single take-profit LIMIT SELL at takeProfitPrice;
// filling that exit leg emits nothing further. For TakeProfitStopLoss,
// filling the entry BUY emits a SELL take-profit/stop-loss bracket PAIR at
// takeProfitPrice/stopLossPrice; filling either bracket leg emits nothing
// (the counterpart leg is cancelled by the caller, see
// tradeengine.cancelSiblingTx). TrailingExit never emits follow-up orders;
// it only ever signals ShouldClose against an exit order the strategy
// manages itself.
func (e *Evaluator) DeriveFollowUp(closeType callback.CloseType, trade domain.Trade, filled domain.Order, takeProfitPrice, stopLossPrice decimal.Decimal) ([]*domain.Order, error) {
	switch closeType {
	case callback.TrailingExit:
		return nil, nil
	case callback.CloseOnFirstFill:
		if filled.Side != domain.SideBuy {
			return nil, nil
		}
		tp := &domain.Order{
			TradeID: trade.TradeID,
			Side:    domain.SideSell,
			Type:    domain.TypeLimit,
			Qty:     filled.Qty,
			Price:   decimal.NullDecimal{Decimal: takeProfitPrice, Valid: true},
		}
		return []*domain.Order{tp}, nil
	case callback.TakeProfitStopLoss:
		if filled.Side != domain.SideBuy {
			// a bracket leg filled, not the entry; nothing more to emit.
			return nil, nil
		}
		tp := &domain.Order{
			TradeID:   trade.TradeID,
			Side:      domain.SideSell,
			Type:      domain.TypeTakeProfitLimit,
			Qty:       filled.Qty,
			Price:     decimal.NullDecimal{Decimal: takeProfitPrice, Valid: true},
			StopPrice: decimal.NullDecimal{Decimal: takeProfitPrice, Valid: true},
		}
		sl := &domain.Order{
			TradeID:   trade.TradeID,
			Side:      domain.SideSell,
			Type:      domain.TypeStopLossLimit,
			Qty:       filled.Qty,
			Price:     decimal.NullDecimal{Decimal: stopLossPrice, Valid: true},
			StopPrice: decimal.NullDecimal{Decimal: stopLossPrice, Valid: true},
		}
		return []*domain.Order{tp, sl}, nil
	default:
		return nil, fmt.Errorf("closestrategy: unknown close type %v", closeType)
	}
}

// ShouldClose reports whether the trade is done after filled transitioned
// to FILLED, per closeType.
func (e *Evaluator) ShouldClose(closeType callback.CloseType, trade domain.Trade, filled domain.Order) (bool, error) {
	switch closeType {
	case callback.CloseOnFirstFill:
		// the entry BUY filling only opens the single exit leg; the exit
		// leg's own fill is what closes the trade.
		return filled.Side == domain.SideSell, nil
	case callback.TakeProfitStopLoss:
		// the entry BUY filling does not close the trade by itself; only a
		// bracket leg (SELL) filling does.
		return filled.Side == domain.SideSell, nil
	case callback.TrailingExit:
		// the entry BUY filling opens the position; any later SELL fill is
		// the exit.
		return filled.Side == domain.SideSell, nil
	default:
		return false, fmt.Errorf("closestrategy: unknown close type %v", closeType)
	}
}

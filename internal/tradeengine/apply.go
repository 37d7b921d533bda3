package tradeengine

import (
	"context"

	"tradecore/internal/domain"
)

// applyEffects mirrors accumulated writes into the cache, publishes
// lifecycle events, and fires strategy close notifications, strictly after
// the transaction that produced them has committed (persist-before-cache,
// spec.md §5 and §8 property 4). Order effects are applied before trade
// effects, matching the persist order from ProcessOrderUpdate.
func (e *Engine) applyEffects(ctx context.Context, eff effects) {
	for _, o := range eff.orders {
		e.cache.putOrder(o)
		e.bus.PublishOrder(o)
	}
	for _, t := range eff.trades {
		e.cache.putTrade(t)
		e.bus.PublishTrade(t)
		if t.State == domain.TradeOpened {
			e.log.Info().Int64("trade_id", t.TradeID).Str("symbol", t.Symbol()).Msg("trade OPENED")
		}
	}
	for _, cn := range eff.closeNotifications {
		e.logPnL(cn)
		strat, err := e.strategies.Strategy(cn.strategyExecID)
		if err != nil {
			e.log.Warn().Str("strategy_exec_id", cn.strategyExecID).Err(err).Msg("no strategy registered to notify of trade close")
			continue
		}
		if err := strat.TradeClosed(ctx, cn.tradeID); err != nil {
			e.log.Warn().Int64("trade_id", cn.tradeID).Err(err).Msg("strategy TradeClosed callback failed")
		}
	}
}

// logPnL logs a closed trade's realized PnL with a positive bool field so
// the ConsoleWriter.FormatExtra hook installed in cmd/tradecore/main.go can
// highlight gains/losses (green/red, the convention web3guy0-polybot's
// dashboard/terminal.go uses for take-profit/stop-loss exits) without this
// package hand-rolling any ANSI escape codes itself.
func (e *Engine) logPnL(cn closeNotification) {
	pnlStr := cn.pnl.StringFixed(cn.quoteAssetPrecision)
	e.log.Info().
		Int64("trade_id", cn.tradeID).
		Str("pnl", pnlStr).
		Str("strategy_exec_id", cn.strategyExecID).
		Bool("positive", !cn.pnl.IsNegative()).
		Msgf("trade %d closed", cn.tradeID)
}

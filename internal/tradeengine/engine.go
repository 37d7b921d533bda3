// Package tradeengine is the order/trade lifecycle engine (spec.md §3-§5):
// the single mutator of trade and order state, wired to a Repository, an
// exchange Client, a rules Provider, a Shaper, a Validator, a close-strategy
// Evaluator, a strategy callback Registry, and an event Bus.
package tradeengine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"tradecore/internal/callback"
	"tradecore/internal/closestrategy"
	"tradecore/internal/domain"
	"tradecore/internal/events"
	"tradecore/internal/exchange"
	"tradecore/internal/repository"
	"tradecore/internal/rules"
	"tradecore/internal/shaper"
	"tradecore/internal/tcconfig"
	"tradecore/internal/validator"
)

// Engine composes every collaborator named in spec.md §6 and owns the two
// live caches from §3. It is the only component allowed to mutate trade or
// order state.
type Engine struct {
	repo       repository.Repository
	exchange   exchange.Client
	rules      rules.Provider
	shaper     *shaper.Shaper
	validator  *validator.Validator
	closeEval  *closestrategy.Evaluator
	strategies callback.Registry
	bus        *events.Bus
	cfg        *tcconfig.Config
	cache      *caches
	log        zerolog.Logger
}

// Deps bundles the Engine's collaborators for New.
type Deps struct {
	Repo       repository.Repository
	Exchange   exchange.Client
	Rules      rules.Provider
	Shaper     *shaper.Shaper
	Validator  *validator.Validator
	CloseEval  *closestrategy.Evaluator
	Strategies callback.Registry
	Bus        *events.Bus
	Config     *tcconfig.Config
	Logger     zerolog.Logger
}

// New builds an Engine from its collaborators.
func New(d Deps) *Engine {
	return &Engine{
		repo:       d.Repo,
		exchange:   d.Exchange,
		rules:      d.Rules,
		shaper:     d.Shaper,
		validator:  d.Validator,
		closeEval:  d.CloseEval,
		strategies: d.Strategies,
		bus:        d.Bus,
		cfg:        d.Config,
		cache:      newCaches(),
		log:        d.Logger,
	}
}

// LiveTrades returns a snapshot of the live trade cache.
func (e *Engine) LiveTrades() map[int64]domain.Trade { return e.cache.snapshotTrades() }

// LiveOrders returns a snapshot of the live order cache.
func (e *Engine) LiveOrders() map[int64]domain.Order { return e.cache.snapshotOrders() }

// LiveTrade returns a single cached trade by id, if it is still live.
func (e *Engine) LiveTrade(tradeID int64) (domain.Trade, bool) { return e.cache.trade(tradeID) }

// LiveOrder returns a single cached order by id, if it is still live.
func (e *Engine) LiveOrder(orderID int64) (domain.Order, bool) { return e.cache.order(orderID) }

// OpenTrade inserts a new trade in OPEN_PENDING (spec.md §4.4) and mirrors
// it into the cache.
func (e *Engine) OpenTrade(ctx context.Context, strategyExecID string, tradeType domain.TradeType, candle domain.Candle) (domain.Trade, error) {
	trade := domain.Trade{
		StrategyExecID: strategyExecID,
		BaseAsset:      candle.BaseAsset,
		QuoteAsset:     candle.QuoteAsset,
		Type:           tradeType,
		State:          domain.TradeOpenPending,
		InitTmstmp:     candle.CloseTime,
	}

	var eff effects
	err := e.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		if err := tx.AddTrade(ctx, &trade); err != nil {
			return fmt.Errorf("engine: openTrade: %w", err)
		}
		eff.trades = append(eff.trades, trade)
		return nil
	})
	if err != nil {
		return domain.Trade{}, err
	}
	e.applyEffects(ctx, eff)
	e.log.Info().Int64("trade_id", trade.TradeID).Str("symbol", trade.Symbol()).Str("type", trade.Type.String()).Msg("trade OPEN_PENDING")
	return trade, nil
}

// OpenOrder shapes, validates, and guards orders against the candle close,
// then persists them against trade in OPEN_PENDING_INT, writing each
// order's assigned OrderID and IntOrderRef back into the passed slice. It
// is one commit unit (spec.md §5): a validation or shaping failure aborts
// before any row is written.
func (e *Engine) OpenOrder(ctx context.Context, trade domain.Trade, candle domain.Candle, orders []*domain.Order) error {
	var eff effects
	err := e.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		return e.openOrderTx(ctx, tx, &eff, trade, candle, orders)
	})
	if err != nil {
		return err
	}
	e.applyEffects(ctx, eff)
	return nil
}

// openOrderTx is the transaction-scoped body shared by OpenOrder and the
// follow-up-order path inside processOrderUpdate's FILLED branch; it must
// never open its own transaction (sqlite3 serialises one writer per
// connection, and a nested WithinTx on the same connection deadlocks).
func (e *Engine) openOrderTx(ctx context.Context, tx repository.Repository, eff *effects, trade domain.Trade, candle domain.Candle, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	if e.cfg.ShapeNewOrders {
		if err := e.shaper.Shape(ctx, candle.BaseAsset, candle.QuoteAsset, orders); err != nil {
			return fmt.Errorf("engine: openOrder: %w", err)
		}
	}
	if e.cfg.ValidateOrders {
		if err := e.validator.Structural(ctx, candle.BaseAsset, candle.QuoteAsset, orders); err != nil {
			return fmt.Errorf("engine: openOrder: %w", err)
		}
	}
	if e.cfg.PreventImmediateLimitOrder {
		if err := e.validator.ImmediateExecutionGuard(candle.Close, orders); err != nil {
			return fmt.Errorf("engine: openOrder: %w", err)
		}
	}

	for _, o := range orders {
		o.TradeID = trade.TradeID
		o.State = domain.OrderOpenPendingInt
		o.InitTmstmp = candle.CloseTime
		if o.Type.IsMarket() {
			o.Price = decimal.NullDecimal{Decimal: candle.Close, Valid: true}
		}

		if err := tx.AddOrder(ctx, o); err != nil {
			return fmt.Errorf("engine: openOrder: persist: %w", err)
		}
		o.IntOrderRef = e.cfg.OrderReferencePrefix + strconv.FormatInt(o.OrderID, 10)
		if err := tx.SaveOrder(ctx, *o); err != nil {
			return fmt.Errorf("engine: openOrder: persist reference: %w", err)
		}
		eff.orders = append(eff.orders, *o)
	}
	return nil
}

// SendOrders drains every OPEN_PENDING_INT/CANCEL_PENDING_INT order for
// strategyExecID, in ascending order_id (spec.md §9's open question:
// submission order is the insertion order), and submits each to the
// exchange client. It stops and returns on the first failure, leaving
// later orders untouched for the next call (spec.md §8 S5).
func (e *Engine) SendOrders(ctx context.Context, strategyExecID string) error {
	pending, err := e.repo.GetAllOrders(ctx, repository.OrderFilter{
		StrategyExecID: strategyExecID,
		States:         []domain.OrderState{domain.OrderOpenPendingInt, domain.OrderCancelPendingInt},
	})
	if err != nil {
		return fmt.Errorf("engine: sendOrders: list pending: %w", err)
	}

	for _, o := range pending {
		if err := e.sendOneOrder(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

// sendOneOrder submits a single queued order. Each branch persists exactly
// one row (the queued order's terminal-on-failure or next-pending-on-
// success state) as a single statement — no multi-row commit unit is
// needed here since sendOrders never touches the trade row.
func (e *Engine) sendOneOrder(ctx context.Context, o domain.Order) error {
	trade, err := e.repo.GetTrade(ctx, o.TradeID)
	if err != nil {
		return fmt.Errorf("engine: sendOrders: load trade: %w", err)
	}
	symRules, err := e.rules.GetSymbolRules(ctx, trade.BaseAsset, trade.QuoteAsset)
	if err != nil {
		return fmt.Errorf("engine: sendOrders: %w", err)
	}

	switch o.State {
	case domain.OrderOpenPendingInt:
		return e.submitOpen(ctx, o, trade, symRules)
	case domain.OrderCancelPendingInt:
		return e.submitCancel(ctx, o, trade)
	default:
		return fmt.Errorf("%w: sendOrders encountered order %d in unsupported state %s", domain.ErrProgramming, o.OrderID, o.State)
	}
}

func (e *Engine) submitOpen(ctx context.Context, o domain.Order, trade domain.Trade, r domain.SymbolRules) error {
	req := exchange.CreateOrderRequest{
		Side:          o.Side,
		Type:          o.Type,
		BaseAsset:     trade.BaseAsset,
		QuoteAsset:    trade.QuoteAsset,
		Qty:           o.Qty.StringFixed(r.BaseAssetPrecision),
		ClientOrderID: o.IntOrderRef,
	}
	if o.Price.Valid {
		req.Price = o.Price.Decimal.StringFixed(r.QuoteAssetPrecision)
	}
	if o.StopPrice.Valid {
		req.StopPrice = o.StopPrice.Decimal.StringFixed(r.QuoteAssetPrecision)
	}

	resp, callErr := e.exchange.CreateOrder(ctx, req)
	if callErr != nil {
		return e.failOrder(ctx, o, domain.OrderOpenFailed, fmt.Errorf("%w: %v", domain.ErrExchangeTransport, callErr))
	}
	if resp.OrderState != domain.OrderOpened && resp.OrderState != domain.OrderFilled {
		return e.failOrder(ctx, o, domain.OrderOpenFailed, fmt.Errorf("%w: expected OPENED or FILLED ack, got %s", domain.ErrExchangeRejection, resp.OrderState))
	}

	if o.Type.IsMarket() {
		o.Price = decimal.NullDecimal{Decimal: resp.Price, Valid: true}
	}
	if !domain.CanTransitionOrder(o.State, domain.OrderOpenPendingExt) {
		return fmt.Errorf("%w: order %d cannot move from %s to %s", domain.ErrProgramming, o.OrderID, o.State, domain.OrderOpenPendingExt)
	}
	o.ExtOrderRef = resp.ExtOrderRef
	o.State = domain.OrderOpenPendingExt
	o.LstUpdTmstmp = resp.OrderTmstmp
	if err := e.repo.SaveOrder(ctx, o); err != nil {
		return fmt.Errorf("engine: sendOrders: persist OPEN_PENDING_EXT: %w", err)
	}
	e.cache.putOrder(o)
	e.bus.PublishOrder(o)
	e.log.Info().Int64("order_id", o.OrderID).Str("ext_order_ref", o.ExtOrderRef).Msg("order OPEN_PENDING_EXT")
	return nil
}

func (e *Engine) submitCancel(ctx context.Context, o domain.Order, trade domain.Trade) error {
	resp, callErr := e.exchange.CancelOrder(ctx, trade.BaseAsset, trade.QuoteAsset, o.IntOrderRef)
	if callErr != nil {
		return e.failOrder(ctx, o, domain.OrderCancelFailed, fmt.Errorf("%w: %v", domain.ErrExchangeTransport, callErr))
	}
	if resp.OrderState != domain.OrderOpened {
		return e.failOrder(ctx, o, domain.OrderCancelFailed, fmt.Errorf("%w: expected OPENED ack, got %s", domain.ErrExchangeRejection, resp.OrderState))
	}

	if !domain.CanTransitionOrder(o.State, domain.OrderCancelPendingExt) {
		return fmt.Errorf("%w: order %d cannot move from %s to %s", domain.ErrProgramming, o.OrderID, o.State, domain.OrderCancelPendingExt)
	}
	o.ExtOrderRef = resp.ExtOrderRef
	o.State = domain.OrderCancelPendingExt
	o.LstUpdTmstmp = resp.OrderTmstmp
	if err := e.repo.SaveOrder(ctx, o); err != nil {
		return fmt.Errorf("engine: sendOrders: persist CANCEL_PENDING_EXT: %w", err)
	}
	e.cache.putOrder(o)
	e.bus.PublishOrder(o)
	return nil
}

// failOrder persists the terminal failure state for o and re-raises cause,
// so the caller's original error (exchange transport failure or rejection)
// still reaches SendOrders's caller (spec.md §8 S5: the failure is
// observable and the order row carries it).
func (e *Engine) failOrder(ctx context.Context, o domain.Order, failState domain.OrderState, cause error) error {
	if !domain.CanTransitionOrder(o.State, failState) {
		return fmt.Errorf("%w: order %d cannot move from %s to %s (after: %v)", domain.ErrProgramming, o.OrderID, o.State, failState, cause)
	}
	o.State = failState
	o.LstUpdTmstmp = time.Now().UTC()
	if err := e.repo.SaveOrder(ctx, o); err != nil {
		return fmt.Errorf("engine: sendOrders: persist %s after %v: %w", failState, cause, err)
	}
	e.cache.putOrder(o)
	e.bus.PublishOrder(o)
	e.log.Error().Int64("order_id", o.OrderID).Err(cause).Msg("order submission failed")
	return cause
}

// ProcessOrderUpdate applies an exchange update to the order it identifies
// and its owning trade, as one commit unit (spec.md §4.3, §5): it persists
// the order, then the trade. A SHORT trade is rejected with
// ErrUnsupportedTradeType before anything is persisted (spec.md §8 S6).
func (e *Engine) ProcessOrderUpdate(ctx context.Context, resp exchange.Response) error {
	order, err := e.repo.GetOrder(ctx, resp.ClientOrderID)
	if err != nil {
		return fmt.Errorf("engine: processOrderUpdate: load order: %w", err)
	}
	trade, err := e.repo.GetTrade(ctx, order.TradeID)
	if err != nil {
		return fmt.Errorf("engine: processOrderUpdate: load trade: %w", err)
	}
	if trade.Type != domain.TradeLong {
		return fmt.Errorf("%w: trade %d has type %s", domain.ErrUnsupportedTradeType, trade.TradeID, trade.Type)
	}

	if !domain.CanTransitionOrder(order.State, resp.OrderState) {
		return fmt.Errorf("%w: order %d cannot move from %s to %s", domain.ErrProgramming, order.OrderID, order.State, resp.OrderState)
	}
	if order.State == resp.OrderState {
		// re-entry into an already-reached state is a no-op
		return nil
	}
	order.State = resp.OrderState
	order.LstUpdTmstmp = time.Now().UTC()
	if resp.OrderState == domain.OrderOpened {
		order.OpenTmstmp = resp.OrderTmstmp
	}
	if resp.OrderState == domain.OrderFilled {
		order.FilledTmstmp = resp.OrderTmstmp
	}
	if resp.ExtOrderRef != "" {
		order.ExtOrderRef = resp.ExtOrderRef
	}

	var eff effects
	err = e.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		if err := tx.SaveOrder(ctx, order); err != nil {
			return fmt.Errorf("engine: processOrderUpdate: persist order: %w", err)
		}
		eff.orders = append(eff.orders, order)

		switch {
		case resp.OrderSide == domain.SideBuy && resp.OrderState == domain.OrderOpened && trade.State == domain.TradeOpenPending:
			if !domain.CanTransitionTrade(trade.State, domain.TradeOpened) {
				return fmt.Errorf("%w: trade %d cannot move from %s to %s", domain.ErrProgramming, trade.TradeID, trade.State, domain.TradeOpened)
			}
			trade.State = domain.TradeOpened
			trade.OpenTmstmp = resp.OrderTmstmp

		case resp.OrderState == domain.OrderCanceled || resp.OrderState == domain.OrderRejected || resp.OrderState == domain.OrderExpired:
			pending, err := tx.GetPendingOrders(ctx, trade.TradeID)
			if err != nil {
				return fmt.Errorf("engine: processOrderUpdate: list pending: %w", err)
			}
			if len(pending) == 0 {
				if err := e.closeTradeTx(ctx, tx, &eff, &trade, resp.OrderTmstmp); err != nil {
					return err
				}
			}

		case resp.OrderState == domain.OrderFilled:
			if err := e.handleFillTx(ctx, tx, &eff, &trade, order, resp); err != nil {
				return err
			}
		}

		if err := tx.SaveTrade(ctx, trade); err != nil {
			return fmt.Errorf("engine: processOrderUpdate: persist trade: %w", err)
		}
		eff.trades = append(eff.trades, trade)
		return nil
	})
	if err != nil {
		return err
	}
	e.applyEffects(ctx, eff)
	return nil
}

// handleFillTx runs the close-strategy evaluator against a just-filled
// order: it may open follow-up orders (TAKE_PROFIT_STOP_LOSS's bracket
// pair), cancel a sibling bracket leg, and/or close the trade.
func (e *Engine) handleFillTx(ctx context.Context, tx repository.Repository, eff *effects, trade *domain.Trade, filled domain.Order, resp exchange.Response) error {
	strat, err := e.strategies.Strategy(trade.StrategyExecID)
	if err != nil {
		return fmt.Errorf("engine: processOrderUpdate: resolve strategy: %w", err)
	}
	closeType, err := strat.GetTradeCloseType(ctx, trade.StrategyExecID)
	if err != nil {
		return fmt.Errorf("engine: processOrderUpdate: get close type: %w", err)
	}

	if filled.Price.Valid {
		tp := filled.Price.Decimal.Mul(decimal.NewFromInt(1).Add(e.cfg.TakeProfitPct))
		sl := filled.Price.Decimal.Mul(decimal.NewFromInt(1).Sub(e.cfg.StopLossPct))

		followUps, err := e.closeEval.DeriveFollowUp(closeType, *trade, filled, tp, sl)
		if err != nil {
			return fmt.Errorf("engine: processOrderUpdate: %w", err)
		}
		if len(followUps) > 0 {
			candle := domain.Candle{
				BaseAsset:  trade.BaseAsset,
				QuoteAsset: trade.QuoteAsset,
				Close:      filled.Price.Decimal,
				CloseTime:  resp.OrderTmstmp,
			}
			if err := e.openOrderTx(ctx, tx, eff, *trade, candle, followUps); err != nil {
				return err
			}
		}
	}

	if closeType == callback.TakeProfitStopLoss && filled.Side == domain.SideSell {
		if err := e.cancelSiblingTx(ctx, tx, eff, trade.TradeID, filled.OrderID); err != nil {
			return err
		}
	}

	shouldClose, err := e.closeEval.ShouldClose(closeType, *trade, filled)
	if err != nil {
		return fmt.Errorf("engine: processOrderUpdate: %w", err)
	}
	if shouldClose {
		if err := e.closeTradeTx(ctx, tx, eff, trade, resp.OrderTmstmp); err != nil {
			return err
		}
	}
	return nil
}

// cancelSiblingTx queues the other leg of a TAKE_PROFIT_STOP_LOSS bracket
// for cancellation once one leg has filled (SPEC_FULL §4.6 enrichment: the
// Python original leaves the sibling dangling, which this cancels instead).
func (e *Engine) cancelSiblingTx(ctx context.Context, tx repository.Repository, eff *effects, tradeID, filledOrderID int64) error {
	pending, err := tx.GetPendingOrders(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("engine: processOrderUpdate: list pending for bracket cancel: %w", err)
	}
	for _, sibling := range pending {
		if sibling.OrderID == filledOrderID || sibling.Side != domain.SideSell {
			continue
		}
		// A sibling still in OPEN_PENDING_INT has not been submitted yet, so
		// it cannot legally move to CANCEL_PENDING_INT; it is skipped rather
		// than treated as a programming error, and stays queued for
		// submission. Nothing later queues it for cancellation.
		if !domain.CanTransitionOrder(sibling.State, domain.OrderCancelPendingInt) {
			continue
		}
		sibling.State = domain.OrderCancelPendingInt
		sibling.LstUpdTmstmp = time.Now().UTC()
		if err := tx.SaveOrder(ctx, sibling); err != nil {
			return fmt.Errorf("engine: processOrderUpdate: queue bracket cancel: %w", err)
		}
		eff.orders = append(eff.orders, sibling)
	}
	return nil
}

// CloseTrade closes trade directly (a manual or externally-triggered
// close), as its own commit unit.
func (e *Engine) CloseTrade(ctx context.Context, tradeID int64, tmstmp time.Time) error {
	var eff effects
	err := e.repo.WithinTx(ctx, func(ctx context.Context, tx repository.Repository) error {
		trade, err := tx.GetTrade(ctx, tradeID)
		if err != nil {
			return fmt.Errorf("engine: closeTrade: load trade: %w", err)
		}
		if err := e.closeTradeTx(ctx, tx, &eff, &trade, tmstmp); err != nil {
			return err
		}
		if err := tx.SaveTrade(ctx, trade); err != nil {
			return fmt.Errorf("engine: closeTrade: persist trade: %w", err)
		}
		eff.trades = append(eff.trades, trade)
		return nil
	})
	if err != nil {
		return err
	}
	e.applyEffects(ctx, eff)
	return nil
}

// closeTradeTx mutates trade to CLOSED and records the close notification
// (PnL + strategy callback) to be fired once the transaction commits. It
// does not itself persist trade — the caller does exactly one SaveTrade,
// whatever branch reached CLOSED.
func (e *Engine) closeTradeTx(ctx context.Context, tx repository.Repository, eff *effects, trade *domain.Trade, tmstmp time.Time) error {
	if !domain.CanTransitionTrade(trade.State, domain.TradeClosed) {
		return fmt.Errorf("%w: trade %d cannot move from %s to %s", domain.ErrProgramming, trade.TradeID, trade.State, domain.TradeClosed)
	}
	trade.State = domain.TradeClosed
	trade.CloseTmstmp = tmstmp

	pnl, precision, err := e.computePnL(ctx, tx, *trade)
	if err != nil {
		return err
	}
	eff.closeNotifications = append(eff.closeNotifications, closeNotification{
		strategyExecID:      trade.StrategyExecID,
		tradeID:             trade.TradeID,
		pnl:                 pnl,
		quoteAssetPrecision: precision,
	})
	return nil
}

// computePnL sums FILLED SELL notional minus FILLED BUY notional
// (original_source/creten/orders/OrderManager.py's _calcTradePerf).
func (e *Engine) computePnL(ctx context.Context, tx repository.Repository, trade domain.Trade) (decimal.Decimal, int32, error) {
	filled, err := tx.GetAllOrders(ctx, repository.OrderFilter{
		TradeID:    trade.TradeID,
		HasTradeID: true,
		States:     []domain.OrderState{domain.OrderFilled},
	})
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("engine: computePnL: %w", err)
	}
	r, err := e.rules.GetSymbolRules(ctx, trade.BaseAsset, trade.QuoteAsset)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("engine: computePnL: %w", err)
	}

	buy, sell := decimal.Zero, decimal.Zero
	for _, o := range filled {
		if !o.Price.Valid {
			continue
		}
		notional := o.Qty.Mul(o.Price.Decimal)
		if o.Side == domain.SideBuy {
			buy = buy.Add(notional)
		} else {
			sell = sell.Add(notional)
		}
	}
	return sell.Sub(buy), r.QuoteAssetPrecision, nil
}

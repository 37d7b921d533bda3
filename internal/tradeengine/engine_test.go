package tradeengine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

// stubStrategy is a minimal callback.Strategy double that records every
// trade it is notified closed.
type stubStrategy struct {
	closeType callback.CloseType
	closed    []int64
}

func (s *stubStrategy) TradeClosed(_ context.Context, tradeID int64) error {
	s.closed = append(s.closed, tradeID)
	return nil
}

func (s *stubStrategy) GetTradeCloseType(_ context.Context, _ string) (callback.CloseType, error) {
	return s.closeType, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// testRig bundles an Engine with the collaborators a test needs direct
// access to, against the scenario rules from spec.md §8 (minQty=0.1,
// minQtyDenom=0.1, minPrice=1, minPriceDenom=0.5, minNotional=10, precision=2).
type testRig struct {
	engine   *Engine
	repo     *repository.SQLiteRepository
	mem      *exchange.MemClient
	strategy *stubStrategy
}

func newTestRig(t *testing.T, execID string, closeType callback.CloseType, takeProfitPct, stopLossPct decimal.Decimal) *testRig {
	t.Helper()

	db, err := repository.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := repository.NewSQLiteRepository(db)

	rp := rules.NewStaticProvider()
	rp.Register("BASE", "QUOTE", domain.SymbolRules{
		MinQty:              dec("0.1"),
		MaxQty:              dec("1000000"),
		MinQtyDenom:         dec("0.1"),
		MinPrice:            dec("1"),
		MaxPrice:            dec("1000000"),
		MinPriceDenom:       dec("0.5"),
		MinNotional:         dec("10"),
		BaseAssetPrecision:  2,
		QuoteAssetPrecision: 2,
	})

	mem := exchange.NewMemClient()
	strat := &stubStrategy{closeType: closeType}
	reg := callback.NewMapRegistry()
	reg.Register(execID, strat)

	eng := New(Deps{
		Repo:       repo,
		Exchange:   mem,
		Rules:      rp,
		Shaper:     shaper.New(rp),
		Validator:  validator.New(rp),
		CloseEval:  closestrategy.New(),
		Strategies: reg,
		Bus:        events.NewBus(),
		Config: &tcconfig.Config{
			ShapeNewOrders:             true,
			ValidateOrders:             true,
			PreventImmediateLimitOrder: true,
			OrderReferencePrefix:       "TC-",
			TakeProfitPct:              takeProfitPct,
			StopLossPct:                stopLossPct,
		},
		Logger: zerolog.Nop(),
	})

	return &testRig{engine: eng, repo: repo, mem: mem, strategy: strat}
}

// TestScenario_S3_FullHappyPath reproduces spec.md §8 S3: entry fills,
// a single take-profit exit is derived, the exit fills, and PnL is +20.
func TestScenario_S3_FullHappyPath(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// filled.Price(50) * (1+0.4) = 70, matching S3's target exit price.
	rig := newTestRig(t, "exec-s3", callback.CloseOnFirstFill, dec("0.4"), dec("0"))
	e := rig.engine

	candle := domain.Candle{BaseAsset: "BASE", QuoteAsset: "QUOTE", Close: dec("60"), CloseTime: t0}
	trade, err := e.OpenTrade(ctx, "exec-s3", domain.TradeLong, candle)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeOpenPending, trade.State)

	entry := &domain.Order{Side: domain.SideBuy, Type: domain.TypeLimit, Qty: dec("1"), Price: decimal.NullDecimal{Decimal: dec("50"), Valid: true}}
	require.NoError(t, e.OpenOrder(ctx, trade, candle, []*domain.Order{entry}))
	require.Equal(t, int64(1), entry.OrderID)
	assert.Equal(t, "TC-1", entry.IntOrderRef)
	assert.Equal(t, domain.OrderOpenPendingInt, entry.State)

	liveEntry, ok := e.LiveOrder(entry.OrderID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderOpenPendingInt, liveEntry.State)
	liveTrade, ok := e.LiveTrade(trade.TradeID)
	require.True(t, ok)
	assert.Equal(t, domain.TradeOpenPending, liveTrade.State)

	require.NoError(t, e.SendOrders(ctx, "exec-s3"))
	stored, err := rig.repo.GetOrder(ctx, entry.IntOrderRef)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderOpenPendingExt, stored.State)

	t1 := t0.Add(time.Second)
	require.NoError(t, e.ProcessOrderUpdate(ctx, exchange.Response{
		ClientOrderID: entry.IntOrderRef, OrderState: domain.OrderOpened, OrderSide: domain.SideBuy, OrderTmstmp: t1,
	}))
	openedTrade, err := rig.repo.GetTrade(ctx, trade.TradeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeOpened, openedTrade.State)

	t2 := t0.Add(2 * time.Second)
	require.NoError(t, e.ProcessOrderUpdate(ctx, exchange.Response{
		ClientOrderID: entry.IntOrderRef, OrderState: domain.OrderFilled, OrderSide: domain.SideBuy, OrderTmstmp: t2,
	}))

	allOrders, err := rig.repo.GetAllOrders(ctx, repository.OrderFilter{TradeID: trade.TradeID, HasTradeID: true})
	require.NoError(t, err)
	require.Len(t, allOrders, 2, "entry fill must derive exactly one take-profit exit order")

	var exit domain.Order
	for _, o := range allOrders {
		if o.Side == domain.SideSell {
			exit = o
		}
	}
	require.NotZero(t, exit.OrderID)
	assert.True(t, exit.Price.Decimal.Equal(dec("70")), "exit price must equal S3's target of 70")
	assert.Equal(t, domain.OrderOpenPendingInt, exit.State)

	require.NoError(t, e.SendOrders(ctx, "exec-s3"))
	stillOpenTrade, err := rig.repo.GetTrade(ctx, trade.TradeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeOpened, stillOpenTrade.State, "trade stays open until the exit leg fills")

	t3 := t0.Add(3 * time.Second)
	require.NoError(t, e.ProcessOrderUpdate(ctx, exchange.Response{
		ClientOrderID: exit.IntOrderRef, OrderState: domain.OrderFilled, OrderSide: domain.SideSell, OrderTmstmp: t3,
	}))

	closed, err := rig.repo.GetTrade(ctx, trade.TradeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeClosed, closed.State)
	assert.True(t, closed.CloseTmstmp.Equal(t3))
	assert.Contains(t, rig.strategy.closed, trade.TradeID)

	pnl, _, err := e.computePnL(ctx, rig.repo, closed)
	require.NoError(t, err)
	assert.True(t, pnl.Equal(dec("20")), "S3 expects PnL of +20, got %s", pnl)

	// Cache mirror: a terminal trade and its orders are gone (spec.md §8
	// property 3/4); persistence is unaffected.
	_, stillLive := e.LiveTrades()[trade.TradeID]
	assert.False(t, stillLive)
	for id := range e.LiveOrders() {
		assert.NotEqual(t, entry.OrderID, id)
		assert.NotEqual(t, exit.OrderID, id)
	}
	_, ok = e.LiveTrade(trade.TradeID)
	assert.False(t, ok)
	_, ok = e.LiveOrder(entry.OrderID)
	assert.False(t, ok)
}

// TestScenario_S4_CancellationClosesTrade reproduces spec.md §8 S4: once a
// trade is OPENED, its only remaining order reporting CANCELED (with no
// other pending orders) closes the trade at that update's timestamp.
func TestScenario_S4_CancellationClosesTrade(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rig := newTestRig(t, "exec-s4", callback.CloseOnFirstFill, dec("0.1"), dec("0.05"))
	e := rig.engine

	candle := domain.Candle{BaseAsset: "BASE", QuoteAsset: "QUOTE", Close: dec("60"), CloseTime: t0}
	trade, err := e.OpenTrade(ctx, "exec-s4", domain.TradeLong, candle)
	require.NoError(t, err)

	entry := &domain.Order{Side: domain.SideBuy, Type: domain.TypeLimit, Qty: dec("1"), Price: decimal.NullDecimal{Decimal: dec("50"), Valid: true}}
	require.NoError(t, e.OpenOrder(ctx, trade, candle, []*domain.Order{entry}))
	require.NoError(t, e.SendOrders(ctx, "exec-s4"))

	require.NoError(t, e.ProcessOrderUpdate(ctx, exchange.Response{
		ClientOrderID: entry.IntOrderRef, OrderState: domain.OrderOpened, OrderSide: domain.SideBuy, OrderTmstmp: t0.Add(time.Second),
	}))

	tCancel := t0.Add(2 * time.Second)
	require.NoError(t, e.ProcessOrderUpdate(ctx, exchange.Response{
		ClientOrderID: entry.IntOrderRef, OrderState: domain.OrderCanceled, OrderSide: domain.SideBuy, OrderTmstmp: tCancel,
	}))

	closed, err := rig.repo.GetTrade(ctx, trade.TradeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeClosed, closed.State)
	assert.True(t, closed.CloseTmstmp.Equal(tCancel))
}

// TestScenario_S5_SubmissionFailure reproduces spec.md §8 S5: a failing
// createOrder call advances the order to OPEN_FAILED, surfaces the error,
// and leaves the trade row untouched.
func TestScenario_S5_SubmissionFailure(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rig := newTestRig(t, "exec-s5", callback.CloseOnFirstFill, dec("0.1"), dec("0.05"))
	e := rig.engine

	candle := domain.Candle{BaseAsset: "BASE", QuoteAsset: "QUOTE", Close: dec("60"), CloseTime: t0}
	trade, err := e.OpenTrade(ctx, "exec-s5", domain.TradeLong, candle)
	require.NoError(t, err)

	entry := &domain.Order{Side: domain.SideBuy, Type: domain.TypeLimit, Qty: dec("1"), Price: decimal.NullDecimal{Decimal: dec("50"), Valid: true}}
	require.NoError(t, e.OpenOrder(ctx, trade, candle, []*domain.Order{entry}))

	rig.mem.FailNext[entry.IntOrderRef] = true
	err = e.SendOrders(ctx, "exec-s5")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExchangeTransport)

	stored, getErr := rig.repo.GetOrder(ctx, entry.IntOrderRef)
	require.NoError(t, getErr)
	assert.Equal(t, domain.OrderOpenFailed, stored.State)

	untouched, getErr := rig.repo.GetTrade(ctx, trade.TradeID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.TradeOpenPending, untouched.State, "no other rows are mutated on submission failure")
}

// TestScenario_S6_ShortTradeRejected reproduces spec.md §8 S6: a SHORT
// trade's update is rejected before anything is persisted.
func TestScenario_S6_ShortTradeRejected(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rig := newTestRig(t, "exec-s6", callback.CloseOnFirstFill, dec("0.1"), dec("0.05"))
	e := rig.engine

	candle := domain.Candle{BaseAsset: "BASE", QuoteAsset: "QUOTE", Close: dec("60"), CloseTime: t0}
	trade, err := e.OpenTrade(ctx, "exec-s6", domain.TradeShort, candle)
	require.NoError(t, err)

	entry := &domain.Order{Side: domain.SideBuy, Type: domain.TypeLimit, Qty: dec("1"), Price: decimal.NullDecimal{Decimal: dec("50"), Valid: true}}
	require.NoError(t, e.OpenOrder(ctx, trade, candle, []*domain.Order{entry}))
	require.NoError(t, e.SendOrders(ctx, "exec-s6"))

	preUpdate, err := rig.repo.GetOrder(ctx, entry.IntOrderRef)
	require.NoError(t, err)
	require.Equal(t, domain.OrderOpenPendingExt, preUpdate.State)

	err = e.ProcessOrderUpdate(ctx, exchange.Response{
		ClientOrderID: entry.IntOrderRef, OrderState: domain.OrderOpened, OrderSide: domain.SideBuy, OrderTmstmp: t0.Add(time.Second),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnsupportedTradeType)

	postUpdate, err := rig.repo.GetOrder(ctx, entry.IntOrderRef)
	require.NoError(t, err)
	assert.Equal(t, preUpdate.State, postUpdate.State, "order row update from step 1 is not committed")
}

// TestTakeProfitStopLoss_FillingOneLegCancelsTheOther covers the bracket
// enrichment in SPEC_FULL §4.6: once either TP/SL leg fills, the sibling
// leg is queued for cancellation instead of left dangling.
func TestTakeProfitStopLoss_FillingOneLegCancelsTheOther(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rig := newTestRig(t, "exec-bracket", callback.TakeProfitStopLoss, dec("0.2"), dec("0.1"))
	e := rig.engine

	candle := domain.Candle{BaseAsset: "BASE", QuoteAsset: "QUOTE", Close: dec("60"), CloseTime: t0}
	trade, err := e.OpenTrade(ctx, "exec-bracket", domain.TradeLong, candle)
	require.NoError(t, err)

	entry := &domain.Order{Side: domain.SideBuy, Type: domain.TypeLimit, Qty: dec("1"), Price: decimal.NullDecimal{Decimal: dec("50"), Valid: true}}
	require.NoError(t, e.OpenOrder(ctx, trade, candle, []*domain.Order{entry}))
	require.NoError(t, e.SendOrders(ctx, "exec-bracket"))

	require.NoError(t, e.ProcessOrderUpdate(ctx, exchange.Response{
		ClientOrderID: entry.IntOrderRef, OrderState: domain.OrderOpened, OrderSide: domain.SideBuy, OrderTmstmp: t0.Add(time.Second),
	}))
	require.NoError(t, e.ProcessOrderUpdate(ctx, exchange.Response{
		ClientOrderID: entry.IntOrderRef, OrderState: domain.OrderFilled, OrderSide: domain.SideBuy, OrderTmstmp: t0.Add(2 * time.Second),
	}))

	legs, err := rig.repo.GetAllOrders(ctx, repository.OrderFilter{TradeID: trade.TradeID, HasTradeID: true})
	require.NoError(t, err)
	require.Len(t, legs, 3) // entry + take-profit + stop-loss

	var takeProfit domain.Order
	for _, o := range legs {
		if o.Type == domain.TypeTakeProfitLimit {
			takeProfit = o
		}
	}
	require.NotZero(t, takeProfit.OrderID)

	require.NoError(t, e.SendOrders(ctx, "exec-bracket"))
	require.NoError(t, e.ProcessOrderUpdate(ctx, exchange.Response{
		ClientOrderID: takeProfit.IntOrderRef, OrderState: domain.OrderFilled, OrderSide: domain.SideSell, OrderTmstmp: t0.Add(3 * time.Second),
	}))

	afterFill, err := rig.repo.GetAllOrders(ctx, repository.OrderFilter{TradeID: trade.TradeID, HasTradeID: true})
	require.NoError(t, err)
	var stopLoss domain.Order
	for _, o := range afterFill {
		if o.Type == domain.TypeStopLossLimit {
			stopLoss = o
		}
	}
	require.NotZero(t, stopLoss.OrderID)
	assert.Equal(t, domain.OrderCancelPendingInt, stopLoss.State, "the sibling leg must be queued for cancellation")

	closed, err := rig.repo.GetTrade(ctx, trade.TradeID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeClosed, closed.State)
}

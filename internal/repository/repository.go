package repository

import (
	"context"

	"tradecore/internal/domain"
)

// OrderFilter selects orders for GetAllOrders (spec.md §6:
// "getAllOrders(trade_id?|exec_id?, order_state|set)"). Zero-value fields
// are not applied as predicates. States, when non-empty, is an OR set.
type OrderFilter struct {
	TradeID        int64
	HasTradeID     bool
	StrategyExecID string
	States         []domain.OrderState
}

// Repository is the durable order/trade store contract (spec.md §6). A
// Repository value may be the top-level store or a transaction-scoped view
// handed to the function passed to WithinTx — callers do not need to care
// which, both satisfy the same contract.
type Repository interface {
	GetOrder(ctx context.Context, intOrderRef string) (domain.Order, error)
	GetTrade(ctx context.Context, tradeID int64) (domain.Trade, error)
	GetAllOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error)
	GetPendingOrders(ctx context.Context, tradeID int64) ([]domain.Order, error)

	// AddOrder inserts o and writes the assigned monotonic OrderID back
	// into *o.
	AddOrder(ctx context.Context, o *domain.Order) error
	// AddTrade inserts t and writes the assigned monotonic TradeID back
	// into *t.
	AddTrade(ctx context.Context, t *domain.Trade) error

	SaveOrder(ctx context.Context, o domain.Order) error
	SaveTrade(ctx context.Context, t domain.Trade) error

	// WithinTx runs fn against a transaction-scoped Repository, committing
	// on success and rolling back on any returned error. The engine uses
	// it as the commit unit of a single processOrderUpdate or a single
	// openOrder call (and of OpenTrade/CloseTrade); a single order's
	// processing within sendOrders writes its one row with a single
	// statement instead.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
}

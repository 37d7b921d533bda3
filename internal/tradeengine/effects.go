package tradeengine

import (
	"github.com/shopspring/decimal"

	"tradecore/internal/domain"
)

// effects accumulates the cache/notification side effects of one
// transaction's worth of repository writes. Tx-scoped helpers append to it
// but never touch the cache, the event bus, or a strategy callback
// directly — that only happens once the transaction has actually
// committed, preserving persist-before-cache (spec.md §5/§8 property 4).
type effects struct {
	orders             []domain.Order
	trades             []domain.Trade
	closeNotifications []closeNotification
}

type closeNotification struct {
	strategyExecID      string
	tradeID             int64
	pnl                 decimal.Decimal
	quoteAssetPrecision int32
}

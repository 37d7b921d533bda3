package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is an OHLCV bar (glossary). The engine only ever reads
// BaseAsset/QuoteAsset/Close/CloseTime from it — open/high/low/volume are
// carried for completeness but unused by the lifecycle engine.
type Candle struct {
	BaseAsset  string
	QuoteAsset string
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     decimal.Decimal
	CloseTime  time.Time
}

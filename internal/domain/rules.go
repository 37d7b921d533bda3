package domain

import "github.com/shopspring/decimal"

// SymbolRules carries per-symbol quantisation and bounds (spec.md §3). All
// bounds are exact decimals; the precision fields are advisory display
// widths only, never authoritative for shaping (spec.md §4.1).
type SymbolRules struct {
	MinQty      decimal.Decimal
	MaxQty      decimal.Decimal
	MinQtyDenom decimal.Decimal

	MinPrice      decimal.Decimal
	MaxPrice      decimal.Decimal
	MinPriceDenom decimal.Decimal

	MinNotional decimal.Decimal

	BaseAssetPrecision  int32
	QuoteAssetPrecision int32
}

// Package moneymath implements the exact-decimal grid snapping at the heart
// of the order shaper (spec.md §4.1). No float64 is ever involved.
package moneymath

import "github.com/shopspring/decimal"

// Shape snaps v down to the nearest legal grid point:
//
//	shape(v, minV, denom) = minV + denom * floor((v - minV) / denom)
//
// Division and floor are exact decimal operations (shopspring/decimal), not
// binary floating point. denom must be strictly positive; callers (the
// shaper/validator) guarantee that from SymbolRules.
func Shape(v, minV, denom decimal.Decimal) decimal.Decimal {
	steps := v.Sub(minV).Div(denom).Floor()
	return minV.Add(denom.Mul(steps))
}

// OnGrid reports whether v sits exactly on the (minV, denom) grid, i.e.
// (v - minV) mod denom == 0. Used by the structural validator.
func OnGrid(v, minV, denom decimal.Decimal) bool {
	return v.Sub(minV).Mod(denom).IsZero()
}

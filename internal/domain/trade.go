package domain

import "time"

// Trade is a logical position spanning one or more Orders (spec.md §3).
type Trade struct {
	TradeID        int64
	StrategyExecID string // foreign key to an external strategy run
	BaseAsset      string
	QuoteAsset     string
	Type           TradeType
	State          TradeState

	InitTmstmp  time.Time
	OpenTmstmp  time.Time
	CloseTmstmp time.Time
}

// Symbol returns the "BASE/QUOTE" pair string, for logging.
func (t Trade) Symbol() string {
	return t.BaseAsset + "/" + t.QuoteAsset
}

// Package domain holds the sum types, persisted row shapes, and transition
// tables for the trade/order lifecycle. It has no dependency on how rows are
// stored or how orders reach an exchange.
package domain

// OrderState is the lifecycle state of a single exchange order. Values are
// backed by the integer codes the original system persisted them under
// (OrderState.py: 1..12) so a restart against an existing database is never
// ambiguous about what a stored code means.
type OrderState int

const (
	OrderOpenPendingInt OrderState = iota + 1
	OrderOpenPendingExt
	OrderOpenFailed
	OrderOpened
	OrderPartiallyFilled
	OrderFilled
	OrderCancelPendingInt
	OrderCancelPendingExt
	OrderCancelFailed
	OrderCanceled
	OrderRejected
	OrderExpired
)

var orderStateNames = map[OrderState]string{
	OrderOpenPendingInt:   "OPEN_PENDING_INT",
	OrderOpenPendingExt:   "OPEN_PENDING_EXT",
	OrderOpenFailed:       "OPEN_FAILED",
	OrderOpened:           "OPENED",
	OrderPartiallyFilled:  "PARTIALLY_FILLED",
	OrderFilled:           "FILLED",
	OrderCancelPendingInt: "CANCEL_PENDING_INT",
	OrderCancelPendingExt: "CANCEL_PENDING_EXT",
	OrderCancelFailed:     "CANCEL_FAILED",
	OrderCanceled:         "CANCELED",
	OrderRejected:         "REJECTED",
	OrderExpired:          "EXPIRED",
}

func (s OrderState) String() string {
	if n, ok := orderStateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Code returns the persisted integer code for the state (the bijective
// mapping spec.md §9 asks to centralise in one adaptor). For OrderState the
// enum value already equals the code, but callers should go through Code so
// the mapping stays centralised if the numbering ever has to diverge from
// iota order.
func (s OrderState) Code() int { return int(s) }

// OrderStateFromCode inverts Code.
func OrderStateFromCode(code int) (OrderState, bool) {
	s := OrderState(code)
	_, ok := orderStateNames[s]
	return s, ok
}

// terminalOrderStates are states with no further transitions.
var terminalOrderStates = map[OrderState]bool{
	OrderFilled:       true,
	OrderCanceled:     true,
	OrderRejected:     true,
	OrderExpired:      true,
	OrderOpenFailed:   true,
	OrderCancelFailed: true,
}

// IsTerminal reports whether no further transition is possible.
func (s OrderState) IsTerminal() bool { return terminalOrderStates[s] }

// PendingOrderStates is the pending set from spec.md §4.3: any order whose
// state is in this set still has work outstanding against the exchange.
var PendingOrderStates = []OrderState{
	OrderOpenPendingInt,
	OrderOpenPendingExt,
	OrderOpened,
	OrderCancelPendingInt,
	OrderCancelPendingExt,
}

// IsPending reports whether s is one of PendingOrderStates.
func (s OrderState) IsPending() bool {
	for _, p := range PendingOrderStates {
		if p == s {
			return true
		}
	}
	return false
}

// orderTransitions is the declarative legal-transition table for orders,
// expressed as data rather than scattered conditionals (spec.md §9).
var orderTransitions = map[OrderState][]OrderState{
	OrderOpenPendingInt:   {OrderOpenPendingExt, OrderOpenFailed},
	OrderOpenPendingExt:   {OrderOpened, OrderFilled, OrderRejected, OrderExpired, OrderCancelPendingInt},
	OrderOpened:           {OrderPartiallyFilled, OrderFilled, OrderCancelPendingInt, OrderCanceled, OrderRejected, OrderExpired},
	OrderPartiallyFilled:  {OrderFilled, OrderCancelPendingInt, OrderCanceled},
	OrderCancelPendingInt: {OrderCancelPendingExt, OrderCancelFailed},
	OrderCancelPendingExt: {OrderCanceled, OrderRejected, OrderExpired},
}

// CanTransitionOrder reports whether from -> to is a legal order transition.
// Re-entry into the same state is always legal and is treated as a no-op by
// callers (spec.md §9's open question on re-opening an already-OPENED order).
func CanTransitionOrder(from, to OrderState) bool {
	if from == to {
		return true
	}
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TradeState is the lifecycle state of a trade.
type TradeState int

const (
	TradeOpenPending TradeState = iota + 1
	TradeOpened
	TradeClosed
	TradeCloseFailed
	TradeOpenFailed
)

var tradeStateNames = map[TradeState]string{
	TradeOpenPending: "OPEN_PENDING",
	TradeOpened:      "OPENED",
	TradeClosed:      "CLOSED",
	TradeCloseFailed: "CLOSE_FAILED",
	TradeOpenFailed:  "OPEN_FAILED",
}

func (s TradeState) String() string {
	if n, ok := tradeStateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

func (s TradeState) Code() int { return int(s) }

func TradeStateFromCode(code int) (TradeState, bool) {
	s := TradeState(code)
	_, ok := tradeStateNames[s]
	return s, ok
}

// terminalTradeStates removes a trade from the live caches (spec.md §3).
var terminalTradeStates = map[TradeState]bool{
	TradeClosed:      true,
	TradeCloseFailed: true,
	TradeOpenFailed:  true,
}

func (s TradeState) IsTerminal() bool { return terminalTradeStates[s] }

var tradeTransitions = map[TradeState][]TradeState{
	TradeOpenPending: {TradeOpened, TradeClosed, TradeOpenFailed},
	TradeOpened:      {TradeClosed, TradeCloseFailed},
}

func CanTransitionTrade(from, to TradeState) bool {
	if from == to {
		return true
	}
	for _, s := range tradeTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// OrderSide is BUY or SELL.
type OrderSide int

const (
	SideBuy OrderSide = iota + 1
	SideSell
)

func (s OrderSide) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// OrderType enumerates the exchange order types the shaper/validator know
// how to treat.
type OrderType int

const (
	TypeMarket OrderType = iota + 1
	TypeLimit
	TypeStopLossLimit
	TypeStopLossMarket
	TypeTakeProfitLimit
	TypeTakeProfitMarket
)

func (t OrderType) String() string {
	switch t {
	case TypeMarket:
		return "MARKET"
	case TypeLimit:
		return "LIMIT"
	case TypeStopLossLimit:
		return "STOP_LOSS_LIMIT"
	case TypeStopLossMarket:
		return "STOP_LOSS_MARKET"
	case TypeTakeProfitLimit:
		return "TAKE_PROFIT_LIMIT"
	case TypeTakeProfitMarket:
		return "TAKE_PROFIT_MARKET"
	default:
		return "UNKNOWN"
	}
}

// IsStopLoss reports whether t is one of the two stop-loss variants.
func (t OrderType) IsStopLoss() bool {
	return t == TypeStopLossLimit || t == TypeStopLossMarket
}

// IsTakeProfit reports whether t is one of the two take-profit variants.
func (t OrderType) IsTakeProfit() bool {
	return t == TypeTakeProfitLimit || t == TypeTakeProfitMarket
}

// IsMarket reports whether t is the plain MARKET type.
func (t OrderType) IsMarket() bool { return t == TypeMarket }

// TradeType is LONG or SHORT. A SHORT trade can be opened and its orders
// submitted, but ProcessOrderUpdate rejects any update for it with
// ErrUnsupportedTradeType (spec.md §1 Non-goals).
type TradeType int

const (
	TradeLong TradeType = iota + 1
	TradeShort
)

func (t TradeType) String() string {
	switch t {
	case TradeLong:
		return "LONG"
	case TradeShort:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

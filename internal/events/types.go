package events

// Event enumerates the lifecycle topics published by the engine
// (spec.md §4.3's transitions and §7's "every state change").
type Event string

const (
	EventTradeOpened Event = "trade.opened"
	EventTradeClosed Event = "trade.closed"
	EventOrderOpened Event = "order.opened"
	EventOrderFilled Event = "order.filled"
	EventOrderFailed Event = "order.failed"
	EventOrderUpdate Event = "order.updated"
)

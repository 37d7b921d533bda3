package domain

import "errors"

// Error kinds from spec.md §7, as wrappable sentinels (the teacher's
// pkg/db.ErrUserIDRequired/ErrNotFound pattern) rather than ad hoc string
// matching, so callers can use errors.Is/errors.As.
var (
	// ErrRuleViolation marks a shaping or structural-validation failure.
	ErrRuleViolation = errors.New("rule violation")
	// ErrImmediateExecutionRisk marks a limit-style order that would cross
	// the book immediately.
	ErrImmediateExecutionRisk = errors.New("immediate execution risk")
	// ErrExchangeRejection marks an exchange response in an unexpected state.
	ErrExchangeRejection = errors.New("exchange rejection")
	// ErrExchangeTransport marks a failed exchange client call.
	ErrExchangeTransport = errors.New("exchange transport error")
	// ErrUnsupportedTradeType marks a SHORT trade reaching the update path.
	ErrUnsupportedTradeType = errors.New("unsupported trade type")
	// ErrProgramming marks an invalid state reaching the submission queue.
	ErrProgramming = errors.New("programming error")
	// ErrNotFound marks a missing repository row.
	ErrNotFound = errors.New("record not found")
)

package callback

import "fmt"

// ErrUnknownStrategy builds the error returned when no Strategy is
// registered for a strategy_exec_id.
func ErrUnknownStrategy(strategyExecID string) error {
	return fmt.Errorf("callback: no strategy registered for strategy_exec_id %q", strategyExecID)
}

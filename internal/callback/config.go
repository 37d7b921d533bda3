package callback

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig is a strategy run configuration entry in YAML, adapted from the
// teacher's internal/strategy.Config: instead of an id/name/symbol/interval
// tuple synced to a strategy_instances DB table, a RunConfig names the
// strategy_exec_id (spec.md §4.1's "foreign key to a strategy run") and the
// close policy the engine looks up through callback.Registry. Inactive
// entries are loaded but skipped by PopulateRegistry, same as the teacher's
// is_active guard.
type RunConfig struct {
	StrategyExecID string `yaml:"strategy_exec_id"`
	Name           string `yaml:"name"`
	CloseType      string `yaml:"close_type"`
	IsActive       bool   `yaml:"is_active"`
}

// RunConfigFile is the top-level YAML structure LoadRunConfigs parses.
type RunConfigFile struct {
	Strategies []RunConfig `yaml:"strategies"`
}

// LoadRunConfigs reads strategy run configurations from a YAML file at path.
func LoadRunConfigs(path string) ([]RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("callback: read %s: %w", path, err)
	}

	var file RunConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("callback: parse %s: %w", path, err)
	}

	return file.Strategies, nil
}

// closeTypeByName maps a RunConfig's close_type YAML value to the CloseType
// enum; unrecognized values are rejected by PopulateRegistry rather than
// silently defaulting, since a typo here would silently mis-close trades.
var closeTypeByName = map[string]CloseType{
	"CLOSE_ON_FIRST_FILL":   CloseOnFirstFill,
	"TAKE_PROFIT_STOP_LOSS": TakeProfitStopLoss,
	"TRAILING_EXIT":         TrailingExit,
}

// configStrategy adapts a RunConfig into a Strategy whose
// GetTradeCloseType always returns the configured policy and whose
// TradeClosed only calls the onClosed hook, if one is set — the same shape
// as cmd/tradecore's loggingStrategy, but built from YAML instead of
// hardcoded in Go source.
type configStrategy struct {
	closeType CloseType
	onClosed  func(tradeID int64)
}

func (s configStrategy) TradeClosed(ctx context.Context, tradeID int64) error {
	if s.onClosed != nil {
		s.onClosed(tradeID)
	}
	return nil
}

func (s configStrategy) GetTradeCloseType(ctx context.Context, strategyExecID string) (CloseType, error) {
	return s.closeType, nil
}

// PopulateRegistry registers a configStrategy for every active entry in
// configs against reg, using onClosed (which may be nil) as each strategy's
// TradeClosed notification hook. It returns the strategy_exec_ids it
// registered, in file order, so the caller can log what came online.
func PopulateRegistry(reg *MapRegistry, configs []RunConfig, onClosed func(tradeID int64)) ([]string, error) {
	var registered []string
	for _, cfg := range configs {
		if !cfg.IsActive {
			continue
		}
		if cfg.StrategyExecID == "" {
			return nil, fmt.Errorf("callback: strategy run %q: missing strategy_exec_id", cfg.Name)
		}
		ct, ok := closeTypeByName[cfg.CloseType]
		if !ok {
			return nil, fmt.Errorf("callback: strategy run %q: unknown close_type %q", cfg.Name, cfg.CloseType)
		}
		reg.Register(cfg.StrategyExecID, configStrategy{closeType: ct, onClosed: onClosed})
		registered = append(registered, cfg.StrategyExecID)
	}
	return registered, nil
}

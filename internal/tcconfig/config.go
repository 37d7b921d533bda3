// Package tcconfig loads the engine's environment-driven settings, in the
// teacher's pkg/config style (godotenv + typed getEnv helpers), extended
// with the engine's own toggles (spec.md §4.2, §6).
package tcconfig

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds the engine's runtime-toggle and storage settings.
type Config struct {
	// Validation toggles (spec.md §4.2), default ON.
	ShapeNewOrders             bool
	ValidateOrders             bool
	PreventImmediateLimitOrder bool

	// OrderReferencePrefix is prefixed to the order id to form
	// int_order_ref (spec.md §6). Must stay stable across restarts.
	OrderReferencePrefix string

	// DBPath is the SQLite database path for the repository.
	DBPath string

	// StrategiesConfigPath, when set, points at a YAML file of strategy
	// run definitions (callback.LoadRunConfigs) the binary registers at
	// startup instead of its single hardcoded demo strategy.
	StrategiesConfigPath string

	// TakeProfitPct/StopLossPct size the bracket pair the TAKE_PROFIT_
	// STOP_LOSS close strategy derives off a filled entry's price.
	TakeProfitPct decimal.Decimal
	StopLossPct   decimal.Decimal
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore error: still start when .env is missing

	tp, err := getEnvDecimal("TAKE_PROFIT_PCT", "0.02")
	if err != nil {
		return nil, err
	}
	sl, err := getEnvDecimal("STOP_LOSS_PCT", "0.01")
	if err != nil {
		return nil, err
	}

	return &Config{
		ShapeNewOrders:             getEnvBool("SHAPE_NEW_ORDERS", true),
		ValidateOrders:             getEnvBool("VALIDATE_ORDERS", true),
		PreventImmediateLimitOrder: getEnvBool("PREVENT_IMMEDIATE_LIMIT_ORDER", true),
		OrderReferencePrefix:       getEnv("ORDER_REFERENCE_PREFIX", "TC-"),
		DBPath:                     getEnv("DB_PATH", "./data/tradecore.db"),
		StrategiesConfigPath:       getEnv("STRATEGIES_CONFIG_PATH", ""),
		TakeProfitPct:              tp,
		StopLossPct:                sl,
	}, nil
}

func getEnvDecimal(key, def string) (decimal.Decimal, error) {
	v := getEnv(key, def)
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("tcconfig: %s=%q: %w", key, v, err)
	}
	return d, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// Command tradecore wires the order/trade lifecycle engine (spec.md §3-§6)
// to a SQLite repository, an in-process exchange client, and a static
// market-rules provider, then runs the engine's submission loop until
// interrupted.
package main

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tradecore/internal/callback"
	"tradecore/internal/closestrategy"
	"tradecore/internal/events"
	"tradecore/internal/exchange"
	"tradecore/internal/repository"
	"tradecore/internal/rules"
	"tradecore/internal/shaper"
	"tradecore/internal/tcconfig"
	"tradecore/internal/tradeengine"
	"tradecore/internal/validator"
)

// ANSI foreground colors for the PnL highlight the console writer applies
// to a closed trade's log line, the same green-for-gain/red-for-loss
// convention web3guy0-polybot's dashboard/terminal.go uses for take-profit
// and stop-loss exits. Unlike that teacher code, which writes these escapes
// directly into terminal output, here they're applied only through
// zerolog.ConsoleWriter's FormatExtra hook, so tradeengine itself never
// touches an escape code — it only sets the "positive" field.
const (
	ansiFgGreen = "\033[32m"
	ansiFgRed   = "\033[31m"
	ansiReset   = "\033[0m"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		FormatExtra: func(fields map[string]interface{}, buf *bytes.Buffer) error {
			positive, ok := fields["positive"].(bool)
			if !ok {
				return nil
			}
			color := ansiFgRed
			if positive {
				color = ansiFgGreen
			}
			buf.WriteString(color)
			buf.WriteString(" ")
			if positive {
				buf.WriteString("GAIN")
			} else {
				buf.WriteString("LOSS")
			}
			buf.WriteString(ansiReset)
			return nil
		},
	})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := tcconfig.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := repository.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open repository")
	}
	defer db.Close()

	repo := repository.NewSQLiteRepository(db)
	rulesProvider := rules.NewStaticProvider()
	bus := events.NewBus()

	strategies := callback.NewMapRegistry()
	if err := registerStrategies(strategies, cfg.StrategiesConfigPath); err != nil {
		log.Fatal().Err(err).Str("path", cfg.StrategiesConfigPath).Msg("failed to register strategy runs")
	}

	eng := tradeengine.New(tradeengine.Deps{
		Repo:       repo,
		Exchange:   exchange.NewMemClient(),
		Rules:      rulesProvider,
		Shaper:     shaper.New(rulesProvider),
		Validator:  validator.New(rulesProvider),
		CloseEval:  closestrategy.New(),
		Strategies: strategies,
		Bus:        bus,
		Config:     cfg,
		Logger:     log.Logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Msg("tradecore engine starting")
	runSubmissionLoop(ctx, eng)
	log.Info().Msg("tradecore engine stopped")
}

// registerStrategies populates reg either from the YAML file at configPath
// (callback.LoadRunConfigs/PopulateRegistry), or, when configPath is empty,
// from a single hardcoded demo strategy run so the binary still does
// something useful with no external configuration.
func registerStrategies(reg *callback.MapRegistry, configPath string) error {
	if configPath == "" {
		strategyExecID := uuid.NewString()
		reg.Register(strategyExecID, loggingStrategy{closeType: callback.CloseOnFirstFill})
		log.Info().Str("strategy_exec_id", strategyExecID).Msg("registered default strategy run")
		return nil
	}

	configs, err := callback.LoadRunConfigs(configPath)
	if err != nil {
		return err
	}
	registered, err := callback.PopulateRegistry(reg, configs, func(tradeID int64) {
		log.Info().Int64("trade_id", tradeID).Msg("trade closed")
	})
	if err != nil {
		return err
	}
	for _, id := range registered {
		log.Info().Str("strategy_exec_id", id).Msg("registered strategy run from config")
	}
	return nil
}

// loggingStrategy is the default callback.Strategy this binary registers a
// fresh strategy run against when no strategies config file is supplied: it
// closes every trade per closeType and logs closures. A real deployment
// registers its own strategy implementation, or a STRATEGIES_CONFIG_PATH
// file, in place of this one.
type loggingStrategy struct {
	closeType callback.CloseType
}

func (loggingStrategy) TradeClosed(ctx context.Context, tradeID int64) error {
	log.Info().Int64("trade_id", tradeID).Msg("trade closed")
	return nil
}

func (s loggingStrategy) GetTradeCloseType(ctx context.Context, strategyExecID string) (callback.CloseType, error) {
	return s.closeType, nil
}

// runSubmissionLoop periodically drives SendOrders so pending orders queued
// by OpenOrder/ProcessOrderUpdate's follow-ups actually reach the exchange
// (spec.md §4.4). A real deployment would instead trigger SendOrders off of
// a strategy/event-driven signal; the polling loop here is a standalone
// default so the binary does something useful without external wiring.
func runSubmissionLoop(ctx context.Context, eng *tradeengine.Engine) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			seen := make(map[string]bool)
			for _, t := range eng.LiveTrades() {
				if seen[t.StrategyExecID] {
					continue
				}
				seen[t.StrategyExecID] = true
				if err := eng.SendOrders(ctx, t.StrategyExecID); err != nil {
					log.Error().Err(err).Str("strategy_exec_id", t.StrategyExecID).Msg("send orders failed")
				}
			}
		}
	}
}

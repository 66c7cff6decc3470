// Command simbroker replays historical market data and scripted orders
// through the paper-trading execution simulator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/coachpo/simbroker/config"
	"github.com/coachpo/simbroker/internal/archive"
	"github.com/coachpo/simbroker/internal/checkpoint"
	"github.com/coachpo/simbroker/internal/feed"
	"github.com/coachpo/simbroker/internal/observability"
	"github.com/coachpo/simbroker/internal/risk"
	"github.com/coachpo/simbroker/internal/sim"
	"github.com/coachpo/simbroker/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML configuration file")
	dataPath := flag.String("data", "", "Path to the historical market data file (CSV)")
	ordersPath := flag.String("orders", "", "Path to the scripted orders file (CSV)")
	resume := flag.Bool("resume", false, "Resume from the latest checkpoint for this simulator id")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("data path is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg = config.FromEnv(cfg)

	if *verbose {
		observability.SetLogger(observability.NewTextLogger(os.Stderr))
	}

	ctx := context.Background()
	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:         cfg.Telemetry.Enabled,
		OTLPEndpoint:    cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:    cfg.Telemetry.OTLPInsecure,
		MetricInterval:  time.Duration(cfg.Telemetry.MetricInterval),
		ShutdownTimeout: 5 * time.Second,
		ServiceName:     cfg.Telemetry.ServiceName,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown telemetry: %v", err)
		}
	}()
	runtimeMetrics := observability.NewRuntimeMetrics()
	if cfg.Telemetry.Enabled {
		observability.SetMetrics(telemetry.NewBridge(provider.Meter("simbroker")))
	} else {
		observability.SetMetrics(runtimeMetrics)
	}

	store := checkpoint.NewStore(cfg.Checkpoint.Dir)
	simulator, err := buildSimulator(cfg, store, *resume)
	if err != nil {
		log.Fatalf("build simulator: %v", err)
	}

	var instructions []feed.Instruction
	if *ordersPath != "" {
		instructions, err = feed.LoadInstructionsCSV(*ordersPath)
		if err != nil {
			log.Fatalf("load orders: %v", err)
		}
	}

	feeder, err := feed.NewCSVFeeder(*dataPath)
	if err != nil {
		log.Fatalf("create csv feeder: %v", err)
	}
	defer feeder.Close()

	sink := archive.NewMemoryArchive()
	if err := replay(ctx, simulator, feeder, instructions, sink); err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	if cfg.Checkpoint.SaveOnExit {
		path, err := store.Save(checkpoint.Capture(simulator, time.Now().UTC()))
		if err != nil {
			log.Fatalf("save checkpoint: %v", err)
		}
		fmt.Printf("checkpoint written to %s\n", path)
	}

	printSummary(simulator, sink, runtimeMetrics.Snapshot())
}

func buildSimulator(cfg config.Settings, store *checkpoint.Store, resume bool) (*sim.Simulator, error) {
	riskCfg := cfg.Risk.RuleConfig()

	if resume {
		rec, err := store.LoadLatest(cfg.SimID)
		if err != nil {
			return nil, err
		}
		var rules *risk.Config
		if cfg.Risk.Enabled() {
			rules = &riskCfg
		}
		return checkpoint.Rebuild(rec, rules)
	}

	opts := []sim.Option{
		sim.WithLatencyProfile(cfg.Latency.Profile()),
		sim.WithSlippageBps(cfg.SlippageBps.Decimal),
		sim.WithCommissionPerShare(cfg.CommissionPerShare.Decimal),
		sim.WithQuantityBounds(cfg.MinQuantity.Decimal, cfg.MaxQuantity.Decimal),
	}
	if cfg.Risk.Enabled() {
		opts = append(opts, sim.WithRiskChecker(risk.NewChecker(riskCfg)))
	}
	return sim.NewSimulator(cfg.SimID, cfg.InitialCash.Decimal, opts...), nil
}

// replay interleaves scripted order submissions with the tick stream by
// timestamp and archives orders as they complete.
func replay(ctx context.Context, simulator *sim.Simulator, feeder feed.Feeder, instructions []feed.Instruction, sink *archive.MemoryArchive) error {
	archived := make(map[string]bool)
	var currentDay time.Time

	next := 0
	submitDue := func(now time.Time) error {
		for next < len(instructions) && !instructions[next].At.After(now) {
			inst := instructions[next]
			if err := simulator.SubmitOrder(inst.Order, inst.At); err != nil {
				return fmt.Errorf("submit order %s: %w", inst.Order.OrderID, err)
			}
			next++
		}
		return nil
	}

	for {
		tick, err := feeder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		day := tick.Timestamp.UTC().Truncate(24 * time.Hour)
		if !currentDay.IsZero() && day.After(currentDay) {
			simulator.StartNewDay()
		}
		currentDay = day

		if err := submitDue(tick.Timestamp); err != nil {
			return err
		}
		simulator.ProcessMarketData(tick.Symbol, tick.Price, tick.Timestamp)

		for _, order := range simulator.CompletedOrders() {
			if archived[order.OrderID] {
				continue
			}
			if err := sink.Archive(ctx, order); err != nil {
				return fmt.Errorf("archive order %s: %w", order.OrderID, err)
			}
			archived[order.OrderID] = true
		}
	}
	return nil
}

func printSummary(simulator *sim.Simulator, sink *archive.MemoryArchive, metrics observability.SimulatorMetricsSnapshot) {
	fmt.Printf("simulator %s finished\n", simulator.ID())
	fmt.Printf("  cash:             %s\n", simulator.Cash().StringFixed(2))
	fmt.Printf("  completed orders: %d (archived %d)\n", len(simulator.CompletedOrders()), sink.Len())
	fmt.Printf("  pending orders:   %d\n", len(simulator.PendingOrders()))
	for symbol, qty := range simulator.Positions() {
		fmt.Printf("  position %-8s %s\n", symbol, qty.String())
	}
	for symbol, count := range metrics.Filled {
		fmt.Printf("  fills %-11s %d\n", symbol, count)
	}
	for symbol, count := range metrics.Rejected {
		fmt.Printf("  rejects %-9s %d\n", symbol, count)
	}
}

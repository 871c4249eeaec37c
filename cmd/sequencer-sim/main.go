// sequencer-sim runs an ensemble of simulated chain sequencers against a
// cross-chain coordinator to exercise its two-phase commit protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/compose-network/sequencer-sim/internal/config"
	"github.com/compose-network/sequencer-sim/internal/harness"
	"github.com/compose-network/sequencer-sim/internal/logger"
	"github.com/compose-network/sequencer-sim/internal/sequencer"
	"github.com/compose-network/sequencer-sim/internal/types"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "sequencer-sim: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath   = flag.String("config", "", "path to YAML config file (optional)")
		coordinator  = flag.String("coordinator", "", "coordinator multiaddr, e.g. /ip4/127.0.0.1/tcp/8080")
		clients      = flag.Int("clients", 0, "number of sequencer clients")
		voteStrategy = flag.String("vote-strategy", "", "vote strategy for all clients: commit, abort, random, delay")
		sendTx       = flag.Bool("send-tx", false, "have the first client originate transactions")
		txCount      = flag.Int("tx-count", 0, "number of transactions to originate")
		duration     = flag.Duration("duration", 0, "test duration")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	// Flags set on the command line override the file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "coordinator":
			cfg.Coordinator.Address = *coordinator
		case "clients":
			cfg.Simulation.Clients = *clients
		case "vote-strategy":
			cfg.Simulation.VoteStrategy = *voteStrategy
		case "send-tx":
			cfg.Simulation.SendTx = *sendTx
		case "tx-count":
			cfg.Simulation.TxCount = *txCount
		case "duration":
			cfg.Simulation.Duration = *duration
		}
	})

	if err := config.NewManager().ValidateConfig(cfg); err != nil {
		return err
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	dialAddr, err := config.DialAddr(cfg.Coordinator.Address)
	if err != nil {
		return err
	}

	strategy, err := sequencer.ParsePolicy(cfg.Simulation.VoteStrategy)
	if err != nil {
		return err
	}

	overrides := make(map[int]sequencer.Policy, len(cfg.Simulation.StrategyOverrides))
	for idx, s := range cfg.Simulation.StrategyOverrides {
		p, err := sequencer.ParsePolicy(s)
		if err != nil {
			return err
		}
		overrides[idx] = p
	}

	log.Info().
		Int("clients", cfg.Simulation.Clients).
		Str("coordinator", dialAddr).
		Str("vote_strategy", strategy.String()).
		Dur("duration", cfg.Simulation.Duration).
		Msg("Starting sequencer simulation")

	h := harness.New(harness.Config{
		Clients:        cfg.Simulation.Clients,
		Coordinator:    dialAddr,
		Strategy:       strategy,
		Overrides:      overrides,
		SendTx:         cfg.Simulation.SendTx,
		TxCount:        cfg.Simulation.TxCount,
		Duration:       cfg.Simulation.Duration,
		Stagger:        cfg.Simulation.Stagger,
		ConnectTimeout: cfg.Coordinator.ConnectTimeout,
		ReadTimeout:    cfg.Coordinator.ReadTimeout,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := h.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	if ctx.Err() != nil {
		log.Info().Msg("Interrupted, shutting down")
		// Give abandoned delayed senders a moment to drain their logs.
		time.Sleep(100 * time.Millisecond)
	}

	return nil
}

func loadConfig(path string) (*types.Config, error) {
	if path == "" {
		return types.DefaultConfig(), nil
	}
	return config.LoadConfig(path)
}

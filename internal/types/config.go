package types

import (
	"time"

	"github.com/compose-network/sequencer-sim/internal/logger"
)

// Config represents the complete simulator configuration
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Simulation  SimulationConfig  `yaml:"simulation"`
	Logging     logger.Config     `yaml:"logging"`
}

// CoordinatorConfig describes how to reach the cross-chain coordinator.
type CoordinatorConfig struct {
	// Address is a TCP multiaddr, e.g. /ip4/127.0.0.1/tcp/8080.
	Address        string        `yaml:"address"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// ReadTimeout bounds a single socket read so receive loops can poll
	// their stop signal.
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// SimulationConfig controls the simulated sequencer ensemble.
type SimulationConfig struct {
	Clients      int    `yaml:"clients"`
	VoteStrategy string `yaml:"vote_strategy"`
	// StrategyOverrides replaces the uniform strategy for individual
	// participants, keyed by zero-based participant index.
	StrategyOverrides map[int]string `yaml:"strategy_overrides"`
	SendTx            bool           `yaml:"send_tx"`
	TxCount           int            `yaml:"tx_count"`
	Duration          time.Duration  `yaml:"duration"`
	// Stagger spaces out connection attempts so the coordinator does not
	// see a burst of simultaneous connects.
	Stagger time.Duration `yaml:"stagger"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			Address:        "/ip4/127.0.0.1/tcp/8080",
			ConnectTimeout: 10 * time.Second,
			ReadTimeout:    time.Second,
		},
		Simulation: SimulationConfig{
			Clients:      3,
			VoteStrategy: "commit",
			SendTx:       false,
			TxCount:      1,
			Duration:     30 * time.Second,
			Stagger:      500 * time.Millisecond,
		},
		Logging: logger.DefaultConfig(),
	}
}

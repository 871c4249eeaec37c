// Package config loads and validates the simulator's YAML configuration.
package config

import (
	"fmt"
	"os"

	"github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"gopkg.in/yaml.v3"

	"github.com/compose-network/sequencer-sim/internal/logger"
	"github.com/compose-network/sequencer-sim/internal/sequencer"
	"github.com/compose-network/sequencer-sim/internal/types"
)

// Manager handles configuration loading, validation, and management
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// LoadConfig loads configuration from the specified file path. A default
// config file is created when none exists.
func (m *Manager) LoadConfig(filePath string) (*types.Config, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		cfg := types.DefaultConfig()
		if err := m.CreateConfigFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	var cfg types.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := m.ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// CreateConfigFile creates a new configuration file with the given config
func (m *Manager) CreateConfigFile(filePath string, cfg *types.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ValidateConfig validates the configuration structure and values
func (m *Manager) ValidateConfig(cfg *types.Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := validateCoordinatorConfig(&cfg.Coordinator); err != nil {
		return fmt.Errorf("coordinator config validation failed: %w", err)
	}

	if err := validateSimulationConfig(&cfg.Simulation); err != nil {
		return fmt.Errorf("simulation config validation failed: %w", err)
	}

	if err := validateLoggingConfig(&cfg.Logging); err != nil {
		return fmt.Errorf("logging config validation failed: %w", err)
	}

	return nil
}

func validateCoordinatorConfig(cfg *types.CoordinatorConfig) error {
	if _, err := DialAddr(cfg.Address); err != nil {
		return fmt.Errorf("invalid coordinator address: %w", err)
	}

	if cfg.ConnectTimeout <= 0 {
		return fmt.Errorf("coordinator.connect_timeout must be positive")
	}

	if cfg.ReadTimeout <= 0 {
		return fmt.Errorf("coordinator.read_timeout must be positive")
	}

	return nil
}

func validateSimulationConfig(cfg *types.SimulationConfig) error {
	if cfg.Clients < 1 {
		return fmt.Errorf("simulation.clients must be at least 1")
	}

	if _, err := sequencer.ParsePolicy(cfg.VoteStrategy); err != nil {
		return fmt.Errorf("simulation.vote_strategy: %w", err)
	}

	for idx, strategy := range cfg.StrategyOverrides {
		if idx < 0 || idx >= cfg.Clients {
			return fmt.Errorf("simulation.strategy_overrides: index %d out of range", idx)
		}
		if _, err := sequencer.ParsePolicy(strategy); err != nil {
			return fmt.Errorf("simulation.strategy_overrides[%d]: %w", idx, err)
		}
	}

	if cfg.SendTx && cfg.TxCount < 1 {
		return fmt.Errorf("simulation.tx_count must be at least 1 when send_tx is enabled")
	}

	if cfg.Duration <= 0 {
		return fmt.Errorf("simulation.duration must be positive")
	}

	if cfg.Stagger < 0 {
		return fmt.Errorf("simulation.stagger cannot be negative")
	}

	return nil
}

func validateLoggingConfig(cfg *logger.Config) error {
	validLevels := map[string]bool{
		"": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	if cfg.FileOutput && cfg.FileName == "" {
		return fmt.Errorf("logging.file_name is required when file_output is enabled")
	}

	return nil
}

// DialAddr converts a TCP multiaddr into a host:port dial address.
func DialAddr(addr string) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("address cannot be empty")
	}

	maddr, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return "", err
	}

	network, hostPort, err := manet.DialArgs(maddr)
	if err != nil {
		return "", err
	}
	if network != "tcp" && network != "tcp4" && network != "tcp6" {
		return "", fmt.Errorf("unsupported transport %q, coordinator requires tcp", network)
	}

	return hostPort, nil
}

// LoadConfig is a convenience function that creates a manager and loads config
func LoadConfig(filePath string) (*types.Config, error) {
	return NewManager().LoadConfig(filePath)
}

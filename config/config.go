package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"otcswap/native/swap"
)

// Alloc seeds an account balance at first start.
type Alloc struct {
	Address string `toml:"Address"`
	Denom   string `toml:"Denom"`
	Amount  string `toml:"Amount"`
}

type Config struct {
	RPCAddress      string  `toml:"RPCAddress"`
	DataDir         string  `toml:"DataDir"`
	CustodyStrategy string  `toml:"CustodyStrategy"`
	NetworkName     string  `toml:"NetworkName"`
	Alloc           []Alloc `toml:"Alloc,omitempty"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the node cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if _, err := swap.ParseStrategy(c.CustodyStrategy); err != nil {
		return fmt.Errorf("config: CustodyStrategy: %w", err)
	}
	return nil
}

// Strategy returns the parsed custody strategy.
func (c *Config) Strategy() swap.Strategy {
	strategy, err := swap.ParseStrategy(c.CustodyStrategy)
	if err != nil {
		return swap.StrategyEscrow
	}
	return strategy
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./otcswap-data"
	}
	if strings.TrimSpace(cfg.CustodyStrategy) == "" {
		cfg.CustodyStrategy = string(swap.StrategyEscrow)
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "otcswap-local"
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"otcswap/config"
	"otcswap/core"
	"otcswap/core/types"
	"otcswap/native/swap"
	"otcswap/observability/logging"
	"otcswap/rpc"
	"otcswap/storage"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./config.toml", "path to configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("OTCSWAP_ENV"))
	if env == "" {
		env = "dev"
	}
	logger := logging.Setup("otcswapd", env)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "swap"))
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	module := swap.ModuleAddress()
	var custody swap.Custody
	switch cfg.Strategy() {
	case swap.StrategyGrant:
		custody = swap.NewGrantCustody(module)
	default:
		custody = swap.NewEscrowCustody(module)
	}

	node := core.NewNode(db, custody, logger)

	allocs, err := parseAllocations(cfg.Alloc)
	if err != nil {
		logger.Error("invalid genesis allocation", "error", err)
		os.Exit(1)
	}
	if err := node.ApplyAllocations(allocs); err != nil {
		logger.Error("failed to apply genesis allocations", "error", err)
		os.Exit(1)
	}

	logger.Info("starting node",
		"network", cfg.NetworkName,
		"custody", string(cfg.Strategy()),
		"rpc", cfg.RPCAddress,
		"data_dir", cfg.DataDir,
	)

	server := rpc.NewServer(node)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "error", err)
		os.Exit(1)
	}
}

func parseAllocations(allocs []config.Alloc) ([]core.Allocation, error) {
	out := make([]core.Allocation, 0, len(allocs))
	for i, alloc := range allocs {
		addr, err := parseAddress(alloc.Address)
		if err != nil {
			return nil, fmt.Errorf("alloc[%d]: %w", i, err)
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(alloc.Amount), 10)
		if !ok {
			return nil, fmt.Errorf("alloc[%d]: invalid amount %q", i, alloc.Amount)
		}
		out = append(out, core.Allocation{
			Address: addr,
			Asset:   types.Asset{Denom: alloc.Denom, Amount: amount},
		})
	}
	return out, nil
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", value, err)
	}
	if len(decoded) != len(addr) {
		return addr, fmt.Errorf("invalid address length %d", len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}

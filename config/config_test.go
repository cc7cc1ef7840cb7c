package config

import (
	"os"
	"path/filepath"
	"testing"

	"otcswap/native/swap"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:8645" {
		t.Fatalf("unexpected default rpc address: %q", cfg.RPCAddress)
	}
	if cfg.Strategy() != swap.StrategyEscrow {
		t.Fatalf("unexpected default strategy: %q", cfg.CustodyStrategy)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
	// The written file loads back cleanly.
	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.DataDir != cfg.DataDir {
		t.Fatalf("reload mismatch: %q vs %q", reloaded.DataDir, cfg.DataDir)
	}
}

func TestLoadParsesAllocations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
RPCAddress = "0.0.0.0:9000"
DataDir = "/var/lib/otcswap"
CustodyStrategy = "grant"
NetworkName = "otcswap-test"

[[Alloc]]
Address = "0x0101010101010101010101010101010101010101"
Denom = "uatom"
Amount = "1000000"

[[Alloc]]
Address = "0x0202020202020202020202020202020202020202"
Denom = "uosmo"
Amount = "500000"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Strategy() != swap.StrategyGrant {
		t.Fatalf("unexpected strategy: %q", cfg.CustodyStrategy)
	}
	if len(cfg.Alloc) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(cfg.Alloc))
	}
	if cfg.Alloc[0].Denom != "uatom" || cfg.Alloc[0].Amount != "1000000" {
		t.Fatalf("unexpected allocation: %+v", cfg.Alloc[0])
	}
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
RPCAddress = "127.0.0.1:8645"
DataDir = "./data"
CustodyStrategy = "custodial"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for unknown strategy")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveyd.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if cfg.ListenAddress != ":8645" {
		t.Fatalf("listen address = %q", cfg.ListenAddress)
	}
	if cfg.ReceiverPrefix != "svy" || cfg.RewardDenom != "usvy" {
		t.Fatalf("defaults = %q/%q", cfg.ReceiverPrefix, cfg.RewardDenom)
	}
	if cfg.TransferTimeoutSeconds != 600 {
		t.Fatalf("transfer timeout = %d", cfg.TransferTimeoutSeconds)
	}
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveyd.toml")
	body := `
ListenAddress = ":9900"
Owner = "svy1owner"
GasStation = "svy1gas"
ContractAddress = "svy1contract"
ChannelEscrowAddress = "svy1escrow"
ChannelID = "channel-42"

[[Managers]]
Address = "svy1manager"
PubKey = "00112233"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddress != ":9900" {
		t.Fatalf("listen address = %q", cfg.ListenAddress)
	}
	if cfg.ChannelID != "channel-42" {
		t.Fatalf("channel = %q", cfg.ChannelID)
	}
	// Unset fields fall back to defaults.
	if cfg.RewardDenom != "usvy" {
		t.Fatalf("reward denom = %q", cfg.RewardDenom)
	}
	if len(cfg.Managers) != 1 || cfg.Managers[0].Address != "svy1manager" {
		t.Fatalf("managers = %+v", cfg.Managers)
	}
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveyd.toml")
	body := `
Owner = "svy1owner"
GasStation = "svy1gas"
ContractAddress = "svy1contract"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing escrow address")
	}
}

func TestValidateManagerEntries(t *testing.T) {
	cfg := defaultConfig()
	cfg.Owner = "svy1owner"
	cfg.GasStation = "svy1gas"
	cfg.ContractAddress = "svy1contract"
	cfg.ChannelEscrowAddress = "svy1escrow"
	cfg.Managers = []ManagerEntry{{Address: "svy1manager"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for manager without a public key")
	}
	cfg.Managers[0].PubKey = "0011"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

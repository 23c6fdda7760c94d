package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// ManagerEntry bootstraps one off-chain manager authority. PubKey is the
// hex-encoded 32-byte ed25519 public key.
type ManagerEntry struct {
	Address string `toml:"Address"`
	PubKey  string `toml:"PubKey"`
}

type Config struct {
	ListenAddress          string         `toml:"ListenAddress"`
	DataDir                string         `toml:"DataDir"`
	Env                    string         `toml:"Env"`
	LogFile                string         `toml:"LogFile"`
	ReceiverPrefix         string         `toml:"ReceiverPrefix"`
	RewardDenom            string         `toml:"RewardDenom"`
	ChannelID              string         `toml:"ChannelID"`
	Owner                  string         `toml:"Owner"`
	GasStation             string         `toml:"GasStation"`
	ContractAddress        string         `toml:"ContractAddress"`
	ChannelEscrowAddress   string         `toml:"ChannelEscrowAddress"`
	TransferTimeoutSeconds uint64         `toml:"TransferTimeoutSeconds"`
	Managers               []ManagerEntry `toml:"Managers"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path, cfg)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress:          ":8645",
		DataDir:                "./surveyd-data",
		Env:                    "dev",
		ReceiverPrefix:         "svy",
		RewardDenom:            "usvy",
		ChannelID:              "channel-0",
		TransferTimeoutSeconds: 600,
	}
}

func (c *Config) applyDefaults() {
	def := defaultConfig()
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = def.ListenAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = def.DataDir
	}
	if strings.TrimSpace(c.Env) == "" {
		c.Env = def.Env
	}
	if strings.TrimSpace(c.ReceiverPrefix) == "" {
		c.ReceiverPrefix = def.ReceiverPrefix
	}
	if strings.TrimSpace(c.RewardDenom) == "" {
		c.RewardDenom = def.RewardDenom
	}
	if strings.TrimSpace(c.ChannelID) == "" {
		c.ChannelID = def.ChannelID
	}
	if c.TransferTimeoutSeconds == 0 {
		c.TransferTimeoutSeconds = def.TransferTimeoutSeconds
	}
	if c.Managers == nil {
		c.Managers = []ManagerEntry{}
	}
}

// Validate checks the configuration for structural problems. Address syntax
// is enforced later when the ledger params are bootstrapped.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Owner) == "" {
		return fmt.Errorf("config: Owner is required")
	}
	if strings.TrimSpace(c.GasStation) == "" {
		return fmt.Errorf("config: GasStation is required")
	}
	if strings.TrimSpace(c.ContractAddress) == "" {
		return fmt.Errorf("config: ContractAddress is required")
	}
	if strings.TrimSpace(c.ChannelEscrowAddress) == "" {
		return fmt.Errorf("config: ChannelEscrowAddress is required")
	}
	for i, m := range c.Managers {
		if strings.TrimSpace(m.Address) == "" {
			return fmt.Errorf("config: Managers[%d].Address is required", i)
		}
		if strings.TrimSpace(m.PubKey) == "" {
			return fmt.Errorf("config: Managers[%d].PubKey is required", i)
		}
	}
	return nil
}

func createDefault(path string, cfg *Config) (*Config, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: create default %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

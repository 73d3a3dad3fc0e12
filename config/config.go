// Package config loads the façade's CodeGenerationConfig and the relay
// service's settings from a TOML file, writing a default file the first
// time one is missing at the configured path.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/actioncodes/protocol-core/types"
)

// CodeGeneration mirrors types.CodeGenerationConfig in TOML-friendly form.
type CodeGeneration struct {
	CodeLength  int   `toml:"code_length"`
	TTLMs       int64 `toml:"ttl_ms"`
	ClockSkewMs int64 `toml:"clock_skew_ms"`
}

// ToTypes converts c to the core's CodeGenerationConfig, normalized.
func (c CodeGeneration) ToTypes() types.CodeGenerationConfig {
	return types.CodeGenerationConfig{
		CodeLength:  c.CodeLength,
		TTLMs:       c.TTLMs,
		ClockSkewMs: c.ClockSkewMs,
	}.Normalize()
}

// Relay holds the HTTP relay service's own settings: address, admin auth,
// and the chains it should register adapters for.
type Relay struct {
	ListenAddress   string   `toml:"listen_address"`
	MetricsAddress  string   `toml:"metrics_address"`
	AdminJWTSecret  string   `toml:"admin_jwt_secret"`
	SupportedChains []string `toml:"supported_chains"`
}

// Config is the top-level document loaded from disk.
type Config struct {
	CodeGeneration CodeGeneration `toml:"code_generation"`
	Relay          Relay          `toml:"relay"`
}

// Default returns the configuration shipped when no file exists yet.
func Default() Config {
	return Config{
		CodeGeneration: CodeGeneration{
			CodeLength:  8,
			TTLMs:       120000,
			ClockSkewMs: 0,
		},
		Relay: Relay{
			ListenAddress:   ":8080",
			MetricsAddress:  ":9090",
			SupportedChains: []string{"solana"},
		},
	}
}

// Load reads path, writing and returning Default() if it does not exist.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return Config{}, fmt.Errorf("config: writing default config: %w", err)
		}
		return cfg, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: creating directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: creating %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	return nil
}

// Validate rejects configuration that would make the façade or relay
// unusable; it does not re-derive CodeGenerationConfig.Normalize's
// clamping, which is applied on conversion instead.
func (c Config) Validate() error {
	if c.CodeGeneration.TTLMs <= 0 {
		return fmt.Errorf("config: code_generation.ttl_ms must be positive")
	}
	if len(c.Relay.SupportedChains) == 0 {
		return fmt.Errorf("config: relay.supported_chains must not be empty")
	}
	if c.Relay.ListenAddress == "" {
		return fmt.Errorf("config: relay.listen_address must not be empty")
	}
	return nil
}

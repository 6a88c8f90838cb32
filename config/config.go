// Package config holds the probe's settings: built-in defaults matching the
// original C harness, an optional YAML file and command line overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	sheetprobe "github.com/wippyai/sheet-probe"
	"github.com/wippyai/sheet-probe/errors"
)

// Defaults of the original harness.
const (
	DefaultLibrary = "./target/release/liblayout_view.so"
	DefaultInput   = "./files/test_data.xlsx"
	DefaultFile    = "sheet-probe.yaml"
)

// Backend names.
const (
	BackendAuto   = "auto"
	BackendNative = "native"
	BackendWasm   = "wasm"
)

// validate is a package-level singleton; validators cache struct metadata.
var validate = validator.New()

// Config is the complete probe configuration.
type Config struct {
	Mounts           map[string]string  `yaml:"mounts,omitempty"`
	Symbols          sheetprobe.Symbols `yaml:"symbols"`
	Library          string             `yaml:"library" validate:"required"`
	Input            string             `yaml:"input" validate:"required"`
	Backend          string             `yaml:"backend" validate:"oneof=auto native wasm"`
	Format           string             `yaml:"format" validate:"oneof=raw text json markdown"`
	MemoryLimitPages uint32             `yaml:"memory_limit_pages,omitempty" validate:"lte=65536"`
	Now              bool               `yaml:"now"`
	Global           bool               `yaml:"global"`
	CheckInput       bool               `yaml:"check_input"`
	Verbose          bool               `yaml:"verbose"`
}

// DefaultConfig returns the configuration of the original harness: fixed
// library and input paths, lazy binding, raw output.
func DefaultConfig() *Config {
	return &Config{
		Library:    DefaultLibrary,
		Input:      DefaultInput,
		Backend:    BackendAuto,
		Format:     "raw",
		Symbols:    sheetprobe.DefaultSymbols(),
		CheckInput: true,
	}
}

// Load loads configuration from a YAML file over the defaults. A missing
// file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Symbols = cfg.Symbols.WithDefaults()

	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "config validation failed")
	}
	return nil
}

// ResolveBackend returns the concrete backend for the library path: files
// ending in .wasm run under the WebAssembly backend, everything else is
// opened with the platform loader.
func (c *Config) ResolveBackend() string {
	if c.Backend != "" && c.Backend != BackendAuto {
		return c.Backend
	}
	if strings.EqualFold(filepath.Ext(c.Library), ".wasm") {
		return BackendWasm
	}
	return BackendNative
}

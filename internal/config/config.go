// Package config holds the remediation run configuration: target
// project layout, validation commands, loop bounds, and the strategy
// list.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StrategyConfig names one fixer configuration.
type StrategyConfig struct {
	Name string   `yaml:"name"`
	Args []string `yaml:"args"`
}

// Config holds configuration for one remediation run.
type Config struct {
	// Manifest and Lockfile are the dependency-declaration files,
	// relative to the project directory.
	Manifest string
	Lockfile string

	// InstallCommand and TestCommand are argv-style validation
	// commands. Both must exit zero for a candidate set to be accepted.
	InstallCommand []string
	TestCommand    []string

	// Strategies are evaluated sequentially; the outcome leaving the
	// fewest remaining vulnerabilities wins.
	Strategies []StrategyConfig

	// MaxRounds caps one strategy's convergence loop.
	// Range: 1-1000.
	MaxRounds int

	// GateTimeoutSeconds bounds each validation gate. A timed-out gate
	// counts as a failure. Range: 0-86400; 0 disables the bound.
	GateTimeoutSeconds int

	// ScannerPath is the fixer executable. Empty resolves
	// "osv-scanner" from PATH.
	ScannerPath string

	// HistoryPath is the sqlite round-ledger file. Empty disables the
	// ledger.
	HistoryPath string
}

// Default returns the default configuration, matching the npm project
// layout the guided-remediation workflow was built around.
func Default() Config {
	return Config{
		Manifest:       "package.json",
		Lockfile:       "package-lock.json",
		InstallCommand: []string{"npm", "ci"},
		TestCommand:    []string{"npm", "run", "test"},
		Strategies: []StrategyConfig{
			{Name: "in-place", Args: []string{"--strategy=in-place"}},
			{Name: "relock", Args: []string{"--strategy=relock"}},
		},
		MaxRounds:          30,
		GateTimeoutSeconds: 1800,
	}
}

// Validate checks that the configuration has usable values.
func (c *Config) Validate() error {
	if c.Manifest == "" {
		return fmt.Errorf("manifest file is required")
	}
	if c.Lockfile == "" {
		return fmt.Errorf("lockfile is required")
	}
	if len(c.InstallCommand) == 0 {
		return fmt.Errorf("install command is required")
	}
	if len(c.TestCommand) == 0 {
		return fmt.Errorf("test command is required")
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("at least one strategy is required")
	}
	for i, s := range c.Strategies {
		if s.Name == "" {
			return fmt.Errorf("strategy %d has no name", i)
		}
	}
	if c.MaxRounds < 1 || c.MaxRounds > 1000 {
		return fmt.Errorf("max_rounds must be between 1 and 1000 (got %d)", c.MaxRounds)
	}
	if c.GateTimeoutSeconds < 0 || c.GateTimeoutSeconds > 86400 {
		return fmt.Errorf("gate_timeout_seconds must be between 0 and 86400 (got %d)", c.GateTimeoutSeconds)
	}
	return nil
}

// GateTimeout returns the per-gate bound as a time.Duration.
func (c *Config) GateTimeout() time.Duration {
	return time.Duration(c.GateTimeoutSeconds) * time.Second
}

// FromEnv returns the default configuration with environment overrides
// applied.
//
// Environment variables:
//   - AUTOPATCH_MANIFEST, AUTOPATCH_LOCKFILE
//   - AUTOPATCH_INSTALL_CMD, AUTOPATCH_TEST_CMD (whitespace-split argv;
//     no shell quoting)
//   - AUTOPATCH_MAX_ROUNDS, AUTOPATCH_GATE_TIMEOUT_SECONDS
//   - AUTOPATCH_SCANNER_PATH, AUTOPATCH_HISTORY_DB
func FromEnv() (Config, error) {
	cfg := Default()

	if v := os.Getenv("AUTOPATCH_MANIFEST"); v != "" {
		cfg.Manifest = v
	}
	if v := os.Getenv("AUTOPATCH_LOCKFILE"); v != "" {
		cfg.Lockfile = v
	}
	if v := os.Getenv("AUTOPATCH_INSTALL_CMD"); v != "" {
		cfg.InstallCommand = strings.Fields(v)
	}
	if v := os.Getenv("AUTOPATCH_TEST_CMD"); v != "" {
		cfg.TestCommand = strings.Fields(v)
	}
	if v := os.Getenv("AUTOPATCH_SCANNER_PATH"); v != "" {
		cfg.ScannerPath = v
	}
	if v := os.Getenv("AUTOPATCH_HISTORY_DB"); v != "" {
		cfg.HistoryPath = v
	}

	if err := parseEnvInt("AUTOPATCH_MAX_ROUNDS", &cfg.MaxRounds); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("AUTOPATCH_GATE_TIMEOUT_SECONDS", &cfg.GateTimeoutSeconds); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// LoadStrategies reads a YAML strategy list:
//
//	strategies:
//	  - name: in-place
//	    args: ["--strategy=in-place"]
//	  - name: relock-minor
//	    args: ["--strategy=relock", "--upgrade-config=minor"]
func LoadStrategies(path string) ([]StrategyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read strategies file: %w", err)
	}

	var doc struct {
		Strategies []StrategyConfig `yaml:"strategies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse strategies file %s: %w", path, err)
	}
	if len(doc.Strategies) == 0 {
		return nil, fmt.Errorf("strategies file %s defines no strategies", path)
	}
	return doc.Strategies, nil
}

// parseEnvInt parses an integer environment variable into target,
// leaving it unchanged when the variable is unset.
func parseEnvInt(name string, target *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", name, v, err)
	}
	*target = n
	return nil
}

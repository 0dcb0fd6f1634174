package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"os"
	"path/filepath"

	"github.com/virto-network/subskribinto/extrinsicClient/constant"
)

//go:embed default_config.json
var defaultConfigJSON []byte

func validateConfig(cfg *Config) error {
	if cfg.LogLevel < 0 || cfg.LogLevel > 5 {
		return fmt.Errorf("log level must be between 0 and 5")
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return fmt.Errorf("log format must be 'json' or 'console'")
	}

	if cfg.Endpoint == "" {
		cfg.Endpoint = "ws://127.0.0.1:9944"
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint must use ws:// or wss://")
	}

	if cfg.SubmitMode == "" {
		cfg.SubmitMode = SubmitModeWatch
	}
	if cfg.SubmitMode != SubmitModeWatch && cfg.SubmitMode != SubmitModeFireAndWait {
		return fmt.Errorf("submit mode must be 'watch' or 'submit'")
	}

	if cfg.Tip == "" {
		cfg.Tip = "0"
	}
	if tip, ok := new(big.Int).SetString(cfg.Tip, 10); !ok || tip.Sign() < 0 {
		return fmt.Errorf("tip must be a non-negative decimal integer")
	}

	if cfg.SS58Prefix < -1 || cfg.SS58Prefix > 16383 {
		return fmt.Errorf("ss58 prefix must be -1 or between 0 and 16383")
	}

	if cfg.DialTimeoutSeconds == 0 {
		cfg.DialTimeoutSeconds = 30
	}
	if cfg.DialRetries == 0 {
		cfg.DialRetries = 3
	}
	if cfg.RequestTimeoutSeconds == 0 {
		cfg.RequestTimeoutSeconds = 30
	}

	return nil
}

// Validate checks cfg and fills defaults for unset fields.
func Validate(cfg *Config) error {
	return validateConfig(cfg)
}

// Save writes the given config to <basePath>/config/subskribinto_config.json.
func Save(cfg *Config, basePath string) error {
	if err := validateConfig(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	configDir := filepath.Join(basePath, constant.ConfigSubdir)
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := filepath.Join(configDir, constant.ConfigFileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Load reads the config from <basePath>/config/subskribinto_config.json.
// Fields missing from the file keep their embedded default values.
func Load(basePath string) (Config, error) {
	configFile := filepath.Join(basePath, constant.ConfigSubdir, constant.ConfigFileName)
	data, err := os.ReadFile(filepath.Clean(configFile))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := LoadDefaultConfig()
	if err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return *cfg, nil
}

// LoadDefaultConfig loads the default configuration from embedded JSON
func LoadDefaultConfig() (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(defaultConfigJSON, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}

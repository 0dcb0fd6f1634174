package config

import "time"

// SubmitMode selects how far the submission is tracked.
type SubmitMode string

const (
	// SubmitModeWatch tracks the extrinsic through inclusion to finality.
	SubmitModeWatch SubmitMode = "watch"

	// SubmitModeFireAndWait returns as soon as the node accepts the extrinsic into its pool.
	SubmitModeFireAndWait SubmitMode = "submit"
)

type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home"` // Home directory (default: ~/.subskribinto)

	// Chain connection
	Endpoint              string `json:"endpoint"`                // websocket RPC endpoint (default: ws://127.0.0.1:9944)
	DialTimeoutSeconds    int    `json:"dial_timeout_seconds"`    // per-attempt dial timeout (default: 30)
	DialRetries           int    `json:"dial_retries"`            // dial attempts before giving up (default: 3)
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"` // timeout for single RPC requests (default: 30)

	// Extrinsic construction
	SubmitMode      SubmitMode `json:"submit_mode"`      // "watch" or "submit"
	MortalityPeriod uint64     `json:"mortality_period"` // 0 = immortal, otherwise blocks (rounded to a power of two)
	Tip             string     `json:"tip"`              // decimal tip in the chain's smallest unit
	SS58Prefix      int        `json:"ss58_prefix"`      // -1 = read System.SS58Prefix from the runtime
}

// DialTimeout returns the per-attempt dial timeout.
func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSeconds) * time.Second
}

// RequestTimeout returns the timeout applied to single RPC requests.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

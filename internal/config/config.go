package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// HTTP
	HTTPTimeout   time.Duration
	UserAgent     string
	Proxy         string
	RetryAttempts int

	// Scheduling. Left unset, the per-site values from the sites file apply.
	RequestDelay time.Duration
	MaxPages     int

	// Ledger / exhaustion
	LedgerBackend      string
	StopEarly          bool
	DuplicateThreshold int

	// Paths
	OutputDir string
	SitesFile string
}

// Load builds a Config by combining defaults, environment variables, and CLI flags.
// Caller should pass the root *cobra.Command so flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := &Config{
		LogLevel:           DefaultLogLevel,
		JSONLog:            DefaultJSONLog,
		HTTPTimeout:        DefaultHTTPTimeout,
		UserAgent:          DefaultUserAgent,
		RetryAttempts:      DefaultRetryAttempts,
		RequestDelay:       UnsetDelay,
		LedgerBackend:      DefaultLedgerBackend,
		StopEarly:          DefaultStopEarly,
		DuplicateThreshold: DefaultDuplicateThreshold,
		OutputDir:          DefaultOutputDir,
		SitesFile:          DefaultSitesFile,
	}

	applyEnv(cfg)

	if cmd != nil {
		applyFlags(cmd, cfg)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HARVEST_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("HARVEST_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("HARVEST_OUTPUT"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("HARVEST_SITES"); v != "" {
		cfg.SitesFile = v
	}
	if v := os.Getenv("HARVEST_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestDelay = d
		}
	}
	if v := os.Getenv("HARVEST_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPages = n
		}
	}
}

func applyFlags(cmd *cobra.Command, cfg *Config) {
	str := func(name string) string {
		if f := cmd.Flags().Lookup(name); f != nil {
			return f.Value.String()
		}
		return ""
	}
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if s := str("user-agent"); s != "" {
		cfg.UserAgent = s
	}
	if s := str("proxy"); s != "" {
		cfg.Proxy = s
	}
	if s := str("config"); s != "" {
		cfg.SitesFile = s
	}
	if s := str("output"); s != "" {
		cfg.OutputDir = s
	}
	if s := str("ledger"); s != "" {
		cfg.LedgerBackend = s
	}
	if s := str("timeout"); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			cfg.HTTPTimeout = d
		}
	}
	if changed("delay") {
		if d, err := time.ParseDuration(str("delay")); err == nil {
			cfg.RequestDelay = d
		}
	}
	if changed("max-pages") {
		if n, err := strconv.Atoi(str("max-pages")); err == nil {
			cfg.MaxPages = n
		}
	}
	if changed("stop-early") {
		cfg.StopEarly = str("stop-early") == "true"
	}
	if changed("duplicate-threshold") {
		if n, err := strconv.Atoi(str("duplicate-threshold")); err == nil {
			cfg.DuplicateThreshold = n
		}
	}
	if str("json") == "true" {
		cfg.JSONLog = true
	}
	if str("quiet") == "true" {
		cfg.LogLevel = "error"
	}
	if str("verbose") == "true" {
		cfg.LogLevel = "debug"
	}
}

package config

import "fmt"

func validate(c *Config) error {
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.RequestDelay < 0 && c.RequestDelay != UnsetDelay {
		return fmt.Errorf("request delay must be >= 0")
	}
	if c.MaxPages < 0 || c.MaxPages > DefaultMaxAllowedPages {
		return fmt.Errorf("max pages must be between 0 (sites file) and %d", DefaultMaxAllowedPages)
	}
	if c.DuplicateThreshold < 0 {
		return fmt.Errorf("duplicate threshold must be >= 0")
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("retry attempts must be > 0")
	}
	switch c.LedgerBackend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("unknown ledger backend %q (must be json or sqlite)", c.LedgerBackend)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory is required")
	}
	return nil
}

package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel           = "info"
	DefaultJSONLog            = false
	DefaultUserAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultHTTPTimeout        = 30 * time.Second
	DefaultRequestDelay       = 1 * time.Second
	DefaultMaxPages           = 4
	DefaultMaxAllowedPages    = 1000
	DefaultOutputDir          = "output"
	DefaultSitesFile          = "sites.yaml"
	DefaultLedgerBackend      = "json"
	DefaultStopEarly          = true
	DefaultDuplicateThreshold = 0
	DefaultRetryAttempts      = 3

	// UnsetDelay marks a request delay that was not given on the command line or environment
	UnsetDelay time.Duration = -1
)

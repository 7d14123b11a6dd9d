package config

import "github.com/spf13/cobra"

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress all output except errors")
	cmd.PersistentFlags().Bool("json", false, "Emit logs as JSON on stderr")
	cmd.PersistentFlags().String("proxy", "", "Set HTTP proxy (e.g., http://localhost:8080)")
	cmd.PersistentFlags().String("timeout", "30s", "Connect/read timeout per request")
	cmd.PersistentFlags().String("user-agent", "", "Custom user agent string")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to the sites YAML file (default sites.yaml)")
	cmd.PersistentFlags().StringP("output", "o", "", "Output root directory")
	cmd.PersistentFlags().String("ledger", "", "Ledger backend: json or sqlite")
}

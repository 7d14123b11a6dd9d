package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/law-makers/harvest/internal/ui"
	"github.com/spf13/cobra"
)

var ledgerLimit int

// ledgerCmd shows what a site's ledger already holds
var ledgerCmd = &cobra.Command{
	Use:   "ledger <site>",
	Short: "Show the announcements already processed for a site",
	Example: `  # Most recent 20 entries
  harvest ledger kidp

  # Everything in the sqlite backend
  harvest ledger kidp --ledger sqlite --limit 0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetAppFromCmd(cmd)
		if a == nil {
			return fmt.Errorf("application not initialized")
		}

		led, err := a.OpenLedger(args[0])
		if err != nil {
			return err
		}
		defer led.Close()

		entries := led.Entries()
		fmt.Fprintf(os.Stdout, "%s %d entries\n", ui.Bold(args[0]), len(entries))

		start := 0
		if ledgerLimit > 0 && len(entries) > ledgerLimit {
			start = len(entries) - ledgerLimit
		}
		for _, e := range entries[start:] {
			fmt.Fprintf(os.Stdout, "  %s  %s\n",
				ui.Dim(e.ProcessedAt.Local().Format(time.DateTime)), e.Identity)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.Flags().IntVar(&ledgerLimit, "limit", 20, "Show only the most recent entries (0 for all)")
}

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/law-makers/harvest/internal/ui"
	"github.com/spf13/cobra"
)

// sitesCmd lists the configured sites
var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "List the sites defined in the sites file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetAppFromCmd(cmd)
		if a == nil {
			return fmt.Errorf("application not initialized")
		}

		codes := a.Sites.Codes()
		width := 0
		for _, c := range codes {
			if len(c) > width {
				width = len(c)
			}
		}
		for _, code := range codes {
			s, _ := a.Sites.Site(code)
			fmt.Fprintf(os.Stdout, "%s%s  %s %s\n",
				ui.Accent(code), strings.Repeat(" ", width-len(code)),
				s.Name, ui.Dim("["+s.Type+"]"))
			fmt.Fprintf(os.Stdout, "%s  %s\n", strings.Repeat(" ", width), ui.Dim(s.ListURL))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}

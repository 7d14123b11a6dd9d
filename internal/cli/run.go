package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/law-makers/harvest/internal/app"
	"github.com/law-makers/harvest/internal/config"
	"github.com/law-makers/harvest/internal/engine"
	"github.com/law-makers/harvest/internal/output"
	"github.com/law-makers/harvest/internal/ui"
	"github.com/law-makers/harvest/internal/utils/headers"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	runHeaders []string
	runAll     bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <site...>",
	Short: "Harvest new announcements from one or more sites",
	Long: `Walks each site's list pages in order, saves every announcement not yet in
the site's ledger together with its attachments, and writes a run report.

Sites are harvested one after another. A failing site does not stop the others.`,
	Example: `  # Harvest a single site
  harvest run kidp

  # Harvest every configured site, at most 2 list pages each
  harvest run --all --max-pages 2

  # Slow down and keep paging past fully-seen pages
  harvest run djbea --delay 3s --stop-early=false`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runAll, "all", false, "Harvest every site in the sites file")
	runCmd.Flags().String("delay", "", "Delay between requests to the same host (e.g. 2s)")
	runCmd.Flags().Int("max-pages", 0, "Maximum list pages per site (0 uses the sites file)")
	runCmd.Flags().Bool("stop-early", config.DefaultStopEarly, "Stop at the first list page whose announcements were all seen")
	runCmd.Flags().Int("duplicate-threshold", config.DefaultDuplicateThreshold, "With --stop-early, also stop at a page with this many seen announcements")
	runCmd.Flags().StringArrayVarP(&runHeaders, "header", "H", []string{}, "Extra request header (e.g., -H \"Cookie: a=b\")")
}

func runRun(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}

	codes := args
	if runAll {
		codes = a.Sites.Codes()
	}
	if len(codes) == 0 {
		return fmt.Errorf("at least one site code is required (or --all)")
	}
	for _, code := range codes {
		if _, err := a.Sites.Site(code); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	extra := headers.ParseHeaders(runHeaders)
	showBar := a.Config.LogLevel != "debug" && a.Config.LogLevel != "error" && !a.Config.JSONLog

	failed := 0
	for _, code := range codes {
		progress := &pageProgress{site: code, enabled: showBar}
		report, err := a.Harvest(ctx, code, app.RunOptions{Headers: extra, Observer: progress.observer()})
		progress.done(0)

		if errors.Is(err, engine.ErrCancelled) {
			printSummary(code, report)
			log.Warn().Str("site", code).Msg("Interrupted, ledger saved")
			return err
		}
		if err != nil {
			log.Error().Err(err).Str("site", code).Msg("Site harvest failed")
			fmt.Fprintf(os.Stdout, "%s %s\n", ui.Mark(ui.OutcomeFailed), ui.Bold(code))
			failed++
			continue
		}
		printSummary(code, report)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sites failed", failed, len(codes))
	}
	return nil
}

func printSummary(code string, r *output.RunReport) {
	if r == nil {
		return
	}
	c := r.Counts()
	outcome := ui.OutcomeClean
	if c[output.StatusFailed] > 0 || c[output.StatusPartial] > 0 || len(r.PageErrors) > 0 {
		outcome = ui.OutcomeDegraded
	}
	fmt.Fprintf(os.Stdout, "%s %s  %s complete  %d partial  %d failed  %s\n",
		ui.Mark(outcome),
		ui.Bold(code),
		ui.Success(fmt.Sprint(c[output.StatusComplete])),
		c[output.StatusPartial],
		c[output.StatusFailed],
		ui.Info(fmt.Sprintf("(pages %d, skipped %d, stop %s)", r.PagesVisited, r.Skipped, r.StopReason)),
	)
}

// pageProgress draws one progress bar per list page
type pageProgress struct {
	site    string
	enabled bool
	bar     *progressbar.ProgressBar
}

func (p *pageProgress) observer() engine.Observer {
	return engine.Observer{PageStart: p.start, Processed: p.step, PageDone: p.done}
}

func (p *pageProgress) start(page, fresh int) {
	if !p.enabled || fresh == 0 {
		return
	}
	p.bar = progressbar.NewOptions(fresh,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(fmt.Sprintf("%s page %d", p.site, page)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

func (p *pageProgress) step(*output.Manifest) {
	if p.bar != nil {
		_ = p.bar.Add(1)
	}
}

func (p *pageProgress) done(int) {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}

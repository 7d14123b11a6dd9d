package config

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "harvest"}
	RegisterFlags(cmd)
	cmd.Flags().String("delay", "", "")
	cmd.Flags().Int("max-pages", 0, "")
	cmd.Flags().Bool("stop-early", DefaultStopEarly, "")
	cmd.Flags().Int("duplicate-threshold", DefaultDuplicateThreshold, "")
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newTestCmd(t))
	require.NoError(t, err)

	assert.Equal(t, DefaultSitesFile, cfg.SitesFile)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, UnsetDelay, cfg.RequestDelay)
	assert.Equal(t, 0, cfg.MaxPages)
	assert.True(t, cfg.StopEarly)
	assert.Equal(t, "json", cfg.LedgerBackend)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("HARVEST_OUTPUT", "/env/out")
	t.Setenv("HARVEST_MAX_PAGES", "7")

	cfg, err := Load(newTestCmd(t,
		"-o", "/flag/out",
		"--delay", "250ms",
		"--stop-early=false",
		"--ledger", "sqlite",
		"-v",
	))
	require.NoError(t, err)

	assert.Equal(t, "/flag/out", cfg.OutputDir)
	assert.Equal(t, 7, cfg.MaxPages)
	assert.Equal(t, 250*time.Millisecond, cfg.RequestDelay)
	assert.False(t, cfg.StopEarly)
	assert.Equal(t, "sqlite", cfg.LedgerBackend)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadRejectsInvalid(t *testing.T) {
	_, err := Load(newTestCmd(t, "--ledger", "redis"))
	assert.ErrorContains(t, err, "unknown ledger backend")

	_, err = Load(newTestCmd(t, "--max-pages", "5000"))
	assert.ErrorContains(t, err, "max pages")
}

package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapText(t *testing.T) {
	got := WrapText("one two three four\n\nfive", 9)
	assert.Equal(t, "one two\nthree\nfour\n\nfive", got)
}

func TestParseFlagUsages(t *testing.T) {
	usages := "      --all            Harvest every site\n" +
		"  -H, --header stringArray   Extra request header\n" +
		"                             repeatable\n" +
		"      --quiet\n"

	rows := parseFlagUsages(usages)
	require.Len(t, rows, 3)
	assert.Equal(t, "--all", rows[0].name)
	assert.Equal(t, []string{"Harvest every site"}, rows[0].desc)
	assert.Equal(t, "-H, --header stringArray", rows[1].name)
	assert.Equal(t, []string{"Extra request header", "repeatable"}, rows[1].desc)
	assert.Empty(t, rows[2].desc)
}

func TestRenderHelpListsCommands(t *testing.T) {
	root := &cobra.Command{Use: "harvest", Short: "Harvest boards"}
	root.AddCommand(&cobra.Command{Use: "run", Short: "Harvest sites", Run: func(*cobra.Command, []string) {}})
	root.AddCommand(&cobra.Command{Use: "sites", Short: "List sites", Run: func(*cobra.Command, []string) {}})

	var buf bytes.Buffer
	RenderHelp(&buf, root)
	out := buf.String()

	assert.Contains(t, out, "HARVEST")
	assert.Contains(t, out, Accent("run")+strings.Repeat(" ", 4)+Dim("Harvest sites"))
	assert.Contains(t, out, Accent("sites")+strings.Repeat(" ", 2)+Dim("List sites"))
}

func TestMark(t *testing.T) {
	assert.Equal(t, Success("✓"), Mark(OutcomeClean))
	assert.Equal(t, Warn("!"), Mark(OutcomeDegraded))
	assert.Equal(t, Error("✗"), Mark(OutcomeFailed))
	assert.Equal(t, "", Bold(""))
}

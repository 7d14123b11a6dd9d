package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const (
	helpWidth    = 80
	minFlagWidth = 28
)

// RenderHelp writes the colorized help page for cmd.
func RenderHelp(w io.Writer, cmd *cobra.Command) {
	fmt.Fprintf(w, "\n%s\n", paint(ColorBold+ColorCyan, strings.ToUpper(cmd.Name())))
	if cmd.Short != "" {
		fmt.Fprintln(w, cmd.Short)
	}
	if cmd.Long != "" && cmd.Long != cmd.Short {
		fmt.Fprintf(w, "\n%s\n", WrapText(cmd.Long, helpWidth))
	}

	usageLines(w, cmd)
	if cmd.HasExample() {
		heading(w, "Examples")
		examples(w, cmd.Example)
	}
	commandTable(w, cmd)
	if cmd.HasAvailableLocalFlags() {
		heading(w, "Flags")
		FlagTable(w, cmd.LocalFlags().FlagUsages())
	}
	if cmd.HasAvailableInheritedFlags() {
		heading(w, "Global Flags")
		FlagTable(w, cmd.InheritedFlags().FlagUsages())
	}

	if cmd.HasAvailableSubCommands() {
		footer(w, cmd.CommandPath()+" "+Warn("<command>"))
	}
	fmt.Fprintln(w)
}

// RenderUsage writes the short form shown after a usage error.
func RenderUsage(w io.Writer, cmd *cobra.Command) {
	usageLines(w, cmd)
	commandTable(w, cmd)
	if cmd.HasAvailableLocalFlags() {
		heading(w, "Flags")
		FlagTable(w, cmd.LocalFlags().FlagUsages())
	}
	footer(w, cmd.CommandPath())
}

func heading(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", paint(ColorBold+ColorWhite, title))
}

func footer(w io.Writer, invocation string) {
	fmt.Fprintf(w, "\n%s\n", Dim(fmt.Sprintf("Use \"%s %s\" for more information.", invocation, Success("--help"))))
}

func usageLines(w io.Writer, cmd *cobra.Command) {
	heading(w, "Usage")
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s\n", Accent(cmd.UseLine()))
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s %s %s\n", Accent(cmd.CommandPath()), Warn("<command>"), Dim("[flags]"))
	}
}

// examples prints "# comment" lines dimmed and everything else as a shell prompt.
func examples(w io.Writer, text string) {
	afterCommand := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "#"):
			if afterCommand {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "  %s\n", Dim(line))
			afterCommand = false
		default:
			fmt.Fprintf(w, "  %s\n", Success("$ "+line))
			afterCommand = true
		}
	}
}

func commandTable(w io.Writer, cmd *cobra.Command) {
	if !cmd.HasAvailableSubCommands() {
		return
	}
	var subs []*cobra.Command
	width := 0
	for _, c := range cmd.Commands() {
		if !c.IsAvailableCommand() || c.Name() == "help" {
			continue
		}
		subs = append(subs, c)
		width = max(width, len(c.Name()))
	}

	heading(w, "Commands")
	for _, c := range subs {
		fmt.Fprintf(w, "  %s%s%s\n", Accent(c.Name()), strings.Repeat(" ", width-len(c.Name())+2), Dim(c.Short))
	}
}

type flagRow struct {
	name string
	desc []string
}

// parseFlagUsages splits pflag's FlagUsages output into one row per flag,
// attaching continuation lines to the flag above them.
func parseFlagUsages(usages string) []flagRow {
	var rows []flagRow
	for _, line := range strings.Split(usages, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "-") {
			name, desc, _ := strings.Cut(trimmed, "  ")
			row := flagRow{name: strings.TrimSpace(name)}
			if desc = strings.TrimSpace(desc); desc != "" {
				row.desc = append(row.desc, desc)
			}
			rows = append(rows, row)
			continue
		}
		if len(rows) > 0 {
			last := &rows[len(rows)-1]
			last.desc = append(last.desc, trimmed)
		}
	}
	return rows
}

// FlagTable prints flag usages aligned in two columns.
func FlagTable(w io.Writer, usages string) {
	rows := parseFlagUsages(usages)
	width := minFlagWidth
	for _, r := range rows {
		width = max(width, len(r.name))
	}
	indent := strings.Repeat(" ", width+4)

	for _, r := range rows {
		pad := strings.Repeat(" ", width-len(r.name)+2)
		if len(r.desc) == 0 {
			fmt.Fprintf(w, "  %s\n", Accent(r.name))
			continue
		}
		fmt.Fprintf(w, "  %s%s%s\n", Accent(r.name), pad, Dim(r.desc[0]))
		for _, more := range r.desc[1:] {
			fmt.Fprintf(w, "%s%s\n", indent, Dim(more))
		}
	}
}

// WrapText wraps each paragraph of text at width columns.
func WrapText(text string, width int) string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, word := range words[1:] {
			if len(line)+1+len(word) > width {
				out = append(out, line)
				line = word
				continue
			}
			line += " " + word
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

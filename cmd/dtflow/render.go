package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dtflow/dtflow/pkg/dtflow/histo"
)

// Report colors
var (
	okColor   = lipgloss.Color("#00CC66")
	warnColor = lipgloss.Color("#FFCC00")
	badColor  = lipgloss.Color("#FF5555")
	dimColor  = lipgloss.Color("#666666")
)

// Report styles
var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(okColor)
	warnStyle  = lipgloss.NewStyle().Foreground(warnColor)
	badStyle   = lipgloss.NewStyle().Bold(true).Foreground(badColor)
	dimStyle   = lipgloss.NewStyle().Foreground(dimColor)
)

// newLogger builds the CLI logger: debug text when verbose, warnings
// only otherwise.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// renderReport formats a fill run for the terminal: the stage counters,
// everything that degraded, and one line per histogram.
func renderReport(res *histo.Result, rep *histo.Report) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Fill complete"))
	if !rep.Complete() {
		b.WriteString(" " + badStyle.Render("(partial)"))
	}
	b.WriteByte('\n')
	b.WriteString(dimStyle.Render(fmt.Sprintf("  run %s", rep.RunID)))
	b.WriteByte('\n')

	fmt.Fprintf(&b, "  Events:   %d\n", rep.Events)
	fmt.Fprintf(&b, "  Accepted: %s\n", okStyle.Render(fmt.Sprintf("%d", rep.Accepted)))
	fmt.Fprintf(&b, "  Rejected: %d\n", rep.Rejected)
	fmt.Fprintf(&b, "  Elapsed:  %s\n", rep.Elapsed.Round(time.Millisecond))

	if len(rep.Partitions) > 1 || !rep.Complete() {
		ok := len(rep.Partitions) - len(rep.FailedPartitions())
		fmt.Fprintf(&b, "  Partitions: %d/%d completed\n", ok, len(rep.Partitions))
		for _, p := range rep.FailedPartitions() {
			b.WriteString("    " + badStyle.Render(
				fmt.Sprintf("partition %d [%d:%d): %v", p.Partition, p.Lo, p.Hi, p.Err)))
			b.WriteByte('\n')
		}
	}

	if rep.MetaFailures > 0 {
		b.WriteString("  " + warnStyle.Render(
			fmt.Sprintf("%d metadata values degraded to nil", rep.MetaFailures)))
		b.WriteByte('\n')
	}
	if len(rep.EntityFailures) > 0 {
		for _, typ := range sortedKeys(rep.EntityFailures) {
			b.WriteString("  " + warnStyle.Render(
				fmt.Sprintf("%d %s entities aborted", rep.EntityFailures[typ], typ)))
			b.WriteByte('\n')
		}
	}
	if len(rep.ExtractErrors) > 0 {
		for _, name := range sortedKeys(rep.ExtractErrors) {
			b.WriteString("  " + warnStyle.Render(
				fmt.Sprintf("%s: %d extract errors", name, rep.ExtractErrors[name])))
			b.WriteByte('\n')
		}
	}
	for _, name := range sortedKeys(rep.Disabled) {
		b.WriteString("  " + badStyle.Render(
			fmt.Sprintf("%s: disabled: %s", name, rep.Disabled[name])))
		b.WriteByte('\n')
	}

	b.WriteString(titleStyle.Render("Histograms"))
	b.WriteByte('\n')
	for _, name := range res.Names() {
		s, _ := res.Histogram(name)
		fmt.Fprintf(&b, "  %-32s %s\n", name, summaryLine(s))
	}
	return b.String()
}

// summaryLine condenses one histogram to entries plus kind detail.
func summaryLine(s *histo.Summary) string {
	if s.Disabled != "" {
		return badStyle.Render("disabled: " + s.Disabled)
	}
	switch s.Kind {
	case histo.KindEfficiency:
		den := s.Den.Integral()
		eff := "n/a"
		if den > 0 {
			eff = fmt.Sprintf("%.3f", s.Num.Integral()/den)
		}
		return fmt.Sprintf("%8d entries  eff %s", s.Entries(), eff)
	default:
		return fmt.Sprintf("%8d entries  integral %.0f", s.Entries(), s.Dist.Integral())
	}
}

// writeResult writes the merged histograms as JSON.
func writeResult(path string, res *histo.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

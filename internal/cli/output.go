// Package cli formats command output for the estatehub binary.
package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/estatehub/marketplace/internal/app/services/scraper"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

// Printer writes status lines, colored when the target is a terminal.
type Printer struct {
	w        io.Writer
	colorize bool
}

// NewPrinter writes to w. Color is enabled only for terminals.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, colorize: isTerminal(w)}
}

func (p *Printer) line(color, mark, message string) {
	if p.colorize {
		fmt.Fprintf(p.w, "%s%s%s %s\n", color, mark, ColorReset, message)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", mark, message)
}

// Success prints a success message.
func (p *Printer) Success(format string, args ...any) {
	p.line(ColorGreen, "✓", fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (p *Printer) Error(format string, args ...any) {
	p.line(ColorRed, "✗", fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (p *Printer) Warning(format string, args ...any) {
	p.line(ColorYellow, "⚠", fmt.Sprintf(format, args...))
}

// Info prints an info message.
func (p *Printer) Info(format string, args ...any) {
	p.line(ColorBlue, "ℹ", fmt.Sprintf(format, args...))
}

// ScrapeRun prints a per-source table followed by the totals.
func (p *Printer) ScrapeRun(run scraper.Run) {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tFETCHED\tCREATED\tUPDATED\tFAILED\tDURATION\tERROR")
	for _, res := range run.Sources {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			res.Source, res.Fetched, res.Created, res.Updated, res.Failed, formatDuration(res.Duration), res.Error)
	}
	_ = tw.Flush()

	summary := fmt.Sprintf("run %s: %d fetched, %d created, %d updated, %d failed in %s",
		run.ID, run.Fetched, run.Created, run.Updated, run.Failed, formatDuration(run.FinishedAt.Sub(run.StartedAt)))
	if run.Failed > 0 || hasSourceError(run) {
		p.Warning("%s", summary)
		return
	}
	p.Success("%s", summary)
}

func hasSourceError(run scraper.Run) bool {
	for _, res := range run.Sources {
		if res.Error != "" {
			return true
		}
	}
	return false
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "< 1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/estatehub/marketplace/internal/app/services/scraper"
)

func TestPrinterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)
	p.Success("migrated %s", "up")
	p.Error("boom")

	out := buf.String()
	if strings.Contains(out, "\033[") {
		t.Fatalf("non-terminal output should not be colored: %q", out)
	}
	if !strings.Contains(out, "✓ migrated up\n") || !strings.Contains(out, "✗ boom\n") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestScrapeRunSummary(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	run := scraper.Run{
		ID:         "r1",
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
		Sources: []scraper.SourceResult{
			{Source: "mock", Fetched: 3, Created: 2, Updated: 1},
			{Source: "feed", Error: "status 502"},
		},
		Fetched: 3,
		Created: 2,
		Updated: 1,
	}

	var buf bytes.Buffer
	NewPrinter(&buf).ScrapeRun(run)
	out := buf.String()

	for _, want := range []string{"SOURCE", "mock", "status 502", "⚠ run r1: 3 fetched, 2 created, 1 updated, 0 failed in 1m30s"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		500 * time.Millisecond:    "< 1s",
		42 * time.Second:          "42s",
		125 * time.Second:         "2m5s",
		3*time.Hour + time.Minute: "3h1m",
	}
	for d, want := range cases {
		if got := formatDuration(d); got != want {
			t.Fatalf("formatDuration(%s) = %q, want %q", d, got, want)
		}
	}
}

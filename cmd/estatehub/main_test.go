package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "estatehub.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "estatehub dev") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestScrapeCommandImportsMockListings(t *testing.T) {
	path := writeConfig(t, `
scraper:
  count: 3
  seed: 7
logging:
  level: error
`)
	out, err := execute(t, "scrape", "--config", path, "--env-file", "")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if !strings.Contains(out, "3 fetched, 3 created, 0 updated, 0 failed") {
		t.Fatalf("unexpected summary:\n%s", out)
	}
}

func TestMigrateRequiresPostgres(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: error\n")
	_, err := execute(t, "migrate", "up", "--config", path, "--env-file", "")
	if err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Fatalf("expected postgres error, got %v", err)
	}
}

func TestUnknownConfigKeyFails(t *testing.T) {
	path := writeConfig(t, "bogus: 1\n")
	if _, err := execute(t, "scrape", "--config", path, "--env-file", ""); err == nil {
		t.Fatal("expected error for unknown config key")
	}
}

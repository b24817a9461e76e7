package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/treepull/pkg/pull"
)

func TestResolveRepoPathPrecedence(t *testing.T) {
	t.Setenv("TREEPULL_REPO", "/from/env")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if got, err := resolveRepoPath("/from/flag"); err != nil || got != "/from/flag" {
		t.Errorf("flag should win: %q %v", got, err)
	}
	if got, err := resolveRepoPath(""); err != nil || got != "/from/env" {
		t.Errorf("env should win over config: %q %v", got, err)
	}

	t.Setenv("TREEPULL_REPO", "")
	if _, err := resolveRepoPath(""); err == nil {
		t.Error("no repo anywhere should fail")
	}
}

func TestLoadToolConfig(t *testing.T) {
	configHome := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", configHome)

	dir := filepath.Join(configHome, appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := "repo = \"/data/repo\"\nparallel = 4\nprogress = false\n"
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadToolConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Repo != "/data/repo" || cfg.Parallel != 4 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Progress == nil || *cfg.Progress {
		t.Error("progress = false should parse")
	}

	// A malformed file is an error, not a silent default.
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("repo = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadToolConfig(); err == nil {
		t.Error("malformed config should fail")
	}
}

func TestLoadToolConfigMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := loadToolConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Repo != "" || cfg.Parallel != 0 || cfg.Progress != nil {
		t.Errorf("missing config should be zero: %+v", cfg)
	}
}

func TestStatusLine(t *testing.T) {
	line := statusLine(pull.Progress{
		ScannedMeta:        7,
		OutstandingFetches: 2,
		OutstandingWrites:  1,
		FetchedMeta:        3,
		RequestedMeta:      5,
		FetchedContent:     10,
		RequestedContent:   20,
		BytesPerSec:        2048,
		FetcherState:       "2 requests in flight",
	})
	for _, want := range []string{"scan: 7 metadata", "writing: 1 objects", "fetch: 3/5 metadata 10/20 content", "2.0 KiB/s"} {
		if !strings.Contains(line, want) {
			t.Errorf("status line missing %q: %s", want, line)
		}
	}

	// An idle scanner drops the scan segment.
	line = statusLine(pull.Progress{ScanIdle: true})
	if strings.Contains(line, "scan:") {
		t.Errorf("idle scan should not render: %s", line)
	}
}

func TestFormatRate(t *testing.T) {
	if got := formatRate(512); got != "512 B/s" {
		t.Errorf("formatRate(512) = %s", got)
	}
	if got := formatRate(1536); got != "1.5 KiB/s" {
		t.Errorf("formatRate(1536) = %s", got)
	}
}

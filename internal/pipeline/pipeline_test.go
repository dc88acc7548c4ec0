package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/valknut-dev/valknut/internal/vkconfig"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestRunOnSmallGoRepo(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", `package sample

func Complicated(x int) int {
	if x > 0 {
		if x > 10 {
			if x > 100 {
				return x * 2
			}
			return x
		}
	}
	return 0
}

func Helper() {
	Complicated(1)
}
`)

	cfg := vkconfig.Default()
	cfg.Roots = []vkconfig.RootConfig{{Path: dir}}
	cfg.Ranking.TopK = 10
	cfg.Detectors.Echo.Enabled = false
	vkconfig.ApplyRootDefaults(cfg)
	if err := vkconfig.Validate(cfg); err != nil {
		t.Fatalf("unexpected invalid config: %v", err)
	}

	pl, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	result, err := pl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.TotalFiles != 1 {
		t.Errorf("expected 1 discovered file, got %d", result.TotalFiles)
	}
	if len(result.Ranked) == 0 {
		t.Fatal("expected at least one ranked entity")
	}
	if _, ok := result.Indexes["go"]; !ok {
		t.Error("expected a go parse index in the result")
	}
}

func TestRunWithNoMatchingFilesProducesEmptyResult(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "README.md", "nothing to parse here")

	cfg := vkconfig.Default()
	cfg.Roots = []vkconfig.RootConfig{{Path: dir}}
	cfg.Detectors.Echo.Enabled = false
	vkconfig.ApplyRootDefaults(cfg)

	pl, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := pl.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Ranked) != 0 {
		t.Errorf("expected no ranked entities for a repo with no supported source, got %d", len(result.Ranked))
	}
}

func TestNewFailsOnBadCoverageReportPath(t *testing.T) {
	cfg := vkconfig.Default()
	cfg.Roots = []vkconfig.RootConfig{{Path: "."}}
	cfg.Coverage.ReportPath = filepath.Join(t.TempDir(), "does-not-exist.json")

	if _, err := New(cfg); err == nil {
		t.Fatal("expected New to fail fast on an unreadable coverage report")
	}
}

func TestNewFailsOnUnknownLanguage(t *testing.T) {
	cfg := vkconfig.Default()
	cfg.Languages = []string{"not-a-real-language"}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected New to fail on an unregistered language adapter")
	}
}

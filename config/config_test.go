package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.Retry.MaxAttempts != Default().Retry.MaxAttempts {
		t.Fatalf("expected default retry attempts, got %d", cfg.Retry.MaxAttempts)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
snapshot_store:
  backend: disk
  path: /var/lib/govanalytics
retry:
  base_ms: 100
  ceiling_ms: 2000
  max_attempts: 3
voting_blocks:
  min_overlap: 5
  similarity_threshold: 0.9
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SnapshotStore.Backend != "disk" || cfg.SnapshotStore.Path != "/var/lib/govanalytics" {
		t.Fatalf("unexpected snapshot store config: %+v", cfg.SnapshotStore)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("expected overridden max_attempts=3, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.VotingBlocks.MinOverlap != 5 {
		t.Fatalf("expected overridden min_overlap=5, got %d", cfg.VotingBlocks.MinOverlap)
	}
}

func TestValidateRejectsMissingDiskPath(t *testing.T) {
	path := writeTempConfig(t, "snapshot_store:\n  backend: disk\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for disk backend without path")
	}
}

func TestValidateRejectsBadSimilarityThreshold(t *testing.T) {
	path := writeTempConfig(t, "voting_blocks:\n  min_overlap: 3\n  similarity_threshold: 1.5\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for out-of-range similarity_threshold")
	}
}

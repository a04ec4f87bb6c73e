package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
anthropic:
  model: claude-haiku-3-5
server:
  addr: ":9090"
scheduler:
  concurrency: 2
  task_timeout: 10s
resolver:
  confidence_threshold: 0.7
  escalate_validation_failures: false
store:
  path: /tmp/parley-test.db
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Anthropic.Model != "claude-haiku-3-5" {
		t.Errorf("Model = %q", cfg.Anthropic.Model)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Addr = %q", cfg.Server.Addr)
	}
	if cfg.Scheduler.Concurrency != 2 {
		t.Errorf("Concurrency = %d", cfg.Scheduler.Concurrency)
	}
	if cfg.Scheduler.TaskTimeout != 10*time.Second {
		t.Errorf("TaskTimeout = %s", cfg.Scheduler.TaskTimeout)
	}
	if cfg.Resolver.ConfidenceThreshold != 0.7 {
		t.Errorf("ConfidenceThreshold = %v", cfg.Resolver.ConfidenceThreshold)
	}
	if cfg.Resolver.EscalateValidationFailures {
		t.Error("EscalateValidationFailures should be overridden to false")
	}
	if cfg.Store.Path != "/tmp/parley-test.db" {
		t.Errorf("Store.Path = %q", cfg.Store.Path)
	}
}

func TestLoadFromPathDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	want := Default()
	if cfg.Scheduler.Concurrency != want.Scheduler.Concurrency {
		t.Errorf("Concurrency = %d, want %d", cfg.Scheduler.Concurrency, want.Scheduler.Concurrency)
	}
	if cfg.Scheduler.TaskTimeout != want.Scheduler.TaskTimeout {
		t.Errorf("TaskTimeout = %s, want %s", cfg.Scheduler.TaskTimeout, want.Scheduler.TaskTimeout)
	}
	if cfg.Resolver.ConfidenceThreshold != want.Resolver.ConfidenceThreshold {
		t.Errorf("ConfidenceThreshold = %v", cfg.Resolver.ConfidenceThreshold)
	}
	if !cfg.Resolver.EscalateValidationFailures {
		t.Error("validation escalation should default on")
	}
	if !cfg.Store.SeedDemoData {
		t.Error("demo seed should default on")
	}
}

func TestBedrockEnvBinding(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("PARLEY_USE_BEDROCK", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Anthropic.UseAWSBedrock {
		t.Error("PARLEY_USE_BEDROCK=true should enable Bedrock")
	}
}

func TestAPIKeyEnvExpansion(t *testing.T) {
	t.Setenv("TEST_PARLEY_KEY", "sk-test-123")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "anthropic:\n  api_key: ${TEST_PARLEY_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-test-123" {
		t.Errorf("APIKey = %q, want expanded value", cfg.Anthropic.APIKey)
	}
}

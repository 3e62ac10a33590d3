package config

import (
	"testing"
	"time"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "secret")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is empty")
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fieldops")
	t.Setenv("JWT_ACCESS_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when JWT_ACCESS_SECRET is empty")
	}
}

func TestLoadAutomationDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fieldops")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "http://localhost:4200")
	t.Setenv("AUTOMATION_POLL_INTERVAL", "30s")
	t.Setenv("AUTOMATION_BATCH_SIZE", "not-a-number")
	t.Setenv("AUTOMATION_STUCK_AFTER", "0s")
	t.Setenv("AUTOMATION_GENERATION_TIMEOUT", "45s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetAutomationPollInterval() != 30*time.Second {
		t.Errorf("poll interval = %s", cfg.GetAutomationPollInterval())
	}
	if cfg.GetAutomationBatchSize() != 50 {
		t.Errorf("batch size = %d, want fallback 50", cfg.GetAutomationBatchSize())
	}
	if cfg.GetAutomationStuckAfter() != 0 {
		t.Errorf("stuck after = %s, want 0 (reaper disabled)", cfg.GetAutomationStuckAfter())
	}
}

func TestLoadRejectsWildcardWithCredentials(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fieldops")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for wildcard origin with credentials")
	}
}

func TestLoadDerivesTaskTimeoutFromGeneration(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fieldops")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "http://localhost:4200")
	t.Setenv("AUTOMATION_GENERATION_TIMEOUT", "3m")
	t.Setenv("AUTOMATION_STUCK_AFTER", "30m")
	t.Setenv("METRICS_ADDR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.GetAutomationTaskTimeout(); got != 4*time.Minute {
		t.Errorf("task timeout = %s, want 4m", got)
	}
	if cfg.GetAutomationTaskTimeout() <= cfg.GetGenerationTimeout() {
		t.Error("task timeout must leave room after generation")
	}
	if cfg.GetMetricsAddr() != "" {
		t.Errorf("metrics addr = %q, want empty (disabled)", cfg.GetMetricsAddr())
	}
}

func TestLoadRejectsStuckAfterInsideTaskTimeout(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fieldops")
	t.Setenv("JWT_ACCESS_SECRET", "secret")
	t.Setenv("CORS_ORIGINS", "http://localhost:4200")
	t.Setenv("AUTOMATION_GENERATION_TIMEOUT", "10m")
	t.Setenv("AUTOMATION_STUCK_AFTER", "5m")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when the reaper could reclaim a running task")
	}
}

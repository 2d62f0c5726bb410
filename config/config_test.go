package config

import (
	"os"
	"testing"
	"time"
)

// writeTempConfig creates a minimal configuration file required for LoadConfig
// and returns its path.
func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp("", "cfg-*.yml")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

const minimalConfig = `liqflow:
  name: "TestApp"
  version: "1.0"
`

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, minimalConfig)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Liqflow.Name != "TestApp" {
		t.Errorf("unexpected name: %s", cfg.Liqflow.Name)
	}
	if cfg.RateLimit.MaxWeightPerMinute != 1200 {
		t.Errorf("unexpected weight limit default: %d", cfg.RateLimit.MaxWeightPerMinute)
	}
	if cfg.RateLimit.SafeFraction != 0.8 {
		t.Errorf("unexpected safe fraction default: %v", cfg.RateLimit.SafeFraction)
	}
	if cfg.Aggregator.CacheTTL != 5*time.Minute {
		t.Errorf("unexpected cache ttl default: %v", cfg.Aggregator.CacheTTL)
	}
	if got := cfg.Aggregator.Priority; len(got) != 3 || got[0] != "binance" || got[1] != "okx" || got[2] != "coingecko" {
		t.Errorf("unexpected priority default: %v", got)
	}
	if cfg.Liquidation.BufferSize != 50 || cfg.Liquidation.FlushInterval != 10*time.Second {
		t.Errorf("unexpected liquidation buffer defaults: %d/%v", cfg.Liquidation.BufferSize, cfg.Liquidation.FlushInterval)
	}
	if cfg.Liquidation.StoreCapacity != 1000 {
		t.Errorf("unexpected store capacity default: %d", cfg.Liquidation.StoreCapacity)
	}
	if cfg.Heatmap.LiveTTL != 5*time.Minute || cfg.Heatmap.FallbackTTL != time.Minute {
		t.Errorf("unexpected heatmap ttl defaults: %v/%v", cfg.Heatmap.LiveTTL, cfg.Heatmap.FallbackTTL)
	}
}

func TestLoadConfigMissingName(t *testing.T) {
	path := writeTempConfig(t, "liqflow:\n  version: \"1.0\"\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for missing name")
	}
}

func TestLoadConfigUnknownPrioritySource(t *testing.T) {
	path := writeTempConfig(t, minimalConfig+`aggregator:
  priority: ["binance", "nosuchexchange"]
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected validation error for unknown priority source")
	}
}

func TestLoadConfigS3EnvOverride(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "env-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "env-secret")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("S3_BUCKET", "liqflow-archive")

	path := writeTempConfig(t, minimalConfig+`storage:
  s3:
    enabled: true
    bucket: "config-bucket"
    region: "us-east-1"
    access_key_id: "config-key"
    secret_access_key: "config-secret"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Storage.S3.Bucket != "liqflow-archive" {
		t.Errorf("expected env bucket override, got %s", cfg.Storage.S3.Bucket)
	}
	if cfg.Storage.S3.AccessKeyID != "env-key" || cfg.Storage.S3.Region != "eu-west-1" {
		t.Errorf("expected env credential override")
	}
}

func TestIsValidS3Bucket(t *testing.T) {
	valid := []string{"liqflow-data", "a1b", "my.bucket.name"}
	invalid := []string{"ab", "Invalid_Bucket", ".leading", "trailing.", "double..dot"}
	for _, name := range valid {
		if !isValidS3Bucket(name) {
			t.Errorf("expected %q to be valid", name)
		}
	}
	for _, name := range invalid {
		if isValidS3Bucket(name) {
			t.Errorf("expected %q to be invalid", name)
		}
	}
}

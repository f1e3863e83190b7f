package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "empty base url",
			mutate:  func(cfg *Config) { cfg.BaseURL = "" },
			wantErr: "base URL",
		},
		{
			name:    "base url without host",
			mutate:  func(cfg *Config) { cfg.BaseURL = "http://" },
			wantErr: "base URL",
		},
		{
			name:    "unknown engine",
			mutate:  func(cfg *Config) { cfg.Engine = "selenium" },
			wantErr: "engine",
		},
		{
			name:    "zero batch size",
			mutate:  func(cfg *Config) { cfg.BatchSize = 0 },
			wantErr: "batch size",
		},
		{
			name:    "negative concurrency",
			mutate:  func(cfg *Config) { cfg.Concurrency = -1 },
			wantErr: "concurrency",
		},
		{
			name:    "zero navigation timeout",
			mutate:  func(cfg *Config) { cfg.NavigationTimeout = 0 },
			wantErr: "navigation timeout",
		},
		{
			name:    "negative inter-batch delay",
			mutate:  func(cfg *Config) { cfg.InterBatchDelay = -time.Second },
			wantErr: "inter-batch delay",
		},
		{
			name:    "zero max pages",
			mutate:  func(cfg *Config) { cfg.MaxPages = 0 },
			wantErr: "max pages",
		},
		{
			name:    "unknown resource type",
			mutate:  func(cfg *Config) { cfg.BlockedResourceTypes = []string{"image", "video"} },
			wantErr: "blocked resource types",
		},
		{
			name:    "unknown failure policy",
			mutate:  func(cfg *Config) { cfg.FailurePolicy = "retry" },
			wantErr: "failure policy",
		},
		{
			name:    "unknown dedup keying",
			mutate:  func(cfg *Config) { cfg.DedupKeys = "deep" },
			wantErr: "dedup keying",
		},
		{
			name:    "json store without records file",
			mutate:  func(cfg *Config) { cfg.RecordsFile = "" },
			wantErr: "records files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.BatchSize != 50 || cfg.Concurrency != 5 || cfg.InterBatchDelay != 5*time.Second {
		t.Errorf("unexpected scheduler defaults: %+v", cfg)
	}
}

func TestLoadEnv(t *testing.T) {
	env := map[string]string{
		"HARVEST_BATCH_SIZE":             "20",
		"HARVEST_HEADLESS":               "false",
		"HARVEST_NAVIGATION_TIMEOUT":     "1m",
		"HARVEST_BLOCKED_RESOURCE_TYPES": "image, font",
		"HARVEST_STORE":                  "sqlite://data/harvest.db",
		"HARVEST_FAILURE_POLICY":         "placeholder",
	}
	cfg := DefaultConfig()
	if err := cfg.LoadEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}

	if cfg.BatchSize != 20 || cfg.Headless || cfg.NavigationTimeout != time.Minute {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.BlockedResourceTypes, []string{"image", "font"}) {
		t.Errorf("blocked = %q", cfg.BlockedResourceTypes)
	}
	if cfg.Store != "sqlite://data/harvest.db" || cfg.FailurePolicy != "placeholder" {
		t.Errorf("string overrides not applied: %+v", cfg)
	}
	if cfg.Concurrency != 5 {
		t.Errorf("unset variable changed concurrency to %d", cfg.Concurrency)
	}
}

func TestLoadEnvParseError(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadEnv(func(k string) string {
		if k == "HARVEST_CONCURRENCY" {
			return "five"
		}
		return ""
	})
	if err == nil || !strings.Contains(err.Error(), "HARVEST_CONCURRENCY") {
		t.Fatalf("expected error naming HARVEST_CONCURRENCY, got %v", err)
	}
}

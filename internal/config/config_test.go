package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", "")
	t.Setenv("NITTER_HOSTS", "")
	t.Setenv("HEATMAP_ZONE", "")
	t.Setenv("HEATMAP_START_HOUR", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.DataDir != "./data" {
		t.Errorf("Expected ./data, got %s", cfg.DataDir)
	}
	if cfg.RawFile != filepath.Join("./data", "x_raw.json") {
		t.Errorf("Expected raw file under data dir, got %s", cfg.RawFile)
	}
	if cfg.Zone != "America/Los_Angeles" {
		t.Errorf("Expected America/Los_Angeles, got %s", cfg.Zone)
	}
	if cfg.StartHour != 6 {
		t.Errorf("Expected default start hour 6, got %d", cfg.StartHour)
	}
	if cfg.RequestTimeout != 12*time.Second {
		t.Errorf("Expected default timeout 12s, got %s", cfg.RequestTimeout)
	}
	if cfg.Retries != 3 || cfg.MaxPerAccount != 200 || cfg.DaysBack != 14 {
		t.Errorf("Unexpected ingest defaults: retries=%d max=%d days=%d", cfg.Retries, cfg.MaxPerAccount, cfg.DaysBack)
	}
	if len(cfg.NitterHosts) != len(DefaultNitterHosts) {
		t.Errorf("Expected %d default hosts, got %d", len(DefaultNitterHosts), len(cfg.NitterHosts))
	}
	if cfg.ExcludePermalinks {
		t.Error("Expected ExcludePermalinks to default to false")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/heat")
	t.Setenv("HEATMAP_ZONE", "Europe/London")
	t.Setenv("HEATMAP_START_HOUR", "0")
	t.Setenv("NITTER_HOSTS", "https://a.example https://b.example")
	t.Setenv("TIMEOUT_MS", "500")
	t.Setenv("EXCLUDE_PERMALINKS", "true")
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}
	if cfg.RawFile != filepath.Join("/tmp/heat", "x_raw.json") {
		t.Errorf("RawFile = %s", cfg.RawFile)
	}
	if cfg.Zone != "Europe/London" || cfg.StartHour != 0 {
		t.Errorf("Zone/StartHour = %s/%d", cfg.Zone, cfg.StartHour)
	}
	if len(cfg.NitterHosts) != 2 || cfg.NitterHosts[1] != "https://b.example" {
		t.Errorf("NitterHosts = %v", cfg.NitterHosts)
	}
	if cfg.RequestTimeout != 500*time.Millisecond {
		t.Errorf("RequestTimeout = %s", cfg.RequestTimeout)
	}
	if !cfg.ExcludePermalinks {
		t.Error("Expected ExcludePermalinks true")
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %s", cfg.Port)
	}
}

func TestLoad_EmptyProxyDisablesFallback(t *testing.T) {
	t.Setenv("PROXY_PREFIX", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ProxyPrefix != "" {
		t.Errorf("Expected proxy disabled, got %q", cfg.ProxyPrefix)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "Start hour too large", key: "HEATMAP_START_HOUR", value: "24"},
		{name: "Negative start hour", key: "HEATMAP_START_HOUR", value: "-1"},
		{name: "Non-numeric start hour", key: "HEATMAP_START_HOUR", value: "six"},
		{name: "Unknown zone", key: "HEATMAP_ZONE", value: "Mars/Base"},
		{name: "Bad timeout", key: "TIMEOUT_MS", value: "soon"},
		{name: "Bad bool", key: "EXCLUDE_PERMALINKS", value: "maybe"},
		{name: "Bad host", key: "NITTER_HOSTS", value: "not-a-url"},
		{name: "Bad log level", key: "LOG_LEVEL", value: "loud"},
		{name: "Zero accounts cap", key: "MAX_PER_ACCOUNT", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() should fail for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	cfg := &Config{DataDir: "data"}
	if got := cfg.OutputPath("x_summary.json"); got != filepath.Join("data", "x_summary.json") {
		t.Errorf("OutputPath() = %s", got)
	}
}

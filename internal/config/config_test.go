package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/Wei-Shaw/tokengate/internal/domain"
)

// isolate points the config search at an empty directory so a developer's
// local config.yaml cannot leak into assertions.
func isolate(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Setenv("DATA_DIR", t.TempDir())
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Address() != "0.0.0.0:8080" {
		t.Fatalf("Server.Address() = %q", cfg.Server.Address())
	}
	if cfg.Storage.Driver != domain.StorageDriverRedis {
		t.Fatalf("Storage.Driver = %q, want redis", cfg.Storage.Driver)
	}
	if cfg.Issuer.Timeout() != 10*time.Second {
		t.Fatalf("Issuer.Timeout() = %v, want 10s", cfg.Issuer.Timeout())
	}
	if cfg.Issuer.MaxRetries != 3 {
		t.Fatalf("Issuer.MaxRetries = %d, want 3", cfg.Issuer.MaxRetries)
	}
	if cfg.Issuer.RetryBackoff() != 500*time.Millisecond {
		t.Fatalf("Issuer.RetryBackoff() = %v, want 500ms", cfg.Issuer.RetryBackoff())
	}
	if cfg.Issuer.BodyEncoding != domain.IssuanceBodyJSON {
		t.Fatalf("Issuer.BodyEncoding = %q, want json", cfg.Issuer.BodyEncoding)
	}
	if cfg.Cache.ExpiringSoon() != 5*time.Minute {
		t.Fatalf("Cache.ExpiringSoon() = %v, want 5m", cfg.Cache.ExpiringSoon())
	}
	if !cfg.AutoRefresh.Enabled {
		t.Fatalf("AutoRefresh.Enabled = false, want true")
	}
	if cfg.AutoRefresh.CheckInterval() != time.Minute {
		t.Fatalf("AutoRefresh.CheckInterval() = %v, want 1m", cfg.AutoRefresh.CheckInterval())
	}
	if cfg.Maintenance.Schedule != "*/30 * * * *" {
		t.Fatalf("Maintenance.Schedule = %q", cfg.Maintenance.Schedule)
	}
	if cfg.Credentials.Region != domain.RegionUS {
		t.Fatalf("Credentials.Region = %q, want us", cfg.Credentials.Region)
	}
	if cfg.Timezone != "UTC" {
		t.Fatalf("Timezone = %q, want UTC", cfg.Timezone)
	}
}

func TestLoadFromEnv(t *testing.T) {
	isolate(t)
	t.Setenv("ISSUER_MAX_RETRIES", "5")
	t.Setenv("ISSUER_TIMEOUT_SECONDS", "3")
	t.Setenv("CREDENTIALS_ENVIRONMENT_ID", "env-abc")
	t.Setenv("CREDENTIALS_CLIENT_ID", "client-1")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("STORAGE_SQLITE_PATH", "/tmp/tokens.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Issuer.MaxRetries != 5 {
		t.Fatalf("Issuer.MaxRetries = %d, want 5", cfg.Issuer.MaxRetries)
	}
	if cfg.Issuer.TimeoutSeconds != 3 {
		t.Fatalf("Issuer.TimeoutSeconds = %d, want 3", cfg.Issuer.TimeoutSeconds)
	}
	if cfg.Credentials.EnvironmentID != "env-abc" {
		t.Fatalf("Credentials.EnvironmentID = %q", cfg.Credentials.EnvironmentID)
	}
	if cfg.Credentials.ClientID != "client-1" {
		t.Fatalf("Credentials.ClientID = %q", cfg.Credentials.ClientID)
	}
	if cfg.Storage.Driver != domain.StorageDriverSQLite {
		t.Fatalf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
}

func TestLoadNormalizesStrings(t *testing.T) {
	isolate(t)
	t.Setenv("CREDENTIALS_REGION", " EU ")
	t.Setenv("ISSUER_BODY_ENCODING", "FORM")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Credentials.Region != domain.RegionEU {
		t.Fatalf("Credentials.Region = %q, want eu", cfg.Credentials.Region)
	}
	if cfg.Issuer.BodyEncoding != domain.IssuanceBodyForm {
		t.Fatalf("Issuer.BodyEncoding = %q, want form", cfg.Issuer.BodyEncoding)
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	return cfg
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "bad storage driver",
			mutate:  func(c *Config) { c.Storage.Driver = "postgres" },
			wantSub: "storage.driver",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Storage.Driver = domain.StorageDriverSQLite
				c.Storage.SQLitePath = ""
			},
			wantSub: "storage.sqlite_path",
		},
		{
			name:    "encryption key not hex",
			mutate:  func(c *Config) { c.Storage.EncryptionKey = "zz" },
			wantSub: "storage.encryption_key",
		},
		{
			name:    "encryption key wrong length",
			mutate:  func(c *Config) { c.Storage.EncryptionKey = "abcd" },
			wantSub: "32 bytes",
		},
		{
			name:    "bad body encoding",
			mutate:  func(c *Config) { c.Issuer.BodyEncoding = "xml" },
			wantSub: "issuer.body_encoding",
		},
		{
			name:    "zero issuance timeout",
			mutate:  func(c *Config) { c.Issuer.TimeoutSeconds = 0 },
			wantSub: "issuer.timeout_seconds",
		},
		{
			name:    "zero max retries",
			mutate:  func(c *Config) { c.Issuer.MaxRetries = 0 },
			wantSub: "issuer.max_retries",
		},
		{
			name:    "token path without slash",
			mutate:  func(c *Config) { c.Issuer.TokenPath = "as/token" },
			wantSub: "issuer.token_path",
		},
		{
			name:    "bad issuer base url",
			mutate:  func(c *Config) { c.Issuer.BaseURL = "ftp://issuer.internal" },
			wantSub: "issuer.base_url",
		},
		{
			name:    "bad proxy scheme",
			mutate:  func(c *Config) { c.Issuer.ProxyURL = "quic://127.0.0.1:9" },
			wantSub: "issuer.proxy_url",
		},
		{
			name:    "unknown region",
			mutate:  func(c *Config) { c.Credentials.Region = "mars" },
			wantSub: "credentials.region",
		},
		{
			name: "maintenance without schedule",
			mutate: func(c *Config) {
				c.Maintenance.Enabled = true
				c.Maintenance.Schedule = ""
			},
			wantSub: "maintenance.schedule",
		},
		{
			name: "refresh interval zero while enabled",
			mutate: func(c *Config) {
				c.AutoRefresh.Enabled = true
				c.AutoRefresh.CheckIntervalSeconds = 0
			},
			wantSub: "auto_refresh.check_interval_seconds",
		},
		{
			name:    "bad timezone",
			mutate:  func(c *Config) { c.Timezone = "Mars/Olympus" },
			wantSub: "timezone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantSub)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("Validate() error = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestValidEncryptionKeyAccepted(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.EncryptionKey = strings.Repeat("ab", 32) // 64 hex chars
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
}

func TestLocationFallback(t *testing.T) {
	cfg := &Config{Timezone: ""}
	if loc := cfg.Location(); loc != time.UTC {
		t.Fatalf("Location() = %v, want UTC", loc)
	}
	cfg.Timezone = "Europe/Berlin"
	if loc := cfg.Location(); loc.String() != "Europe/Berlin" {
		t.Fatalf("Location() = %v, want Europe/Berlin", loc)
	}
}

func TestValidateAbsoluteHTTPURL(t *testing.T) {
	valid := []string{"https://auth.pingone.com", "http://localhost:8080"}
	for _, u := range valid {
		if err := ValidateAbsoluteHTTPURL(u); err != nil {
			t.Fatalf("ValidateAbsoluteHTTPURL(%q) error: %v", u, err)
		}
	}
	invalid := []string{"", "auth.pingone.com", "ftp://x", "https://"}
	for _, u := range invalid {
		if err := ValidateAbsoluteHTTPURL(u); err == nil {
			t.Fatalf("ValidateAbsoluteHTTPURL(%q) = nil, want error", u)
		}
	}
}

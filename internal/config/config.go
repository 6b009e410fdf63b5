package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Wei-Shaw/tokengate/internal/domain"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Issuer      IssuerConfig      `mapstructure:"issuer"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Cache       CacheConfig       `mapstructure:"cache"`
	AutoRefresh AutoRefreshConfig `mapstructure:"auto_refresh"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Timezone    string            `mapstructure:"timezone"` // e.g. "UTC", "Europe/Berlin"
}

type ServerConfig struct {
	Host              string   `mapstructure:"host"`
	Port              int      `mapstructure:"port"`
	Mode              string   `mapstructure:"mode"`                // debug/release
	ReadHeaderTimeout int      `mapstructure:"read_header_timeout"` // seconds
	IdleTimeout       int      `mapstructure:"idle_timeout"`        // seconds
	TrustedProxies    []string `mapstructure:"trusted_proxies"`     // CIDR/IP list
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level           string            `mapstructure:"level"`
	Format          string            `mapstructure:"format"`
	ServiceName     string            `mapstructure:"service_name"`
	Environment     string            `mapstructure:"env"`
	Caller          bool              `mapstructure:"caller"`
	StacktraceLevel string            `mapstructure:"stacktrace_level"`
	Output          LogOutputConfig   `mapstructure:"output"`
	Rotation        LogRotationConfig `mapstructure:"rotation"`
	Sampling        LogSamplingConfig `mapstructure:"sampling"`
}

type LogOutputConfig struct {
	ToStdout bool   `mapstructure:"to_stdout"`
	ToFile   bool   `mapstructure:"to_file"`
	FilePath string `mapstructure:"file_path"`
}

type LogRotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
	LocalTime  bool `mapstructure:"local_time"`
}

type LogSamplingConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Initial    int  `mapstructure:"initial"`
	Thereafter int  `mapstructure:"thereafter"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// DialTimeoutSeconds: connection establishment timeout.
	DialTimeoutSeconds int `mapstructure:"dial_timeout_seconds"`
	// ReadTimeoutSeconds: per-command read timeout.
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds"`
	// WriteTimeoutSeconds: per-command write timeout.
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds"`
	// PoolSize caps concurrent connections.
	PoolSize int `mapstructure:"pool_size"`
	// MinIdleConns keeps warm connections to cut cold-start latency.
	MinIdleConns int  `mapstructure:"min_idle_conns"`
	EnableTLS    bool `mapstructure:"enable_tls"`
}

func (r *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type StorageConfig struct {
	// Driver selects where tokens are persisted: redis or sqlite.
	Driver string `mapstructure:"driver"`
	// KeyPrefix namespaces durable entries so deployments can share one
	// redis/sqlite instance.
	KeyPrefix string `mapstructure:"key_prefix"`
	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `mapstructure:"sqlite_path"`
	// EncryptionKey (64 hex chars = 32 bytes) seals persisted token payloads
	// with XChaCha20-Poly1305. Empty stores them as plain JSON.
	EncryptionKey string `mapstructure:"encryption_key"`
}

type IssuerConfig struct {
	// BaseURL overrides the region-derived issuance origin. Useful for
	// private deployments and test servers.
	BaseURL string `mapstructure:"base_url"`
	// TokenPath is appended to the origin to form the issuance endpoint.
	TokenPath string `mapstructure:"token_path"`
	// BodyEncoding selects the request body format: json or form.
	BodyEncoding string `mapstructure:"body_encoding"`
	// TimeoutSeconds bounds a whole acquisition, retries included. Callers
	// can override it per request.
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// MaxRetries is the total attempt budget for retryable failures.
	MaxRetries int `mapstructure:"max_retries"`
	// RetryBackoffMS is the base delay; attempt n waits base * 2^(n-1).
	RetryBackoffMS int `mapstructure:"retry_backoff_ms"`
	// DefaultTokenTTLSeconds applies when the issuer omits expires_in and
	// the token carries no usable exp claim.
	DefaultTokenTTLSeconds int `mapstructure:"default_token_ttl_seconds"`
	// ProxyURL routes issuance traffic through http/https/socks5.
	ProxyURL string `mapstructure:"proxy_url"`
	// ExtraParams are merged into every issuance request body.
	ExtraParams map[string]string `mapstructure:"extra_params"`
}

func (i *IssuerConfig) Timeout() time.Duration {
	return time.Duration(i.TimeoutSeconds) * time.Second
}

func (i *IssuerConfig) RetryBackoff() time.Duration {
	return time.Duration(i.RetryBackoffMS) * time.Millisecond
}

func (i *IssuerConfig) DefaultTokenTTL() time.Duration {
	return time.Duration(i.DefaultTokenTTLSeconds) * time.Second
}

// CredentialsConfig is the default credential source. All of environment_id,
// client_id and client_secret must be present before issuance can run;
// leaving them empty is valid config and surfaces as NO_CREDENTIALS at
// acquisition time.
type CredentialsConfig struct {
	EnvironmentID string `mapstructure:"environment_id"`
	ClientID      string `mapstructure:"client_id"`
	ClientSecret  string `mapstructure:"client_secret"`
	Region        string `mapstructure:"region"`
}

type CacheConfig struct {
	// ExpiringSoonSeconds is the window before expiry in which a token is
	// reported "expiring" and the auto-refresher acts.
	ExpiringSoonSeconds int `mapstructure:"expiring_soon_seconds"`
	// PersistTimeoutSeconds bounds the asynchronous durable write that
	// follows every cache set.
	PersistTimeoutSeconds int `mapstructure:"persist_timeout_seconds"`
	// WarmOnStart loads the persisted token for the configured credentials
	// into memory during startup.
	WarmOnStart bool `mapstructure:"warm_on_start"`
}

func (c *CacheConfig) ExpiringSoon() time.Duration {
	return time.Duration(c.ExpiringSoonSeconds) * time.Second
}

func (c *CacheConfig) PersistTimeout() time.Duration {
	return time.Duration(c.PersistTimeoutSeconds) * time.Second
}

type AutoRefreshConfig struct {
	Enabled              bool `mapstructure:"enabled"`
	CheckIntervalSeconds int  `mapstructure:"check_interval_seconds"`
}

func (a *AutoRefreshConfig) CheckInterval() time.Duration {
	return time.Duration(a.CheckIntervalSeconds) * time.Second
}

type MaintenanceConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Schedule is a 5-field cron expression evaluated in Timezone.
	Schedule string `mapstructure:"schedule"`
	// LeaderLockTTLSeconds bounds the redis leader lock so a crashed
	// replica cannot block maintenance forever.
	LeaderLockTTLSeconds int `mapstructure:"leader_lock_ttl_seconds"`
	// PurgeBatchSize caps rows deleted per statement by the sqlite purge.
	PurgeBatchSize int `mapstructure:"purge_batch_size"`
}

func (m *MaintenanceConfig) LeaderLockTTL() time.Duration {
	return time.Duration(m.LeaderLockTTLSeconds) * time.Second
}

type AdminConfig struct {
	// APIKey protects the admin endpoints. Empty disables them entirely.
	APIKey string `mapstructure:"api_key"`
}

// Load reads and validates the full configuration.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Add config paths in priority order
	// 1. DATA_DIR environment variable (highest priority)
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		viper.AddConfigPath(dataDir)
	}
	// 2. Docker data directory
	viper.AddConfigPath("/app/data")
	// 3. Current directory
	viper.AddConfigPath(".")
	// 4. Config subdirectory
	viper.AddConfigPath("./config")
	// 5. System config directory
	viper.AddConfigPath("/etc/tokengate")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config error: %w", err)
		}
		// Missing config file is fine; defaults + env cover everything.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config error: %w", err)
	}

	cfg.Server.Mode = strings.ToLower(strings.TrimSpace(cfg.Server.Mode))
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	cfg.Server.TrustedProxies = normalizeStringSlice(cfg.Server.TrustedProxies)
	cfg.CORS.AllowedOrigins = normalizeStringSlice(cfg.CORS.AllowedOrigins)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Log.ServiceName = strings.TrimSpace(cfg.Log.ServiceName)
	cfg.Log.Environment = strings.TrimSpace(cfg.Log.Environment)
	cfg.Log.StacktraceLevel = strings.ToLower(strings.TrimSpace(cfg.Log.StacktraceLevel))
	cfg.Log.Output.FilePath = strings.TrimSpace(cfg.Log.Output.FilePath)
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	cfg.Storage.KeyPrefix = strings.TrimSpace(cfg.Storage.KeyPrefix)
	cfg.Storage.SQLitePath = strings.TrimSpace(cfg.Storage.SQLitePath)
	cfg.Storage.EncryptionKey = strings.TrimSpace(cfg.Storage.EncryptionKey)
	cfg.Issuer.BaseURL = strings.TrimSpace(cfg.Issuer.BaseURL)
	cfg.Issuer.TokenPath = strings.TrimSpace(cfg.Issuer.TokenPath)
	cfg.Issuer.BodyEncoding = strings.ToLower(strings.TrimSpace(cfg.Issuer.BodyEncoding))
	cfg.Issuer.ProxyURL = strings.TrimSpace(cfg.Issuer.ProxyURL)
	cfg.Credentials.EnvironmentID = strings.TrimSpace(cfg.Credentials.EnvironmentID)
	cfg.Credentials.ClientID = strings.TrimSpace(cfg.Credentials.ClientID)
	cfg.Credentials.ClientSecret = strings.TrimSpace(cfg.Credentials.ClientSecret)
	cfg.Credentials.Region = strings.ToLower(strings.TrimSpace(cfg.Credentials.Region))
	cfg.Maintenance.Schedule = strings.TrimSpace(cfg.Maintenance.Schedule)
	cfg.Admin.APIKey = strings.TrimSpace(cfg.Admin.APIKey)
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config error: %w", err)
	}

	if cfg.Admin.APIKey == "" {
		slog.Warn("admin.api_key is empty; admin endpoints are disabled.")
	}
	if cfg.Storage.EncryptionKey == "" {
		slog.Info("storage.encryption_key not set; persisted tokens are stored unencrypted.")
	}
	if cfg.Issuer.BaseURL != "" {
		warnIfInsecureURL("issuer.base_url", cfg.Issuer.BaseURL)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("server.read_header_timeout", 30)
	viper.SetDefault("server.idle_timeout", 120)
	viper.SetDefault("server.trusted_proxies", []string{})

	// Log
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.service_name", "tokengate")
	viper.SetDefault("log.env", "production")
	viper.SetDefault("log.caller", true)
	viper.SetDefault("log.stacktrace_level", "error")
	viper.SetDefault("log.output.to_stdout", true)
	viper.SetDefault("log.output.to_file", true)
	viper.SetDefault("log.output.file_path", "")
	viper.SetDefault("log.rotation.max_size_mb", 100)
	viper.SetDefault("log.rotation.max_backups", 10)
	viper.SetDefault("log.rotation.max_age_days", 7)
	viper.SetDefault("log.rotation.compress", true)
	viper.SetDefault("log.rotation.local_time", true)
	viper.SetDefault("log.sampling.enabled", false)
	viper.SetDefault("log.sampling.initial", 100)
	viper.SetDefault("log.sampling.thereafter", 100)

	// CORS
	viper.SetDefault("cors.allowed_origins", []string{})
	viper.SetDefault("cors.allow_credentials", true)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.dial_timeout_seconds", 5)
	viper.SetDefault("redis.read_timeout_seconds", 3)
	viper.SetDefault("redis.write_timeout_seconds", 3)
	viper.SetDefault("redis.pool_size", 100)
	viper.SetDefault("redis.min_idle_conns", 10)
	viper.SetDefault("redis.enable_tls", false)

	// Storage
	viper.SetDefault("storage.driver", domain.StorageDriverRedis)
	viper.SetDefault("storage.key_prefix", "tokengate")
	viper.SetDefault("storage.sqlite_path", "data/tokengate.db")
	viper.SetDefault("storage.encryption_key", "")

	// Issuer
	viper.SetDefault("issuer.base_url", "")
	viper.SetDefault("issuer.token_path", "/as/token")
	viper.SetDefault("issuer.body_encoding", domain.IssuanceBodyJSON)
	viper.SetDefault("issuer.timeout_seconds", 10)
	viper.SetDefault("issuer.max_retries", 3)
	viper.SetDefault("issuer.retry_backoff_ms", 500)
	viper.SetDefault("issuer.default_token_ttl_seconds", 3600)
	viper.SetDefault("issuer.proxy_url", "")
	viper.SetDefault("issuer.extra_params", map[string]string{})

	// Credentials
	viper.SetDefault("credentials.environment_id", "")
	viper.SetDefault("credentials.client_id", "")
	viper.SetDefault("credentials.client_secret", "")
	viper.SetDefault("credentials.region", domain.RegionUS)

	// Cache
	viper.SetDefault("cache.expiring_soon_seconds", 300)
	viper.SetDefault("cache.persist_timeout_seconds", 5)
	viper.SetDefault("cache.warm_on_start", true)

	// Auto refresh
	viper.SetDefault("auto_refresh.enabled", true)
	viper.SetDefault("auto_refresh.check_interval_seconds", 60)

	// Maintenance
	viper.SetDefault("maintenance.enabled", true)
	viper.SetDefault("maintenance.schedule", "*/30 * * * *")
	viper.SetDefault("maintenance.leader_lock_ttl_seconds", 300)
	viper.SetDefault("maintenance.purge_batch_size", 500)

	// Admin
	viper.SetDefault("admin.api_key", "")

	viper.SetDefault("timezone", "UTC")
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Server.Mode {
	case "debug", "release":
	default:
		return fmt.Errorf("server.mode must be one of: debug/release")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	case "":
		return fmt.Errorf("log.level is required")
	default:
		return fmt.Errorf("log.level must be one of: debug/info/warn/error")
	}
	switch c.Log.Format {
	case "json", "console":
	case "":
		return fmt.Errorf("log.format is required")
	default:
		return fmt.Errorf("log.format must be one of: json/console")
	}
	switch c.Log.StacktraceLevel {
	case "none", "error", "fatal":
	case "":
		return fmt.Errorf("log.stacktrace_level is required")
	default:
		return fmt.Errorf("log.stacktrace_level must be one of: none/error/fatal")
	}
	if !c.Log.Output.ToStdout && !c.Log.Output.ToFile {
		return fmt.Errorf("log.output.to_stdout and log.output.to_file cannot both be false")
	}
	if c.Log.Rotation.MaxSizeMB <= 0 {
		return fmt.Errorf("log.rotation.max_size_mb must be positive")
	}
	if c.Log.Rotation.MaxBackups < 0 {
		return fmt.Errorf("log.rotation.max_backups must be non-negative")
	}
	if c.Log.Rotation.MaxAgeDays < 0 {
		return fmt.Errorf("log.rotation.max_age_days must be non-negative")
	}
	if c.Log.Sampling.Enabled {
		if c.Log.Sampling.Initial <= 0 {
			return fmt.Errorf("log.sampling.initial must be positive when sampling is enabled")
		}
		if c.Log.Sampling.Thereafter <= 0 {
			return fmt.Errorf("log.sampling.thereafter must be positive when sampling is enabled")
		}
	}

	if c.Redis.DialTimeoutSeconds <= 0 || c.Redis.ReadTimeoutSeconds <= 0 || c.Redis.WriteTimeoutSeconds <= 0 {
		return fmt.Errorf("redis timeouts must be positive")
	}
	if c.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis.pool_size must be positive")
	}
	if c.Redis.MinIdleConns < 0 {
		return fmt.Errorf("redis.min_idle_conns must be non-negative")
	}

	switch c.Storage.Driver {
	case domain.StorageDriverRedis, domain.StorageDriverSQLite:
	default:
		return fmt.Errorf("storage.driver must be one of: redis/sqlite")
	}
	if c.Storage.Driver == domain.StorageDriverSQLite && c.Storage.SQLitePath == "" {
		return fmt.Errorf("storage.sqlite_path is required when storage.driver is sqlite")
	}
	if c.Storage.KeyPrefix == "" {
		return fmt.Errorf("storage.key_prefix is required")
	}
	if key := c.Storage.EncryptionKey; key != "" {
		raw, err := hex.DecodeString(key)
		if err != nil {
			return fmt.Errorf("storage.encryption_key must be hex encoded: %w", err)
		}
		if len(raw) != 32 {
			return fmt.Errorf("storage.encryption_key must decode to 32 bytes, got %d", len(raw))
		}
	}

	switch c.Issuer.BodyEncoding {
	case domain.IssuanceBodyJSON, domain.IssuanceBodyForm:
	default:
		return fmt.Errorf("issuer.body_encoding must be one of: json/form")
	}
	if c.Issuer.TimeoutSeconds <= 0 {
		return fmt.Errorf("issuer.timeout_seconds must be positive")
	}
	if c.Issuer.MaxRetries < 1 {
		return fmt.Errorf("issuer.max_retries must be at least 1")
	}
	if c.Issuer.RetryBackoffMS <= 0 {
		return fmt.Errorf("issuer.retry_backoff_ms must be positive")
	}
	if c.Issuer.DefaultTokenTTLSeconds <= 0 {
		return fmt.Errorf("issuer.default_token_ttl_seconds must be positive")
	}
	if c.Issuer.TokenPath == "" || !strings.HasPrefix(c.Issuer.TokenPath, "/") {
		return fmt.Errorf("issuer.token_path must start with /")
	}
	if c.Issuer.BaseURL != "" {
		if err := ValidateAbsoluteHTTPURL(c.Issuer.BaseURL); err != nil {
			return fmt.Errorf("issuer.base_url invalid: %w", err)
		}
	}
	if c.Issuer.ProxyURL != "" {
		u, err := url.Parse(c.Issuer.ProxyURL)
		if err != nil {
			return fmt.Errorf("issuer.proxy_url invalid: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https", "socks5":
		default:
			return fmt.Errorf("issuer.proxy_url scheme must be one of: http/https/socks5")
		}
	}

	if c.Credentials.Region != "" && !domain.KnownRegion(c.Credentials.Region) {
		return fmt.Errorf("credentials.region must be one of: us/eu/ap/ca")
	}

	if c.Cache.ExpiringSoonSeconds < 0 {
		return fmt.Errorf("cache.expiring_soon_seconds must be non-negative")
	}
	if c.Cache.PersistTimeoutSeconds <= 0 {
		return fmt.Errorf("cache.persist_timeout_seconds must be positive")
	}

	if c.AutoRefresh.Enabled && c.AutoRefresh.CheckIntervalSeconds <= 0 {
		return fmt.Errorf("auto_refresh.check_interval_seconds must be positive when auto_refresh is enabled")
	}

	if c.Maintenance.Enabled && c.Maintenance.Schedule == "" {
		return fmt.Errorf("maintenance.schedule is required when maintenance is enabled")
	}
	if c.Maintenance.LeaderLockTTLSeconds <= 0 {
		return fmt.Errorf("maintenance.leader_lock_ttl_seconds must be positive")
	}
	if c.Maintenance.PurgeBatchSize <= 0 {
		return fmt.Errorf("maintenance.purge_batch_size must be positive")
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("timezone invalid: %w", err)
		}
	}

	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func normalizeStringSlice(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ValidateAbsoluteHTTPURL requires an absolute http(s) URL with a host.
func ValidateAbsoluteHTTPURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func warnIfInsecureURL(field, raw string) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return
	}
	if u.Scheme == "http" {
		slog.Warn("insecure http URL configured; credentials will transit unencrypted", "field", field)
	}
}

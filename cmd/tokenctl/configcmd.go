package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configInitOut string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file with the built-in defaults",
	Long: `Init writes a config.yaml populated with the built-in defaults, ready to
edit. It refuses to overwrite an existing file.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// starterConfig mirrors the config sections the server reads. Field values
// are the built-in defaults; keys must stay in sync with the mapstructure
// tags in internal/config.
type starterConfig struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Mode string `yaml:"mode"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Storage struct {
		Driver        string `yaml:"driver"`
		KeyPrefix     string `yaml:"key_prefix"`
		SQLitePath    string `yaml:"sqlite_path"`
		EncryptionKey string `yaml:"encryption_key"`
	} `yaml:"storage"`
	Issuer struct {
		BaseURL        string `yaml:"base_url"`
		TokenPath      string `yaml:"token_path"`
		BodyEncoding   string `yaml:"body_encoding"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxRetries     int    `yaml:"max_retries"`
		RetryBackoffMS int    `yaml:"retry_backoff_ms"`
		ProxyURL       string `yaml:"proxy_url"`
	} `yaml:"issuer"`
	Credentials struct {
		EnvironmentID string `yaml:"environment_id"`
		ClientID      string `yaml:"client_id"`
		ClientSecret  string `yaml:"client_secret"`
		Region        string `yaml:"region"`
	} `yaml:"credentials"`
	Cache struct {
		ExpiringSoonSeconds int  `yaml:"expiring_soon_seconds"`
		WarmOnStart         bool `yaml:"warm_on_start"`
	} `yaml:"cache"`
	AutoRefresh struct {
		Enabled              bool `yaml:"enabled"`
		CheckIntervalSeconds int  `yaml:"check_interval_seconds"`
	} `yaml:"auto_refresh"`
	Maintenance struct {
		Enabled  bool   `yaml:"enabled"`
		Schedule string `yaml:"schedule"`
	} `yaml:"maintenance"`
	Admin struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"admin"`
	Timezone string `yaml:"timezone"`
}

func defaultStarterConfig() starterConfig {
	var c starterConfig
	c.Server.Host = "0.0.0.0"
	c.Server.Port = 8080
	c.Server.Mode = "release"
	c.Log.Level = "info"
	c.Log.Format = "console"
	c.Redis.Host = "localhost"
	c.Redis.Port = 6379
	c.Storage.Driver = "redis"
	c.Storage.KeyPrefix = "tokengate"
	c.Storage.SQLitePath = "data/tokengate.db"
	c.Issuer.TokenPath = "/as/token"
	c.Issuer.BodyEncoding = "json"
	c.Issuer.TimeoutSeconds = 10
	c.Issuer.MaxRetries = 3
	c.Issuer.RetryBackoffMS = 500
	c.Credentials.Region = "us"
	c.Cache.ExpiringSoonSeconds = 300
	c.Cache.WarmOnStart = true
	c.AutoRefresh.Enabled = true
	c.AutoRefresh.CheckIntervalSeconds = 60
	c.Maintenance.Enabled = true
	c.Maintenance.Schedule = "*/30 * * * *"
	c.Timezone = "UTC"
	return c
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configInitOut); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", configInitOut)
	}

	var buf bytes.Buffer
	buf.WriteString("# tokengate configuration.\n")
	buf.WriteString("# Values shown are the built-in defaults; every key can also be set via\n")
	buf.WriteString("# environment variable (SERVER_PORT, CREDENTIALS_CLIENT_SECRET, ...).\n\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(defaultStarterConfig()); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	// 0600: the file is where the client secret ends up.
	if err := os.WriteFile(configInitOut, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", configInitOut, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configInitOut)
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().StringVar(&configInitOut, "out", "config.yaml", "output path")
}

// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jobrunner/landsatlook/internal/domain"
)

// EnvPrefix prefixes environment overrides, e.g. LANDSATLOOK_AUTH_USERNAME.
const EnvPrefix = "LANDSATLOOK"

// Config holds all application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	STAC     STACConfig     `mapstructure:"stac"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Download DownloadConfig `mapstructure:"download"`
	Convert  ConvertConfig  `mapstructure:"convert"`
	S3       S3Config       `mapstructure:"s3"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Index    IndexConfig    `mapstructure:"index"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Server   ServerConfig   `mapstructure:"server"`
	Watch    WatchConfig    `mapstructure:"watch"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// STACConfig holds catalog configuration.
type STACConfig struct {
	URL        string        `mapstructure:"url"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PageSize   int           `mapstructure:"page_size"`
}

// AuthConfig holds USGS ERS credentials and session settings.
type AuthConfig struct {
	LoginURL   string `mapstructure:"login_url"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	CookieFile string `mapstructure:"cookie_file"` // Netscape cookie file loaded at startup and saved by login
	UserAgent  string `mapstructure:"user_agent"`
}

// HasCredentials reports whether a login can be attempted.
func (a *AuthConfig) HasCredentials() bool {
	return a.Username != "" && a.Password != ""
}

// DownloadConfig holds band download configuration.
type DownloadConfig struct {
	OutputDir  string        `mapstructure:"output_dir"`
	Bands      []string      `mapstructure:"bands"`
	ChunkSize  int           `mapstructure:"chunk_size"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PreferS3   bool          `mapstructure:"prefer_s3"`
	SkipExists bool          `mapstructure:"skip_exists"`
	Progress   bool          `mapstructure:"progress"`
}

// ConvertConfig holds raster transform configuration.
type ConvertConfig struct {
	DataType       string `mapstructure:"data_type"`       // empty promotes to float32
	PreserveNoData bool   `mapstructure:"preserve_nodata"` // copy nodata pixels unchanged
}

// S3Config holds AWS S3 access configuration for s3:// assets.
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	RequesterPays   bool   `mapstructure:"requester_pays"`
}

// PublishConfig holds the upload target for produced rasters.
type PublishConfig struct {
	Type   string      `mapstructure:"type"` // "", s3, azure
	Prefix string      `mapstructure:"prefix"`
	S3     PublishS3   `mapstructure:"s3"`
	Azure  AzureConfig `mapstructure:"azure"`
}

// PublishS3 holds the S3 publishing bucket. Access settings come from S3Config.
type PublishS3 struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// IndexConfig holds the download index configuration.
type IndexConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"` // written when a command exits
}

// ServerConfig holds the status server configuration used by watch and follow.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"` // empty disables the server
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// WatchConfig holds the auto-convert watcher configuration.
type WatchConfig struct {
	Dir        string        `mapstructure:"dir"`
	OutputDir  string        `mapstructure:"output_dir"`
	Debounce   time.Duration `mapstructure:"debounce"`
	Extensions []string      `mapstructure:"extensions"`
}

// envKeys have no default and are bound to the environment explicitly.
var envKeys = []string{
	"auth.username",
	"auth.password",
	"auth.cookie_file",
	"auth.user_agent",
	"convert.data_type",
	"s3.endpoint",
	"s3.access_key_id",
	"s3.secret_access_key",
	"publish.type",
	"publish.prefix",
	"publish.s3.bucket",
	"publish.s3.prefix",
	"publish.azure.container",
	"publish.azure.account_name",
	"publish.azure.account_key",
	"publish.azure.connection_string",
	"publish.azure.prefix",
	"metrics.textfile",
	"server.listen",
	"watch.dir",
	"watch.output_dir",
}

// Defaults sets the default configuration values.
func Defaults() {
	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Catalog defaults
	viper.SetDefault("stac.url", "https://landsatlook.usgs.gov/stac-server")
	viper.SetDefault("stac.collection", "landsat-c2l2-sr")
	viper.SetDefault("stac.timeout", 60*time.Second)
	viper.SetDefault("stac.page_size", 100)

	// Auth defaults
	viper.SetDefault("auth.login_url", "https://ers.cr.usgs.gov/login/")

	// Download defaults
	viper.SetDefault("download.output_dir", ".")
	viper.SetDefault("download.bands", []string{"red", "nir08"})
	viper.SetDefault("download.chunk_size", 1<<20)
	viper.SetDefault("download.timeout", 120*time.Second)
	viper.SetDefault("download.prefer_s3", false)
	viper.SetDefault("download.skip_exists", false)
	viper.SetDefault("download.progress", true)

	// Convert defaults
	viper.SetDefault("convert.preserve_nodata", false)

	// S3 defaults
	viper.SetDefault("s3.region", "us-west-2")
	viper.SetDefault("s3.requester_pays", true)

	// Index defaults
	viper.SetDefault("index.enabled", false)
	viper.SetDefault("index.path", "./landsatlook.db")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", false)

	// Server defaults
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 5*time.Minute)

	// Watch defaults
	viper.SetDefault("watch.debounce", 500*time.Millisecond)
	viper.SetDefault("watch.extensions", []string{".tif", ".tiff"})
}

// Load loads configuration from environment and config file.
func Load(configPath string) (*Config, error) {
	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/landsatlook")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &domain.ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return &domain.ConfigError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}

	if u, err := url.Parse(c.STAC.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return &domain.ConfigError{Field: "stac.url", Message: fmt.Sprintf("invalid URL %q", c.STAC.URL)}
	}
	if c.STAC.PageSize < 1 {
		return &domain.ConfigError{Field: "stac.page_size", Message: "must be positive"}
	}

	if c.Download.ChunkSize < 1 {
		return &domain.ConfigError{Field: "download.chunk_size", Message: "must be positive"}
	}
	if c.Download.Timeout <= 0 {
		return &domain.ConfigError{Field: "download.timeout", Message: "must be positive"}
	}

	if c.Convert.DataType != "" {
		if _, err := domain.ParseDataType(c.Convert.DataType); err != nil {
			return &domain.ConfigError{Field: "convert.data_type", Message: err.Error()}
		}
	}

	switch c.Publish.Type {
	case "", "none":
	case "s3":
		if c.Publish.S3.Bucket == "" {
			return &domain.ConfigError{Field: "publish.s3.bucket", Message: "S3 bucket is required"}
		}
	case "azure":
		if c.Publish.Azure.Container == "" {
			return &domain.ConfigError{Field: "publish.azure.container", Message: "azure container is required"}
		}
		if c.Publish.Azure.AccountName == "" && c.Publish.Azure.ConnectionString == "" {
			return &domain.ConfigError{Field: "publish.azure", Message: "azure account name or connection string is required"}
		}
	default:
		return &domain.ConfigError{Field: "publish.type", Message: fmt.Sprintf("unknown publish type %q", c.Publish.Type)}
	}

	if c.Server.Listen != "" && (c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0) {
		return &domain.ConfigError{Field: "server.read_timeout", Message: "server timeouts must be positive"}
	}

	if c.Index.Enabled && c.Index.Path == "" {
		return &domain.ConfigError{Field: "index.path", Message: "index path is required"}
	}

	return nil
}

// OutputType returns the configured output data type, or DataTypeUnknown for the default.
func (c *ConvertConfig) OutputType() domain.DataType {
	dt, err := domain.ParseDataType(c.DataType)
	if err != nil {
		return domain.DataTypeUnknown
	}
	return dt
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"site-cloner/internal/assets"
	"site-cloner/internal/database"
	"site-cloner/internal/provision"
	"site-cloner/internal/rewrite"
	"site-cloner/internal/service"
)

const envPrefix = "SITECLONER"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Clone    CloneConfig    `mapstructure:"clone"`
	Assets   assets.Config  `mapstructure:"assets"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	Host            string        `mapstructure:"host"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Driver is "mysql" or "rds-data" (Aurora Data API, rewrite only).
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	TLS      string `mapstructure:"tls"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`

	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`

	IAM     IAMConfig     `mapstructure:"iam"`
	DataAPI DataAPIConfig `mapstructure:"data_api"`
}

// IAMConfig enables RDS IAM database authentication in place of Password.
type IAMConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token"`
}

// DataAPIConfig addresses an Aurora cluster through the RDS Data API.
type DataAPIConfig struct {
	Region      string `mapstructure:"region"`
	ResourceARN string `mapstructure:"resource_arn"`
	SecretARN   string `mapstructure:"secret_arn"`
}

type SecurityConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	JWTExpiration      time.Duration `mapstructure:"jwt_expiration"`
	AdminRole          string        `mapstructure:"admin_role"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	EnableAuth         bool          `mapstructure:"enable_auth"`
	EnableRateLimit    bool          `mapstructure:"enable_rate_limit"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CloneConfig describes the network being cloned into and tunes the
// rewrite driver.
type CloneConfig struct {
	BasePrefix  string `mapstructure:"base_prefix"`
	MainSiteID  int64  `mapstructure:"main_site_id"`
	NetworkID   int64  `mapstructure:"network_id"`
	UploadsPath string `mapstructure:"uploads_path"`

	Workers            int     `mapstructure:"workers"`
	UpdatesPerSecond   float64 `mapstructure:"updates_per_second"`
	Burst              int     `mapstructure:"burst"`
	KeyCollision       string  `mapstructure:"key_collision"`
	PreserveFieldNames bool    `mapstructure:"preserve_field_names"`
	MaxLayers          int     `mapstructure:"max_layers"`
}

// Load reads config.yaml from ./configs or the working directory, or from
// file when it is non-empty, then applies SITECLONER_* environment overrides.
func Load(file string) (*Config, error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// envOnlyKeys have no default but must still be settable from the
// environment, which AutomaticEnv alone does not do for Unmarshal.
var envOnlyKeys = []string{
	"assets.minio.endpoint", "assets.minio.access_key", "assets.minio.secret_key", "assets.minio.bucket",
	"assets.s3.region", "assets.s3.bucket", "assets.s3.access_key", "assets.s3.secret_key",
	"assets.azure.account_name", "assets.azure.account_key", "assets.azure.container",
	"assets.oss.endpoint", "assets.oss.access_key_id", "assets.oss.access_key_secret", "assets.oss.bucket",
	"assets.cos.secret_id", "assets.cos.secret_key", "assets.cos.region", "assets.cos.bucket",
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.database", "wordpress")
	v.SetDefault("database.username", "wordpress")
	v.SetDefault("database.password", "")
	v.SetDefault("database.tls", "false")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "10m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.retry_attempts", 3)
	v.SetDefault("database.retry_backoff", "200ms")
	v.SetDefault("database.iam.enabled", false)
	v.SetDefault("database.iam.region", "")
	v.SetDefault("database.iam.access_key_id", "")
	v.SetDefault("database.iam.secret_access_key", "")
	v.SetDefault("database.iam.session_token", "")
	v.SetDefault("database.data_api.region", "")
	v.SetDefault("database.data_api.resource_arn", "")
	v.SetDefault("database.data_api.secret_arn", "")

	// Security defaults
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_expiration", "1h")
	v.SetDefault("security.admin_role", "admin")
	v.SetDefault("security.rate_limit_per_minute", 30)
	v.SetDefault("security.rate_limit_burst", 5)
	v.SetDefault("security.enable_auth", true)
	v.SetDefault("security.enable_rate_limit", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Clone defaults
	v.SetDefault("clone.base_prefix", "wp_")
	v.SetDefault("clone.main_site_id", 1)
	v.SetDefault("clone.network_id", 1)
	v.SetDefault("clone.uploads_path", assets.DefaultUploadsPath)
	v.SetDefault("clone.workers", 1)
	v.SetDefault("clone.updates_per_second", 0)
	v.SetDefault("clone.burst", 0)
	v.SetDefault("clone.key_collision", "last_write_wins")
	v.SetDefault("clone.preserve_field_names", false)
	v.SetDefault("clone.max_layers", rewrite.DefaultMaxLayers)

	// Asset defaults
	v.SetDefault("assets.backend", "none")
	v.SetDefault("assets.root", "")
	v.SetDefault("assets.workers", 8)
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "rds-data":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.IAM.Enabled && c.Database.IAM.Region == "" {
		return errors.New("database.iam.region is required when IAM auth is enabled")
	}
	if c.Database.Driver == "rds-data" && (c.Database.DataAPI.ResourceARN == "" || c.Database.DataAPI.SecretARN == "") {
		return errors.New("database.data_api.resource_arn and secret_arn are required for the rds-data driver")
	}
	if c.Clone.BasePrefix == "" {
		return errors.New("clone.base_prefix must not be empty")
	}
	if _, err := rewrite.ParseKeyCollisionPolicy(c.Clone.KeyCollision); err != nil {
		return err
	}
	return nil
}

// ValidateServer checks settings only the HTTP server needs.
func (c *Config) ValidateServer() error {
	if c.Security.EnableAuth && c.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret is required when auth is enabled")
	}
	return nil
}

// Network returns the multisite install described by the clone section.
func (c CloneConfig) Network() provision.Network {
	return provision.Network{BasePrefix: c.BasePrefix, MainSiteID: c.MainSiteID, NetworkID: c.NetworkID}
}

// Layout returns the uploads directory layout.
func (c CloneConfig) Layout() assets.Layout {
	return assets.Layout{UploadsPath: c.UploadsPath, MainSiteID: c.MainSiteID}
}

// RewriteOptions returns the rewrite driver settings.
func (c CloneConfig) RewriteOptions() (service.TableRewriteOptions, error) {
	policy, err := rewrite.ParseKeyCollisionPolicy(c.KeyCollision)
	if err != nil {
		return service.TableRewriteOptions{}, err
	}
	return service.TableRewriteOptions{
		Rewrite: rewrite.Options{
			KeyCollision:       policy,
			PreserveFieldNames: c.PreserveFieldNames,
			MaxLayers:          c.MaxLayers,
		},
		Workers:          c.Workers,
		UpdatesPerSecond: c.UpdatesPerSecond,
		Burst:            c.Burst,
	}, nil
}

// Pool returns the connection pool settings.
func (d DatabaseConfig) Pool() database.PoolSettings {
	return database.PoolSettings{
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

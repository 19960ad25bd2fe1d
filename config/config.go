package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DefaultMaxUploadBytes is the 25 MiB file ceiling.
	DefaultMaxUploadBytes = 25 * 1024 * 1024
	// DefaultSubscriptionUserAgent is sent on outbound subscription fetches.
	DefaultSubscriptionUserAgent = "ClashForAndroid/2.5.12"
)

type Config struct {
	// Application / site
	App AppConfig `mapstructure:"app"`

	// Record store
	Store StoreConfig `mapstructure:"store"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// PostgreSQL (access log archive)
	Postgres PostgresConfig `mapstructure:"postgres"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// MinIO (optional content backend)
	Minio MinioConfig `mapstructure:"minio"`

	// ClamAV (optional upload scanning)
	ClamAV ClamAVConfig `mapstructure:"clamav"`

	// Subscription proxy
	Subscription SubscriptionConfig `mapstructure:"subscription"`

	// Upload rate limiting
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Expiry sweeper
	Sweeper SweeperConfig `mapstructure:"sweeper"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// AppConfig holds site settings. ProxyHeader names the header carrying the
// client IP when running behind a reverse proxy.
type AppConfig struct {
	Addr           string `mapstructure:"addr"`
	PublicBaseURL  string `mapstructure:"public_base_url"`
	ProxyHeader    string `mapstructure:"proxy_header"`
	SiteName       string `mapstructure:"site_name"`
	TelegramBot    string `mapstructure:"telegram_bot"`
	FooterText     string `mapstructure:"footer_text"`
	AdminPassword  string `mapstructure:"admin_password"`
	AdminPath      string `mapstructure:"admin_path"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

type StoreConfig struct {
	// Backend is "redis" or "memory".
	Backend string `mapstructure:"backend"`
	// ContentBackend is "kv" (same store as metadata) or "minio".
	ContentBackend string        `mapstructure:"content_backend"`
	MetaCacheTTL   time.Duration `mapstructure:"meta_cache_ttl"`
	MetaCacheSize  int           `mapstructure:"meta_cache_size"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type PostgresConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Port     int    `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type NATSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type ClamAVConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

type SubscriptionConfig struct {
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	// AllowPrivateNetworks lets fetches reach loopback, private and
	// link-local addresses. Off by default.
	AllowPrivateNetworks bool `mapstructure:"allow_private_networks"`
}

type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type SweeperConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Batch    int           `mapstructure:"batch"`

	// EventRetention bounds archived access events; zero keeps them forever.
	EventRetention time.Duration `mapstructure:"event_retention"`
}

type PrometheusConfig struct {
	Port int `mapstructure:"port"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve the deployment variable names of the worker version.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	switch c.Store.ContentBackend {
	case "kv":
	case "minio":
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			return fmt.Errorf("config: minio content backend requires endpoint and bucket")
		}
	default:
		return fmt.Errorf("config: unknown content backend %q", c.Store.ContentBackend)
	}
	if c.App.AdminPath == "" || strings.Contains(c.App.AdminPath, "/") {
		return fmt.Errorf("config: invalid admin path %q", c.App.AdminPath)
	}
	if c.App.MaxUploadBytes <= 0 {
		return fmt.Errorf("config: max_upload_bytes must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.addr", ":8080")
	v.SetDefault("app.public_base_url", "")
	v.SetDefault("app.proxy_header", "")
	v.SetDefault("app.site_name", "CloudShare")
	v.SetDefault("app.telegram_bot", "")
	v.SetDefault("app.footer_text", "Private file sharing service")
	v.SetDefault("app.admin_password", "")
	v.SetDefault("app.admin_path", "admin")
	v.SetDefault("app.max_upload_bytes", DefaultMaxUploadBytes)

	v.SetDefault("store.backend", "redis")
	v.SetDefault("store.content_backend", "kv")
	v.SetDefault("store.meta_cache_ttl", time.Hour)
	v.SetDefault("store.meta_cache_size", 4096)

	v.SetDefault("minio.bucket", "cloudshare")

	v.SetDefault("clamav.address", "tcp://localhost:3310")

	v.SetDefault("subscription.user_agent", DefaultSubscriptionUserAgent)
	v.SetDefault("subscription.timeout", 15*time.Second)
	v.SetDefault("subscription.allow_private_networks", false)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.max_requests", 30)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("sweeper.enabled", false)
	v.SetDefault("sweeper.interval", 10*time.Minute)
	v.SetDefault("sweeper.batch", 500)
	v.SetDefault("sweeper.event_retention", 30*24*time.Hour)

	v.SetDefault("prometheus.port", 9090)
}

func bindEnvVars(v *viper.Viper) {
	// Site
	v.BindEnv("app.site_name", "SITE_NAME")
	v.BindEnv("app.telegram_bot", "TELEGRAM_BOT")
	v.BindEnv("app.footer_text", "FOOTER_TEXT")
	v.BindEnv("app.admin_password", "ADMIN_PASSWORD")
	v.BindEnv("app.admin_path", "ADMIN_PATH")
	v.BindEnv("app.addr", "LISTEN_ADDR")
	v.BindEnv("app.public_base_url", "PUBLIC_BASE_URL")
	v.BindEnv("app.proxy_header", "PROXY_HEADER")

	// Store
	v.BindEnv("store.backend", "STORE_BACKEND")
	v.BindEnv("store.content_backend", "CONTENT_BACKEND")

	// PostgreSQL
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")

	// MinIO
	v.BindEnv("minio.endpoint", "MINIO_ENDPOINT")
	v.BindEnv("minio.access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("minio.secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("minio.bucket", "MINIO_BUCKET")

	// ClamAV
	v.BindEnv("clamav.address", "CLAMAV_ADDRESS")

	// Prometheus
	v.BindEnv("prometheus.port", "PROM_PORT")
}

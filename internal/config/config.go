// Package config loads the productd/productctl configuration from YAML and
// environment variables.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/scorebill/productfetch/pkg/batch"
	"github.com/scorebill/productfetch/pkg/logging"
	"github.com/scorebill/productfetch/pkg/upstream"
)

// DefaultPath is the config file picked up from the working directory.
const DefaultPath = "config.yaml"

// HostedEnv is set by the hosting platform on every instance.
const HostedEnv = "RENDER"

// Config is the root configuration.
// Source precedence:
//  1. the path passed to Load/MustLoad;
//  2. the CONFIG_PATH environment variable;
//  3. ./config.yaml;
//  4. environment variables only.
//
// A .env file in the working directory is loaded into the environment first.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Log         LogConfig         `yaml:"log"`
	Upstream    UpstreamConfig    `yaml:"upstream"`
	Batch       BatchConfig       `yaml:"batch"`
	Credentials CredentialsConfig `yaml:"credentials"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Host string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"PORT"      env-default:"8080"`

	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"HTTP_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"HTTP_WRITE_TIMEOUT"    env-default:"15m"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"HTTP_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// Addr returns host:port.
func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	// Disabled turns the listener off; it is on unless set.
	Disabled bool   `yaml:"disabled" env:"METRICS_DISABLED"`
	Host     string `yaml:"host"     env:"METRICS_HOST"     env-default:"0.0.0.0"`
	Port     string `yaml:"port"     env:"METRICS_PORT"     env-default:"9090"`
}

// Addr returns host:port.
func (c MetricsConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Pretty bool   `yaml:"pretty" env:"LOG_PRETTY"`
}

// UpstreamConfig configures the product-search client.
type UpstreamConfig struct {
	BaseURL    string `yaml:"base_url"    env:"UPSTREAM_BASE_URL"    env-default:"https://sell.smartstore.naver.com"`
	SearchPath string `yaml:"search_path" env:"UPSTREAM_SEARCH_PATH" env-default:"/api/product/shared/product-search-popular"`
	Action     string `yaml:"action"      env:"UPSTREAM_ACTION"      env-default:"productSearchPopularByCategory"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" env:"UPSTREAM_CONNECT_TIMEOUT" env-default:"10s"`
	Timeout        time.Duration `yaml:"timeout"         env:"UPSTREAM_TIMEOUT"         env-default:"30s"`

	MaxIdleConns    int `yaml:"max_idle_conns"     env:"UPSTREAM_MAX_IDLE_CONNS"     env-default:"500"`
	MaxConnsPerHost int `yaml:"max_conns_per_host" env:"UPSTREAM_MAX_CONNS_PER_HOST" env-default:"250"`

	// DefaultHeaders replaces the built-in browser header set when non-empty.
	DefaultHeaders map[string]string `yaml:"default_headers"`
}

// BatchConfig configures dispatch and retry.
type BatchConfig struct {
	// Hosted selects HostedConcurrency; it is also implied by HostedEnv.
	Hosted bool `yaml:"hosted" env:"HOSTED"`

	HostedConcurrency int `yaml:"hosted_concurrency" env:"HOSTED_CONCURRENCY" env-default:"100"`
	LocalConcurrency  int `yaml:"local_concurrency"  env:"LOCAL_CONCURRENCY"  env-default:"500"`
	MaxConcurrency    int `yaml:"max_concurrency"    env:"MAX_CONCURRENCY"    env-default:"500"`
	MaxRetries        int `yaml:"max_retries"        env:"MAX_RETRIES"        env-default:"3"`
}

// IsHosted reports whether the process runs on the hosting platform.
func (c BatchConfig) IsHosted() bool {
	return c.Hosted || os.Getenv(HostedEnv) != ""
}

// DefaultConcurrency returns the ceiling used when a request carries no hint.
func (c BatchConfig) DefaultConcurrency() int {
	if c.IsHosted() {
		return c.HostedConcurrency
	}
	return c.LocalConcurrency
}

// CredentialsConfig locates the shared session document for productctl.
type CredentialsConfig struct {
	File string `yaml:"file" env:"CREDENTIALS_FILE" env-default:"cookies2.json"`

	RedisAddr     string `yaml:"redis_addr"     env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db"       env:"REDIS_DB"`
	RedisKey      string `yaml:"redis_key"      env:"REDIS_KEY" env-default:"productfetch:credentials"`
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration by precedence: explicit path, CONFIG_PATH,
// ./config.yaml, then environment only.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Port == "" {
		return fmt.Errorf("http.port is required")
	}
	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be > 0")
	}
	if c.Batch.HostedConcurrency <= 0 || c.Batch.LocalConcurrency <= 0 {
		return fmt.Errorf("batch concurrency must be > 0")
	}
	if c.Batch.MaxConcurrency < c.Batch.DefaultConcurrency() {
		return fmt.Errorf("batch.max_concurrency must be >= the default concurrency (%d)", c.Batch.DefaultConcurrency())
	}
	if c.Batch.MaxRetries < 0 {
		return fmt.Errorf("batch.max_retries must be >= 0")
	}
	return nil
}

// UpstreamClientConfig converts the upstream section for upstream.New.
func (c *Config) UpstreamClientConfig() upstream.Config {
	headers := c.Upstream.DefaultHeaders
	if len(headers) == 0 {
		headers = upstream.DefaultHeaders()
	}
	return upstream.Config{
		BaseURL:         c.Upstream.BaseURL,
		SearchPath:      c.Upstream.SearchPath,
		Action:          c.Upstream.Action,
		ConnectTimeout:  c.Upstream.ConnectTimeout,
		Timeout:         c.Upstream.Timeout,
		MaxIdleConns:    c.Upstream.MaxIdleConns,
		MaxConnsPerHost: c.Upstream.MaxConnsPerHost,
		DefaultHeaders:  headers,
	}
}

// BatchServiceConfig converts the batch section for batch.NewService.
func (c *Config) BatchServiceConfig() batch.Config {
	return batch.Config{
		DefaultConcurrency: c.Batch.DefaultConcurrency(),
		MaxConcurrency:     c.Batch.MaxConcurrency,
		MaxRetries:         c.Batch.MaxRetries,
	}
}

// LoggingConfig converts the log section for logging.Setup.
func (c *Config) LoggingConfig(service string) logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.Level(c.Log.Level)
	cfg.Pretty = c.Log.Pretty
	cfg.Service = service
	return cfg
}

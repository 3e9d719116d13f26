package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Database    DatabaseConfig   `yaml:"database"`
	Logging     LoggingConfig    `yaml:"logging"`
	Session     SessionConfig    `yaml:"session"`
	Credential  CredentialConfig `yaml:"credential"`
	RateLimit   RateLimitConfig  `yaml:"rate_limit"`
	Redis       RedisConfig      `yaml:"redis"`
	Polling     PollingConfig    `yaml:"polling"`
	Orders      OrdersConfig     `yaml:"orders"`
	Admin       AdminConfig      `yaml:"admin"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                int           `yaml:"port"`
	ReadTimeoutSeconds  int           `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int           `yaml:"write_timeout_seconds"`
	ReadTimeout         time.Duration `yaml:"-"`
	WriteTimeout        time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogQueries             bool   `yaml:"log_queries"`
}

// LoggingConfig controls the zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// SessionConfig holds device session settings.
type SessionConfig struct {
	TTLHours      int           `yaml:"ttl_hours"`
	TTL           time.Duration `yaml:"-"`
	SweepSchedule string        `yaml:"sweep_schedule"` // empty disables the sweep
}

// CredentialConfig holds the device secret hashing settings.
type CredentialConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

// RateLimitConfig holds the per-device and login throttling settings.
type RateLimitConfig struct {
	Backend        string        `yaml:"backend"` // memory or redis
	WindowSeconds  int           `yaml:"window_seconds"`
	Window         time.Duration `yaml:"-"`
	MaxRequests    int           `yaml:"max_requests"`
	LoginPerSecond float64       `yaml:"login_per_second"`
	LoginBurst     int           `yaml:"login_burst"`
}

// RedisConfig holds the connection used by the shared rate limiter.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// PollingConfig holds the server-suggested poll cadence.
type PollingConfig struct {
	NextPollSeconds int           `yaml:"next_poll_seconds"`
	NextPoll        time.Duration `yaml:"-"`
}

// OrdersConfig bounds order listings.
type OrdersConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// AdminConfig guards the device administration endpoints.
type AdminConfig struct {
	APIKey string `yaml:"api_key"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	cfg.ApplyDefaults()
	return &cfg, nil
}

// applyEnv lets deployments keep secrets out of the YAML file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TABLET_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("TABLET_ADMIN_API_KEY"); v != "" {
		cfg.Admin.APIKey = v
	}
	if v := os.Getenv("TABLET_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TABLET_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
}

// ApplyDefaults fills unset values and derives durations.
func (cfg *Config) ApplyDefaults() {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutSeconds <= 0 {
		cfg.Server.ReadTimeoutSeconds = 10
	}
	if cfg.Server.WriteTimeoutSeconds <= 0 {
		cfg.Server.WriteTimeoutSeconds = 15
	}
	cfg.Server.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	cfg.Server.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second

	cfg.Database.Driver = strings.ToLower(cfg.Database.Driver)
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Session.TTLHours <= 0 {
		cfg.Session.TTLHours = 24
	}
	cfg.Session.TTL = time.Duration(cfg.Session.TTLHours) * time.Hour

	if cfg.RateLimit.Backend == "" {
		cfg.RateLimit.Backend = "memory"
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit.WindowSeconds = 60
	}
	cfg.RateLimit.Window = time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	if cfg.RateLimit.MaxRequests <= 0 {
		cfg.RateLimit.MaxRequests = 60
	}
	if cfg.RateLimit.LoginPerSecond <= 0 {
		cfg.RateLimit.LoginPerSecond = 1
	}
	if cfg.RateLimit.LoginBurst <= 0 {
		cfg.RateLimit.LoginBurst = 5
	}

	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "tablet:ratelimit:"
	}

	if cfg.Polling.NextPollSeconds <= 0 {
		cfg.Polling.NextPollSeconds = 15
	}
	cfg.Polling.NextPoll = time.Duration(cfg.Polling.NextPollSeconds) * time.Second

	if cfg.Orders.MaxLimit <= 0 {
		cfg.Orders.MaxLimit = 100
	}
	if cfg.Orders.DefaultLimit <= 0 {
		cfg.Orders.DefaultLimit = 50
	}
	if cfg.Orders.DefaultLimit > cfg.Orders.MaxLimit {
		cfg.Orders.DefaultLimit = cfg.Orders.MaxLimit
	}

	if cfg.Admin.APIKey == "" {
		log.Printf("admin.api_key is not set; device administration endpoints are disabled")
	}
}

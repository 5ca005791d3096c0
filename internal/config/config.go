// Package config loads the server configuration from YAML, a .env file and
// environment variables, in that order of increasing precedence.
package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/estatehub/marketplace/pkg/logger"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	minSecretLength = 32
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig         `yaml:"server"`
	Database DatabaseConfig       `yaml:"database"`
	Redis    RedisConfig          `yaml:"redis"`
	Auth     AuthConfig           `yaml:"auth"`
	Auction  AuctionConfig        `yaml:"auction"`
	Scraper  ScraperConfig        `yaml:"scraper"`
	Logging  logger.LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
	AuditFile       string        `yaml:"audit_file"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"`
}

// RedisConfig enables the shared cache when Addr is set.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	Prefix    string        `yaml:"prefix"`
	SearchTTL time.Duration `yaml:"search_ttl"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	Issuer       string        `yaml:"issuer"`
	AdminUserIDs []string      `yaml:"admin_user_ids"`
}

type AuctionConfig struct {
	SweepSchedule  string        `yaml:"sweep_schedule"`
	PaymentWindow  time.Duration `yaml:"payment_window"`
	DepositPercent float64       `yaml:"deposit_percent"`
	MinIncrement   float64       `yaml:"min_increment"`
}

type ScraperConfig struct {
	Enabled  bool         `yaml:"enabled"`
	Schedule string       `yaml:"schedule"`
	Count    int          `yaml:"count"`
	Seed     int64        `yaml:"seed"`
	Cities   []string     `yaml:"cities"`
	Feeds    []FeedConfig `yaml:"feeds"`
}

// FeedConfig points the scraper at a JSON feed. Fields maps listing fields
// to gjson paths.
type FeedConfig struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Retries int               `yaml:"retries"`
	Fields  map[string]string `yaml:"fields"`
}

// Default returns a runnable development configuration backed by memory.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitRPS:    20,
			RateLimitBurst:  40,
		},
		Database: DatabaseConfig{
			Driver:          DriverMemory,
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Prefix:    "estatehub:",
			SearchTTL: 60 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
			Issuer:   "estatehub",
		},
		Auction: AuctionConfig{
			SweepSchedule:  "@every 30s",
			PaymentWindow:  72 * time.Hour,
			DepositPercent: 10,
			MinIncrement:   100,
		},
		Scraper: ScraperConfig{
			Schedule: "@every 1h",
			Count:    10,
			Seed:     1,
		},
		Logging: logger.LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads envFile (if it exists) into the process environment, decodes
// path over the defaults and applies environment overrides. Either path may
// be empty.
func Load(path, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// envOverrides lists the supported environment variables. Slices use ';'.
type envOverrides struct {
	Host           string        `env:"ESTATEHUB_HOST"`
	Port           int           `env:"ESTATEHUB_PORT"`
	PlatformPort   int           `env:"PORT"`
	CORSOrigins    []string      `env:"ESTATEHUB_CORS_ORIGINS"`
	AuditFile      string        `env:"ESTATEHUB_AUDIT_FILE"`
	DatabaseDriver string        `env:"ESTATEHUB_DATABASE_DRIVER"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	MigrateOnStart string        `env:"ESTATEHUB_MIGRATE_ON_START"`
	RedisURL       string        `env:"REDIS_URL"`
	JWTSecret      string        `env:"JWT_SECRET"`
	TokenTTL       time.Duration `env:"ESTATEHUB_TOKEN_TTL"`
	AdminUserIDs   []string      `env:"ESTATEHUB_ADMIN_USER_IDS"`
	SweepSchedule  string        `env:"ESTATEHUB_SWEEP_SCHEDULE"`
	ScraperEnabled string        `env:"ESTATEHUB_SCRAPER_ENABLED"`
	ScraperSched   string        `env:"ESTATEHUB_SCRAPER_SCHEDULE"`
	LogLevel       string        `env:"ESTATEHUB_LOG_LEVEL"`
	LogFormat      string        `env:"ESTATEHUB_LOG_FORMAT"`
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envdecode.Decode(&env); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return nil
		}
		return fmt.Errorf("decode environment: %w", err)
	}

	setString(&cfg.Server.Host, env.Host)
	if env.PlatformPort > 0 {
		cfg.Server.Port = env.PlatformPort
	}
	if env.Port > 0 {
		cfg.Server.Port = env.Port
	}
	if len(env.CORSOrigins) > 0 {
		cfg.Server.CORSOrigins = env.CORSOrigins
	}
	setString(&cfg.Server.AuditFile, env.AuditFile)

	setString(&cfg.Database.Driver, env.DatabaseDriver)
	if env.DatabaseURL != "" {
		cfg.Database.DSN = env.DatabaseURL
		if env.DatabaseDriver == "" {
			cfg.Database.Driver = DriverPostgres
		}
	}
	if err := setBool(&cfg.Database.MigrateOnStart, "ESTATEHUB_MIGRATE_ON_START", env.MigrateOnStart); err != nil {
		return err
	}

	if env.RedisURL != "" {
		opts, err := redis.ParseURL(env.RedisURL)
		if err != nil {
			return fmt.Errorf("REDIS_URL: %w", err)
		}
		cfg.Redis.Addr = opts.Addr
		cfg.Redis.Password = opts.Password
		cfg.Redis.DB = opts.DB
	}

	setString(&cfg.Auth.JWTSecret, env.JWTSecret)
	if env.TokenTTL > 0 {
		cfg.Auth.TokenTTL = env.TokenTTL
	}
	if len(env.AdminUserIDs) > 0 {
		cfg.Auth.AdminUserIDs = env.AdminUserIDs
	}

	setString(&cfg.Auction.SweepSchedule, env.SweepSchedule)
	if err := setBool(&cfg.Scraper.Enabled, "ESTATEHUB_SCRAPER_ENABLED", env.ScraperEnabled); err != nil {
		return err
	}
	setString(&cfg.Scraper.Schedule, env.ScraperSched)
	setString(&cfg.Logging.Level, env.LogLevel)
	setString(&cfg.Logging.Format, env.LogFormat)
	return nil
}

func setString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, name, value string) error {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = b
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		return errors.New("server rate limits cannot be negative")
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
		if len(c.Auth.JWTSecret) < minSecretLength {
			return fmt.Errorf("auth.jwt_secret must be at least %d characters with a persistent database", minSecretLength)
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minSecretLength/2 {
		return fmt.Errorf("auth.jwt_secret must be at least %d characters", minSecretLength/2)
	}
	if c.Auction.DepositPercent < 0 || c.Auction.DepositPercent > 100 {
		return errors.New("auction.deposit_percent must be between 0 and 100")
	}
	if c.Auction.MinIncrement < 0 || c.Auction.PaymentWindow < 0 {
		return errors.New("auction increments and windows cannot be negative")
	}
	if _, err := cron.ParseStandard(c.Auction.SweepSchedule); err != nil {
		return fmt.Errorf("auction.sweep_schedule: %w", err)
	}
	if c.Scraper.Enabled {
		if _, err := cron.ParseStandard(c.Scraper.Schedule); err != nil {
			return fmt.Errorf("scraper.schedule: %w", err)
		}
		if c.Scraper.Count <= 0 {
			return errors.New("scraper.count must be positive")
		}
	}
	for i, feed := range c.Scraper.Feeds {
		if feed.Name == "" || feed.URL == "" {
			return fmt.Errorf("scraper.feeds[%d]: name and url are required", i)
		}
	}
	return nil
}

// EnsureJWTSecret fills an empty secret with a random one. Tokens signed with
// it do not survive a restart. It reports whether a secret was generated.
func (c *Config) EnsureJWTSecret() (bool, error) {
	if c.Auth.JWTSecret != "" {
		return false, nil
	}
	buf := make([]byte, minSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return false, fmt.Errorf("generate jwt secret: %w", err)
	}
	c.Auth.JWTSecret = hex.EncodeToString(buf)
	return true, nil
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StreamModePoll = "poll"
	StreamModeFeed = "feed"
)

// Config holds the main configuration for the server.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Redis    Redis    `mapstructure:"redis"`
	Auth     Auth     `mapstructure:"auth"`
	Stream   Stream   `mapstructure:"stream"`
	Letters  Letters  `mapstructure:"letters"`
	Log      Log      `mapstructure:"log"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Database holds the letter store connection settings.
type Database struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Redis holds Redis connection parameters. Only used in feed mode.
type Redis struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

type Auth struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Stream controls the live inbox push loop.
type Stream struct {
	Mode         string        `mapstructure:"mode"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ResyncEvery  int           `mapstructure:"resync_every"` // feed mode: forced fetch after this many idle ticks
}

type Letters struct {
	MaxLength int `mapstructure:"max_length"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.address", "localhost:6379")

	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("stream.mode", StreamModePoll)
	v.SetDefault("stream.poll_interval", 2*time.Second)
	v.SetDefault("stream.resync_every", 15)

	v.SetDefault("letters.max_length", 5000)

	v.SetDefault("log.level", "info")
}

// bindEnv binds the environment variables the deployment sets.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"server.http_addr": "HTTP_ADDR",
		"database.driver":  "DB_DRIVER",
		"database.dsn":     "DB_DSN",
		"redis.address":    "REDIS_ADDR",
		"redis.password":   "REDIS_PASSWORD",
		"auth.jwt_secret":  "JWT_SECRET",
		"stream.mode":      "STREAM_MODE",
		"log.level":        "LOG_LEVEL",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	return nil
}

// Load reads ./config/config.yaml (if present) and environment overrides.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Must is Load for binaries. It panics if the configuration is unusable.
func Must(paths ...string) *Config {
	cfg, err := Load(paths...)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is not set")
	}
	if c.Database.DSN == "" {
		return errors.New("config: DB_DSN is not set")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unknown database driver %q", c.Database.Driver)
	}
	switch c.Stream.Mode {
	case StreamModePoll, StreamModeFeed:
	default:
		return fmt.Errorf("config: unknown stream mode %q", c.Stream.Mode)
	}
	if c.Stream.PollInterval <= 0 {
		return errors.New("config: stream.poll_interval must be positive")
	}
	if c.Letters.MaxLength <= 0 {
		return errors.New("config: letters.max_length must be positive")
	}
	return nil
}

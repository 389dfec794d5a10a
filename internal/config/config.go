package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Freedomtukun/free-yoga/internal/utils"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Conf holds the application configuration, making it accessible globally.
var Conf *Config

var (
	mu      sync.RWMutex
	reloads []func(*Config)
)

// Config struct is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Practice PracticeConfig `mapstructure:"practice"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port          string `mapstructure:"port"`
	SessionSecret string `mapstructure:"session_secret"`
	// UserHeader carries the caller's user id, set by an upstream gateway.
	UserHeader string `mapstructure:"user_header"`
	// RateLimit is the number of practice sessions a client may start per minute.
	RateLimit    uint `mapstructure:"rate_limit"`
	SecureCookie bool `mapstructure:"secure_cookie"`

	generatedSecret bool
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver        string        `mapstructure:"driver"` // postgres or sqlite
	Host          string        `mapstructure:"host"`
	Port          string        `mapstructure:"port"`
	User          string        `mapstructure:"user"`
	Password      string        `mapstructure:"password"`
	DBName        string        `mapstructure:"dbname"`
	SSLMode       string        `mapstructure:"sslmode"`
	Path          string        `mapstructure:"path"` // sqlite file
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
	LogLevel      string        `mapstructure:"log_level"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory    string `mapstructure:"directory"`
	MaxSize      int    `mapstructure:"max_size"`
	MaxBackups   int    `mapstructure:"max_backups"`
	MaxAge       int    `mapstructure:"max_age"`
	Compress     bool   `mapstructure:"compress"`
	ConsoleLevel string `mapstructure:"console_level"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// PracticeConfig tunes live practice sessions.
type PracticeConfig struct {
	MinConfidence  float64       `mapstructure:"min_confidence"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	Retention      time.Duration `mapstructure:"retention"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5050")
	v.SetDefault("server.session_secret", "")
	v.SetDefault("server.user_header", "X-User-ID")
	v.SetDefault("server.rate_limit", 10)
	v.SetDefault("server.secure_cookie", false)

	// Database defaults
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "free-yoga")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "data/free-yoga.db")
	v.SetDefault("database.slow_threshold", "200ms")
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs
	v.SetDefault("logging.console_level", "debug")

	v.SetDefault("catalog.path", "config/catalog.yaml")

	// Practice defaults
	v.SetDefault("practice.min_confidence", 0.5)
	v.SetDefault("practice.idle_timeout", "2m")
	v.SetDefault("practice.retention", "15m")
	v.SetDefault("practice.persist_timeout", "5s")
	v.SetDefault("practice.sweep_interval", "30s")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "free-yoga")
	v.SetDefault("mqtt.topic_prefix", "yoga/practice")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "free-yoga:practice")
}

// Load reads .env, config/config.yaml and FREEYOGA_* environment variables
// into Conf. The returned viper instance can be passed to Watch.
func Load(projectRoot string) (*viper.Viper, error) {
	// Variables already set in the environment win over .env.
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set default values
	setDefaults(v)

	// --- File Configuration ---
	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Binding ---
	v.SetEnvPrefix("FREEYOGA") // e.g., FREEYOGA_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	set(cfg)
	return v, nil
}

// Watch reloads the configuration when the file changes and runs the
// registered reload hooks.
func Watch(v *viper.Viper, log *zap.Logger) {
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		cfg, err := decode(v)
		if err != nil {
			log.Error("Error reloading configuration", zap.Error(err))
			return
		}
		// The session secret is fixed for the life of the process.
		cfg.Server.SessionSecret = Get().Server.SessionSecret
		set(cfg)

		mu.RLock()
		hooks := append([]func(*Config){}, reloads...)
		mu.RUnlock()
		for _, hook := range hooks {
			hook(cfg)
		}
	})
}

// OnReload registers fn to run after every successful reload.
func OnReload(fn func(*Config)) {
	mu.Lock()
	defer mu.Unlock()
	reloads = append(reloads, fn)
}

// Get returns the current configuration.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return Conf
}

func set(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	Conf = cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Server.SessionSecret == "" {
		secret, err := utils.SecureToken(32)
		if err != nil {
			return nil, fmt.Errorf("generating session secret: %w", err)
		}
		cfg.Server.SessionSecret = secret
		cfg.Server.generatedSecret = true
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Practice.MinConfidence < 0 || c.Practice.MinConfidence > 1 {
		return fmt.Errorf("practice.min_confidence must be within [0,1], got %v", c.Practice.MinConfidence)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt.broker is required when mqtt is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis is enabled")
	}
	return nil
}

// GeneratedSecret reports whether the session secret was generated at
// startup, in which case cookies do not survive a restart.
func (s ServerConfig) GeneratedSecret() bool {
	return s.generatedSecret
}

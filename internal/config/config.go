package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address        string        `mapstructure:"address"`
	Port           int           `mapstructure:"port"`
	Mode           string        `mapstructure:"mode"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig selects the store. Driver is "sqlite" (Path) or "postgres" (DSN).
type DatabaseConfig struct {
	Driver  string `mapstructure:"driver"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
	LogMode bool   `mapstructure:"log_mode"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type SecurityConfig struct {
	BcryptCost    int    `mapstructure:"bcrypt_cost"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

type BackupConfig struct {
	Dir string `mapstructure:"dir"`
}

// SchedulerConfig drives the background application job.
type SchedulerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Concurrency int           `mapstructure:"concurrency"`
	CloseWindow time.Duration `mapstructure:"close_window"`
	Timezone    string        `mapstructure:"timezone"`
}

// RecurringConfig.DuplicateKey is "name" or "id".
type RecurringConfig struct {
	DuplicateKey string `mapstructure:"duplicate_key"`
}

type PricesConfig struct {
	CoinGeckoBase string        `mapstructure:"coingecko_base"`
	YahooBase     string        `mapstructure:"yahoo_base"`
	MinInterval   time.Duration `mapstructure:"min_interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type AppSubConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Security  SecurityConfig  `mapstructure:"security"`
	Log       LogConfig       `mapstructure:"log"`
	Backup    BackupConfig    `mapstructure:"backup"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Recurring RecurringConfig `mapstructure:"recurring"`
	Prices    PricesConfig    `mapstructure:"prices"`
	App       AppSubConfig    `mapstructure:"app"`
}

var (
	appConfig *Config
	once      sync.Once
)

// Load loads configuration from the given file path (e.g. "config.yaml").
// If path is empty, it looks for config.yaml in the working directory.
// A missing file is not an error: defaults and SAVING_* env vars apply.
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		v := viper.New()

		if path == "" {
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
		} else {
			v.SetConfigFile(path)
		}

		// environment overrides, e.g. SAVING_SERVER_PORT=9000
		v.SetEnvPrefix("SAVING")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		if rerr := v.ReadInConfig(); rerr != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(rerr, &notFound) && !errors.Is(rerr, fs.ErrNotExist) {
				err = fmt.Errorf("read config: %w", rerr)
				return
			}
		}

		var c *Config
		c, err = LoadFrom(v)
		if err != nil {
			return
		}
		appConfig = c
	})

	if err != nil {
		return nil, err
	}
	return appConfig, nil
}

// LoadFrom applies defaults to v and decodes it. Used directly by tests and
// by the CLI, which do not go through the process-wide Load.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Get returns the loaded global configuration.
// Call Load() once at application startup.
func Get() *Config {
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.request_timeout", 30*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/saving.db")

	v.SetDefault("jwt.issuer", "saving-back")
	v.SetDefault("jwt.expire_hours", 24)

	v.SetDefault("security.bcrypt_cost", 12)

	v.SetDefault("log.file", "logs/saving.log")
	v.SetDefault("log.level", "info")

	v.SetDefault("backup.dir", "data/backups")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", 30*time.Minute)
	v.SetDefault("scheduler.concurrency", 4)
	v.SetDefault("scheduler.close_window", 2*time.Hour)
	v.SetDefault("scheduler.timezone", "Local")

	v.SetDefault("recurring.duplicate_key", "name")

	v.SetDefault("prices.coingecko_base", "https://api.coingecko.com/api/v3")
	v.SetDefault("prices.yahoo_base", "https://query1.finance.yahoo.com")
	v.SetDefault("prices.min_interval", time.Minute)
	v.SetDefault("prices.timeout", 10*time.Second)

	v.SetDefault("app.page_size", 20)
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for postgres")
	}
	switch c.Recurring.DuplicateKey {
	case "name", "id":
	default:
		return fmt.Errorf("recurring.duplicate_key must be name or id, got %q", c.Recurring.DuplicateKey)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive")
	}
	if c.Scheduler.Concurrency <= 0 {
		c.Scheduler.Concurrency = 1
	}
	return nil
}

// Location resolves scheduler.timezone, falling back to time.Local.
func (s SchedulerConfig) Location() *time.Location {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

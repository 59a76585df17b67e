package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config captures the runtime configuration of the time tracking service.
type Config struct {
	HTTPPort        int
	SQLiteDSN       string
	CronSecret      string
	SessionTTL      time.Duration
	DefaultTimezone string
}

// fileConfig mirrors the TOML layout of the optional configuration file.
type fileConfig struct {
	HTTP struct {
		Port int `toml:"port"`
	} `toml:"http"`
	Database struct {
		DSN string `toml:"dsn"`
	} `toml:"database"`
	Auth struct {
		CronSecret string `toml:"cron_secret"`
		SessionTTL string `toml:"session_ttl"`
	} `toml:"auth"`
	Breaks struct {
		DefaultTimezone string `toml:"default_timezone"`
	} `toml:"breaks"`
}

// Load builds the configuration from defaults, then the TOML file at path if
// one exists, then environment variables. Environment values win. An empty
// path skips the file layer entirely.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		SQLiteDSN:       "file:timeclock.db?_foreign_keys=on",
		SessionTTL:      24 * time.Hour,
		DefaultTimezone: "UTC",
	}

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("TIMECLOCK_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "TIMECLOCK_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("TIMECLOCK_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("TIMECLOCK_CRON_SECRET")); secret != "" {
		cfg.CronSecret = secret
	}
	if cfg.CronSecret == "" {
		missing = append(missing, "TIMECLOCK_CRON_SECRET")
	}

	if ttlValue := strings.TrimSpace(os.Getenv("TIMECLOCK_SESSION_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "TIMECLOCK_SESSION_TTL")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if tz := strings.TrimSpace(os.Getenv("TIMECLOCK_DEFAULT_TIMEZONE")); tz != "" {
		cfg.DefaultTimezone = tz
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		invalid = append(invalid, "TIMECLOCK_DEFAULT_TIMEZONE")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required configuration is not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("configuration values are invalid: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fileCfg fileConfig
	if err := toml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fileCfg.HTTP.Port > 0 {
		cfg.HTTPPort = fileCfg.HTTP.Port
	}
	if fileCfg.Database.DSN != "" {
		cfg.SQLiteDSN = fileCfg.Database.DSN
	}
	if fileCfg.Auth.CronSecret != "" {
		cfg.CronSecret = fileCfg.Auth.CronSecret
	}
	if fileCfg.Auth.SessionTTL != "" {
		ttl, err := time.ParseDuration(fileCfg.Auth.SessionTTL)
		if err != nil || ttl <= 0 {
			return fmt.Errorf("parse config file %s: auth.session_ttl must be a positive duration", path)
		}
		cfg.SessionTTL = ttl
	}
	if fileCfg.Breaks.DefaultTimezone != "" {
		cfg.DefaultTimezone = fileCfg.Breaks.DefaultTimezone
	}

	return nil
}

package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env       string // Environment (dev, staging, prod) (default: dev)
	LogLevel  string // Log level (debug, info, warn, error) (default: info)
	LogFormat string // Log format (json, text) (default: json)

	Addr         string // HTTP listen address (default: :8080)
	DatabaseFile string // Path to the SQLite database file (default: ./stockroom.db)

	// SecureCookies marks auth cookies Secure; enable behind TLS.
	SecureCookies bool

	// RememberSecret signs remember-me tokens. Required outside dev.
	RememberSecret string

	SessionTTL       time.Duration // Login session lifetime (default: 12h)
	RememberTTL      time.Duration // Remember-me token lifetime (default: 720h)
	MaxLoginAttempts int           // Failures before lockout (default: 5)
	LockoutDuration  time.Duration // Lockout length after the threshold (default: 15m)
	ChallengeTTL     time.Duration // 2FA code lifetime (default: 5m)
	TrustedTTL       time.Duration // Trusted-device lifetime after "remember this machine" (default: 720h)

	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired-row purge interval (default: 1h)

	SMTP struct {
		Addr     string // host:port of the relay; empty logs mail instead
		From     string
		Username string
		Password string
	}
}

// LoadConfig reads stockroom.yaml (working dir or /etc/stockroom/) with
// STOCKROOM_* environment variables taking precedence. A missing config file
// is fine; the defaults stand.
func LoadConfig() (Config, error) {
	v := viper.New()
	v.SetConfigName("stockroom")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/stockroom/")
	v.AddConfigPath(".")

	v.SetDefault("env", "dev")
	v.SetDefault("loglevel", "info")
	v.SetDefault("logformat", "json")
	v.SetDefault("addr", ":8080")
	v.SetDefault("databasefile", "stockroom.db")
	v.SetDefault("securecookies", false)
	v.SetDefault("remembersecret", "")
	v.SetDefault("sessionttl", 12*time.Hour)
	v.SetDefault("rememberttl", 30*24*time.Hour)
	v.SetDefault("maxloginattempts", 5)
	v.SetDefault("lockoutduration", 15*time.Minute)
	v.SetDefault("challengettl", 5*time.Minute)
	v.SetDefault("trustedttl", 30*24*time.Hour)
	v.SetDefault("shutdowngraceperiod", 10*time.Second)
	v.SetDefault("housekeepinginterval", time.Hour)
	v.SetDefault("smtp.addr", "")
	v.SetDefault("smtp.from", "stockroom@localhost")
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("STOCKROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.RememberSecret == "" {
		if cfg.Env != "dev" {
			return Config{}, errors.New("remember secret is required outside dev")
		}
		cfg.RememberSecret = "dev-only-insecure-secret"
	}

	return cfg, nil
}

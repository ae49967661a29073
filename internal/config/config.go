// Package config loads iemanjad configuration from command-line flags,
// environment variables and a .env file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults.
const (
	DefaultAPIBind   = "/tmp/iemanja.sock"
	DefaultDatabase  = "sqlite:///var/lib/iemanjad/iemanjad.db"
	DefaultLogLevel  = "info"
	DefaultRateRPS   = 50
	DefaultRateBurst = 100
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Database  DatabaseConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
	File  string // Optional rotating log file
}

// DatabaseConfig selects and locates the storage backend.
type DatabaseConfig struct {
	// Address is sqlite://<path>, badger://<path>, badger://memory or a
	// postgres:// URL.
	Address string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	APIBind         APIBind
	ReadTimeout     time.Duration // default: 15s
	WriteTimeout    time.Duration // default: 15s
	IdleTimeout     time.Duration // default: 60s
	ShutdownTimeout time.Duration // default: 10s
}

// RateLimitConfig holds per-client request limits. RPS 0 disables limiting.
type RateLimitConfig struct {
	RPS   int
	Burst int
}

// Enabled reports whether requests are limited.
func (c RateLimitConfig) Enabled() bool {
	return c.RPS > 0
}

// APIBind is where the HTTP server listens.
type APIBind struct {
	Network string // "tcp" or "unix"
	Address string
}

func (b APIBind) String() string {
	return b.Network + "://" + b.Address
}

// ParseAPIBind reads an ip:port as a TCP address and anything else as a
// Unix socket path.
func ParseAPIBind(s string) (APIBind, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return APIBind{}, errors.New("api bind is empty")
	}
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return APIBind{Network: "tcp", Address: ap.String()}, nil
	}
	return APIBind{Network: "unix", Address: s}, nil
}

// Load builds the configuration from args (without the program name) with
// precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("iemanjad", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (trace, debug, info, warn, error)")
	logFile := fs.String("log-file", "", "Write logs to this file as well, with rotation")
	apiBind := fs.String("api-bind", "", "ip:port or Unix socket path to listen on (default: "+DefaultAPIBind+")")
	dbAddress := fs.String("db-address", "", "Database address (default: "+DefaultDatabase+")")

	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	shutdownTimeout := fs.String("shutdown-timeout", "", "Graceful shutdown timeout (default: 10s)")

	rateRPS := fs.String("rate-limit-rps", "", "Requests per second per client, 0 disables (default: 50)")
	rateBurst := fs.String("rate-limit-burst", "", "Burst size per client (default: 100)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// A missing .env file is fine; a malformed one is not.
	if err := loadEnvFile(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "IEMANJA_LOG_LEVEL", DefaultLogLevel),
			File:  getConfigValue(*logFile, "IEMANJA_LOG_FILE", ""),
		},
		Database: DatabaseConfig{
			Address: getConfigValue(*dbAddress, "IEMANJA_DATABASE", DefaultDatabase),
		},
	}

	bind, err := ParseAPIBind(getConfigValue(*apiBind, "IEMANJA_ADDRESS", DefaultAPIBind))
	if err != nil {
		return nil, err
	}
	cfg.Server.APIBind = bind

	timeouts := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Server.ShutdownTimeout, *shutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT", "10s"},
	}
	for _, t := range timeouts {
		if *t.dst, err = getDurationConfigValue(t.flag, t.envKey, t.fallback); err != nil {
			return nil, err
		}
	}

	if cfg.RateLimit.RPS, err = getIntConfigValue(*rateRPS, "RATE_LIMIT_RPS", DefaultRateRPS); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Burst, err = getIntConfigValue(*rateBurst, "RATE_LIMIT_BURST", DefaultRateBurst); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be trace, debug, info, warn, or error)", c.Logger.Level)
	}

	if !strings.Contains(c.Database.Address, "://") {
		return fmt.Errorf("invalid database address: %q (expected scheme://...)", c.Database.Address)
	}

	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate limit values cannot be negative")
	}
	if c.RateLimit.Enabled() && c.RateLimit.Burst == 0 {
		return errors.New("rate limit burst must be positive when rate limiting is enabled")
	}

	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) (int, error) {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return n, nil
}

// getDurationConfigValue returns a duration from flag, env var, or default.
func getDurationConfigValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", envKey, strValue)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Environment variables that are already set win over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}

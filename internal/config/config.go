package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Logger    LoggerConfig
	Security  SecurityConfig
	Dashboard DashboardConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DataConfig struct {
	CSVFile      string
	CacheDir     string
	CacheEnabled bool
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

// DashboardConfig controls presentation defaults. DefaultYear 0 selects the
// latest year in the dataset.
type DashboardConfig struct {
	DefaultYear int
	YoYAxisMin  float64
	YoYAxisMax  float64
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8084,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Data: DataConfig{
			CSVFile:      "cocoa_import.csv",
			CacheDir:     ".cache",
			CacheEnabled: true,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  20,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
		Dashboard: DashboardConfig{
			DefaultYear: 0,
			YoYAxisMin:  -20,
			YoYAxisMax:  30,
		},
	}
}

// Load layers defaults, an optional config file (TOML, YAML or JSON) and
// environment variables, then validates the result.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		fc, err := LoadConfigFile(configFile)
		if err != nil {
			return nil, err
		}
		if err := fc.apply(cfg); err != nil {
			return nil, fmt.Errorf("apply config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnvString("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Data.CSVFile = getEnvString("CSV_FILE", c.Data.CSVFile)
	c.Data.CacheDir = getEnvString("CACHE_DIR", c.Data.CacheDir)
	c.Data.CacheEnabled = getEnvBool("CACHE_ENABLED", c.Data.CacheEnabled)

	c.Logger.Level = getEnvString("LOG_LEVEL", c.Logger.Level)
	c.Logger.Format = getEnvString("LOG_FORMAT", c.Logger.Format)

	c.Security.EnableRateLimit = getEnvBool("SECURITY_RATE_LIMIT_ENABLED", c.Security.EnableRateLimit)
	c.Security.RateLimitRPS = getEnvInt("SECURITY_RATE_LIMIT_RPS", c.Security.RateLimitRPS)
	c.Security.RateLimitBurst = getEnvInt("SECURITY_RATE_LIMIT_BURST", c.Security.RateLimitBurst)
	c.Security.AllowedOrigins = getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", c.Security.AllowedOrigins)
	c.Security.TrustedProxies = getEnvStringSlice("SECURITY_TRUSTED_PROXIES", c.Security.TrustedProxies)

	c.Dashboard.DefaultYear = getEnvInt("DASHBOARD_DEFAULT_YEAR", c.Dashboard.DefaultYear)
	c.Dashboard.YoYAxisMin = getEnvFloat("DASHBOARD_YOY_MIN", c.Dashboard.YoYAxisMin)
	c.Dashboard.YoYAxisMax = getEnvFloat("DASHBOARD_YOY_MAX", c.Dashboard.YoYAxisMax)
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Data.CSVFile == "" {
		return fmt.Errorf("CSV file path cannot be empty")
	}

	if c.Data.CacheEnabled && c.Data.CacheDir == "" {
		return fmt.Errorf("cache directory cannot be empty when caching is enabled")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Dashboard.DefaultYear < 0 {
		return fmt.Errorf("dashboard default year cannot be negative")
	}

	if c.Dashboard.YoYAxisMin >= c.Dashboard.YoYAxisMax {
		return fmt.Errorf("YoY axis min (%g) must be below max (%g)", c.Dashboard.YoYAxisMin, c.Dashboard.YoYAxisMax)
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

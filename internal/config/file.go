package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config in the on-disk formats. Durations are strings
// ("10s") and optional booleans are pointers so an omitted key keeps the
// default.
type FileConfig struct {
	Server struct {
		Host            string `json:"host" yaml:"host" toml:"host"`
		Port            int    `json:"port" yaml:"port" toml:"port"`
		ReadTimeout     string `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout"`
		WriteTimeout    string `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"`
		IdleTimeout     string `json:"idle_timeout" yaml:"idle_timeout" toml:"idle_timeout"`
		ShutdownTimeout string `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	} `json:"server" yaml:"server" toml:"server"`

	Data struct {
		CSVFile      string `json:"csv_file" yaml:"csv_file" toml:"csv_file"`
		CacheDir     string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`
		CacheEnabled *bool  `json:"cache_enabled" yaml:"cache_enabled" toml:"cache_enabled"`
	} `json:"data" yaml:"data" toml:"data"`

	Logger struct {
		Level  string `json:"level" yaml:"level" toml:"level"`
		Format string `json:"format" yaml:"format" toml:"format"`
	} `json:"logger" yaml:"logger" toml:"logger"`

	Security struct {
		EnableRateLimit *bool    `json:"rate_limit_enabled" yaml:"rate_limit_enabled" toml:"rate_limit_enabled"`
		RateLimitRPS    int      `json:"rate_limit_rps" yaml:"rate_limit_rps" toml:"rate_limit_rps"`
		RateLimitBurst  int      `json:"rate_limit_burst" yaml:"rate_limit_burst" toml:"rate_limit_burst"`
		AllowedOrigins  []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
		TrustedProxies  []string `json:"trusted_proxies" yaml:"trusted_proxies" toml:"trusted_proxies"`
	} `json:"security" yaml:"security" toml:"security"`

	Dashboard struct {
		DefaultYear int      `json:"default_year" yaml:"default_year" toml:"default_year"`
		YoYAxisMin  *float64 `json:"yoy_axis_min" yaml:"yoy_axis_min" toml:"yoy_axis_min"`
		YoYAxisMax  *float64 `json:"yoy_axis_max" yaml:"yoy_axis_max" toml:"yoy_axis_max"`
	} `json:"dashboard" yaml:"dashboard" toml:"dashboard"`
}

// LoadConfigFile reads a TOML, YAML or JSON file, picking the decoder from
// the extension.
func LoadConfigFile(filePath string) (*FileConfig, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("error accessing config file: %w", err)
	}

	if fileInfo.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a file", filePath)
	}

	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var fc FileConfig

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".toml":
		if err := toml.Unmarshal(fileData, &fc); err != nil {
			return nil, fmt.Errorf("error parsing TOML file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(fileData, &fc); err != nil {
			return nil, fmt.Errorf("error parsing YAML file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(fileData, &fc); err != nil {
			return nil, fmt.Errorf("error parsing JSON file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", filepath.Ext(filePath))
	}

	return &fc, nil
}

func (fc *FileConfig) apply(cfg *Config) error {
	if fc.Server.Host != "" {
		cfg.Server.Host = fc.Server.Host
	}
	if fc.Server.Port != 0 {
		cfg.Server.Port = fc.Server.Port
	}
	for _, d := range []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_timeout", fc.Server.ReadTimeout, &cfg.Server.ReadTimeout},
		{"server.write_timeout", fc.Server.WriteTimeout, &cfg.Server.WriteTimeout},
		{"server.idle_timeout", fc.Server.IdleTimeout, &cfg.Server.IdleTimeout},
		{"server.shutdown_timeout", fc.Server.ShutdownTimeout, &cfg.Server.ShutdownTimeout},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}

	if fc.Data.CSVFile != "" {
		cfg.Data.CSVFile = fc.Data.CSVFile
	}
	if fc.Data.CacheDir != "" {
		cfg.Data.CacheDir = fc.Data.CacheDir
	}
	if fc.Data.CacheEnabled != nil {
		cfg.Data.CacheEnabled = *fc.Data.CacheEnabled
	}

	if fc.Logger.Level != "" {
		cfg.Logger.Level = fc.Logger.Level
	}
	if fc.Logger.Format != "" {
		cfg.Logger.Format = fc.Logger.Format
	}

	if fc.Security.EnableRateLimit != nil {
		cfg.Security.EnableRateLimit = *fc.Security.EnableRateLimit
	}
	if fc.Security.RateLimitRPS != 0 {
		cfg.Security.RateLimitRPS = fc.Security.RateLimitRPS
	}
	if fc.Security.RateLimitBurst != 0 {
		cfg.Security.RateLimitBurst = fc.Security.RateLimitBurst
	}
	if len(fc.Security.AllowedOrigins) > 0 {
		cfg.Security.AllowedOrigins = fc.Security.AllowedOrigins
	}
	if len(fc.Security.TrustedProxies) > 0 {
		cfg.Security.TrustedProxies = fc.Security.TrustedProxies
	}

	if fc.Dashboard.DefaultYear != 0 {
		cfg.Dashboard.DefaultYear = fc.Dashboard.DefaultYear
	}
	if fc.Dashboard.YoYAxisMin != nil {
		cfg.Dashboard.YoYAxisMin = *fc.Dashboard.YoYAxisMin
	}
	if fc.Dashboard.YoYAxisMax != nil {
		cfg.Dashboard.YoYAxisMax = *fc.Dashboard.YoYAxisMax
	}

	return nil
}

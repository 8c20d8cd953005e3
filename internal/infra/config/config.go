package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Progress ProgressConfig `mapstructure:"progress" yaml:"progress"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

type DownloadConfig struct {
	OutDir         string `mapstructure:"out_dir" yaml:"out_dir"`
	StagingSuffix  string `mapstructure:"staging_suffix" yaml:"staging_suffix"`
	UseMemoryCache bool   `mapstructure:"use_memory_cache" yaml:"use_memory_cache"`
	ChunkSize      int    `mapstructure:"chunk_size" yaml:"chunk_size"`
}

type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent     string        `mapstructure:"user_agent" yaml:"user_agent"`
	MinTLSVersion string        `mapstructure:"min_tls_version" yaml:"min_tls_version"`
}

type ProgressConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
	Window   time.Duration `mapstructure:"window" yaml:"window"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/69.0.3497.100 Safari/537.36"

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("download.out_dir", "./downloads")
	v.SetDefault("download.staging_suffix", ".partial")
	v.SetDefault("download.use_memory_cache", false)
	v.SetDefault("download.chunk_size", 1024)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.user_agent", defaultUserAgent)
	v.SetDefault("http.min_tls_version", "1.2")
	v.SetDefault("progress.interval", time.Second)
	v.SetDefault("progress.window", 5*time.Second)
	v.SetDefault("log.path", "gofetch.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", false)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "./data/gofetch.db")
	v.SetDefault("store.postgres_dsn", "")
}

// Load reads path, or the first of config.yaml and /config/config.yaml when
// path is empty. Without any file the defaults (plus GOFETCH_* env) apply.
func Load(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	} else {
		for _, candidate := range []string{"config.yaml", "/config/config.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("GOFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return decode(v)
}

// Default returns the built-in configuration, ignoring files and env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	cfg, err := decode(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WriteDefault writes the default configuration to path as YAML.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("refusing to overwrite existing file: %s", path)
	}

	v := viper.New()
	setDefaults(v)

	data, err := yaml.Marshal(humanize(v.AllSettings()))
	if err != nil {
		return fmt.Errorf("could not encode config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("could not write config: %w", err)
	}
	return nil
}

// humanize renders durations as "30s" instead of nanoseconds.
func humanize(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, val := range settings {
		switch typed := val.(type) {
		case map[string]any:
			out[k] = humanize(typed)
		case time.Duration:
			out[k] = typed.String()
		default:
			out[k] = val
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.Download.OutDir == "" {
		c.Download.OutDir = "./downloads"
	}

	if c.Download.StagingSuffix == "" {
		c.Download.StagingSuffix = ".partial"
	}

	if c.Download.ChunkSize <= 0 {
		c.Download.ChunkSize = 1024
	}

	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 30 * time.Second
	}

	switch c.HTTP.MinTLSVersion {
	case "":
		c.HTTP.MinTLSVersion = "1.2"
	case "1.0", "1.1", "1.2", "1.3":
	default:
		return fmt.Errorf("http.min_tls_version %q is not one of 1.0, 1.1, 1.2, 1.3", c.HTTP.MinTLSVersion)
	}

	if c.Progress.Interval <= 0 {
		c.Progress.Interval = time.Second
	}

	if c.Progress.Window <= 0 {
		c.Progress.Window = 5 * time.Second
	}

	if c.Progress.Window < c.Progress.Interval {
		fmt.Println("Warning: progress.window is shorter than progress.interval; speeds will read as zero between ticks")
	}

	switch c.Store.Driver {
	case "", DriverSQLite:
		c.Store.Driver = DriverSQLite
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}

	return nil
}

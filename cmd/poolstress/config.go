package main

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hupe1980/blockpool"
)

const envPrefix = "POOLSTRESS"

// Config drives a stress run. Values come from flags, POOLSTRESS_* variables
// and an optional YAML file, in that order of precedence.
type Config struct {
	Scenario    string        `mapstructure:"scenario" yaml:"scenario"`
	Workers     int           `mapstructure:"workers" yaml:"workers"`
	Objects     int           `mapstructure:"objects" yaml:"objects"` // per worker and round
	Duration    time.Duration `mapstructure:"duration" yaml:"duration"`
	Rate        float64       `mapstructure:"rate" yaml:"rate"` // emplaces per second per worker, 0 is unlimited
	Seed        int64         `mapstructure:"seed" yaml:"seed"`
	BlockSize   int           `mapstructure:"block_size" yaml:"block_size"`
	MaxBlocks   int           `mapstructure:"max_blocks" yaml:"max_blocks"`
	MemoryLimit int64         `mapstructure:"memory_limit" yaml:"memory_limit"`
	MetricsAddr string        `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	LogLevel    string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat   string        `mapstructure:"log_format" yaml:"log_format"`
}

var scenarios = []string{"churn", "iterate", "weak", "reserve"}

func defaultConfig() Config {
	return Config{
		Scenario:  "churn",
		Workers:   runtime.GOMAXPROCS(0),
		Objects:   1000,
		Duration:  10 * time.Second,
		Seed:      42,
		BlockSize: blockpool.DefaultBlockSize,
		MaxBlocks: blockpool.DefaultMaxBlocks,
		LogLevel:  "info",
		LogFormat: "text",
	}
}

func bindFlags(fs *pflag.FlagSet) {
	d := defaultConfig()
	fs.String("scenario", d.Scenario, "Workload: "+strings.Join(scenarios, ", "))
	fs.Int("workers", d.Workers, "Concurrent worker goroutines")
	fs.Int("objects", d.Objects, "Objects each worker creates per round")
	fs.Duration("duration", d.Duration, "How long to keep running rounds")
	fs.Float64("rate", d.Rate, "Emplaces per second per worker (0 = unlimited)")
	fs.Int64("seed", d.Seed, "Seed for the workload RNG")
	fs.Int("block-size", d.BlockSize, "Slots per pool block")
	fs.Int("max-blocks", d.MaxBlocks, "Maximum number of pool blocks")
	fs.Int64("memory-limit", d.MemoryLimit, "Pool memory limit in bytes (0 = unlimited)")
	fs.String("metrics-addr", d.MetricsAddr, "Serve Prometheus metrics on this address, e.g. :2112")
	fs.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-format", d.LogFormat, "Log format (text, json)")
}

// loadConfig layers the config file, environment and flags over the defaults.
func loadConfig(file string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := defaultConfig()
	v.SetDefault("scenario", d.Scenario)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("objects", d.Objects)
	v.SetDefault("duration", d.Duration)
	v.SetDefault("rate", d.Rate)
	v.SetDefault("seed", d.Seed)
	v.SetDefault("block_size", d.BlockSize)
	v.SetDefault("max_blocks", d.MaxBlocks)
	v.SetDefault("memory_limit", d.MemoryLimit)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil {
				bindErr = errors.Join(bindErr, err)
			}
		})
		if bindErr != nil {
			return Config{}, bindErr
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	var errs []error
	if !validScenario(c.Scenario) {
		errs = append(errs, fmt.Errorf("unknown scenario %q", c.Scenario))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Objects <= 0 {
		errs = append(errs, fmt.Errorf("objects must be positive, got %d", c.Objects))
	}
	if c.Rate < 0 {
		errs = append(errs, fmt.Errorf("rate must not be negative, got %v", c.Rate))
	}
	if _, err := c.level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validScenario(name string) bool {
	for _, s := range scenarios {
		if s == name {
			return true
		}
	}
	return false
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return l, nil
}

func (c Config) logger() *blockpool.Logger {
	l, _ := c.level()
	if c.LogFormat == "json" {
		return blockpool.NewJSONLogger(l)
	}
	return blockpool.NewTextLogger(l)
}

func (c Config) poolOptions() []blockpool.Option {
	return []blockpool.Option{
		blockpool.WithBlockSize(c.BlockSize),
		blockpool.WithMaxBlocks(c.MaxBlocks),
		blockpool.WithMemoryLimit(c.MemoryLimit),
		blockpool.WithLogger(c.logger()),
	}
}

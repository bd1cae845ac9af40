package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"hammer/pkg/generator"
	"hammer/pkg/sink"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the full configuration of a hammer run, as read from a YAML
// file and overridden by command line flags.
type Config struct {
	BatchLimit     uint64     `yaml:"batch_limit"`
	BatchSize      int        `yaml:"batch_size"`
	SetSize        int        `yaml:"set_size"`
	SleepInterval  Duration   `yaml:"sleep"`
	MaxValue       int64      `yaml:"value"`
	Tags           []string   `yaml:"tags"`
	Seed           uint32     `yaml:"seed"`
	Hostname       string     `yaml:"hostname"`
	ProcessCount   int        `yaml:"process_count"`
	Sink           SinkConfig `yaml:"sink"`
	MetricsAddr    string     `yaml:"metrics_addr"`
	ReportInterval Duration   `yaml:"report_interval"`
	LogLevel       string     `yaml:"log_level"`
}

type SinkConfig struct {
	Kind     string   `yaml:"kind"`
	Address  string   `yaml:"address"`
	Path     string   `yaml:"path"`
	Prefix   string   `yaml:"prefix"`
	Compress bool     `yaml:"compress"`
	Insecure bool     `yaml:"insecure"`
	Timeout  Duration `yaml:"timeout"`
	Interval Duration `yaml:"interval"`
}

func Default() Config {
	return Config{
		BatchLimit:     0,
		BatchSize:      1,
		SetSize:        1,
		SleepInterval:  Duration(time.Second),
		MaxValue:       1,
		Tags:           []string{},
		ProcessCount:   1,
		Sink:           SinkConfig{Kind: string(sink.KindStdout)},
		ReportInterval: Duration(time.Minute),
		LogLevel:       "info",
	}
}

// Load reads a YAML config file on top of the defaults and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.BatchSize < 0 {
		return fmt.Errorf("%w: batch_size must be >= 0, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.SetSize < 0 {
		return fmt.Errorf("%w: set_size must be >= 0, got %d", ErrInvalidConfig, c.SetSize)
	}
	if c.SleepInterval < 0 {
		return fmt.Errorf("%w: sleep must be >= 0, got %s", ErrInvalidConfig, time.Duration(c.SleepInterval))
	}
	if c.MaxValue < 0 || c.MaxValue > math.MaxUint32 {
		return fmt.Errorf("%w: value must be in [0, %d], got %d", ErrInvalidConfig, uint32(math.MaxUint32), c.MaxValue)
	}
	if c.ProcessCount < 1 {
		return fmt.Errorf("%w: process_count must be >= 1, got %d", ErrInvalidConfig, c.ProcessCount)
	}
	if c.ReportInterval < 0 {
		return fmt.Errorf("%w: report_interval must be >= 0, got %s", ErrInvalidConfig, time.Duration(c.ReportInterval))
	}
	if _, err := sink.ParseKind(c.Sink.Kind); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) Generator() generator.Config {
	return generator.Config{
		BatchLimit:    c.BatchLimit,
		BatchSize:     c.BatchSize,
		SetSize:       c.SetSize,
		SleepInterval: time.Duration(c.SleepInterval),
		MaxValue:      c.MaxValue,
		Tags:          c.Tags,
	}
}

func (s SinkConfig) Sink() sink.Config {
	return sink.Config{
		Kind:     sink.Kind(s.Kind),
		Address:  s.Address,
		Path:     s.Path,
		Prefix:   s.Prefix,
		Compress: s.Compress,
		Insecure: s.Insecure,
		Timeout:  time.Duration(s.Timeout),
		Interval: time.Duration(s.Interval),
	}
}

// Package config loads run settings. Precedence is defaults, then an optional
// YAML file, then environment variables, then command line flags, which the
// caller applies on top of the loaded Config.
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("1brc.yaml").
//	    Load()
package config

import (
	"errors"
	"fmt"
	"io"
	"math/bits"
	"os"
	"reflect"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/miku/stationagg/internal/chunk"
	"github.com/miku/stationagg/internal/engine"
	"github.com/miku/stationagg/internal/table"
)

// DefaultEnvPrefix prefixes every environment variable, e.g. BRC_WORKERS or
// BRC_TABLE_MAX_CAPACITY.
const DefaultEnvPrefix = "BRC"

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config is the complete run configuration.
type Config struct {
	// Input is the measurements file.
	Input   string        `yaml:"input" env:"INPUT"`
	Workers int           `yaml:"workers" env:"WORKERS"`
	Naive   bool          `yaml:"naive" env:"NAIVE"`
	Scanner ScannerConfig `yaml:"scanner" env:"SCANNER"`
	Table   TableConfig   `yaml:"table" env:"TABLE"`
	Log     LogConfig     `yaml:"log" env:"LOG"`
	// CPUProfile, if set, is the file to write a CPU profile to.
	CPUProfile string `yaml:"cpu_profile" env:"CPU_PROFILE"`
	// MetricsTextfile, if set, receives run metrics in the Prometheus text
	// format, for the node exporter textfile collector.
	MetricsTextfile string `yaml:"metrics_textfile" env:"METRICS_TEXTFILE"`
}

type ScannerConfig struct {
	BufferSize    int `yaml:"buffer_size" env:"BUFFER_SIZE"`
	MaxLineLength int `yaml:"max_line_length" env:"MAX_LINE_LENGTH"`
}

type TableConfig struct {
	InitialCapacity int     `yaml:"initial_capacity" env:"INITIAL_CAPACITY"`
	LoadFactor      float64 `yaml:"load_factor" env:"LOAD_FACTOR"`
	MaxCapacity     int     `yaml:"max_capacity" env:"MAX_CAPACITY"`
}

// LogConfig selects level (debug, info, warn, error) and format (console,
// json).
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() *Config {
	return &Config{
		Input:   "measurements.txt",
		Workers: runtime.NumCPU(),
		Scanner: ScannerConfig{
			BufferSize:    chunk.DefaultBufferSize,
			MaxLineLength: chunk.DefaultMaxLineLen,
		},
		Table: TableConfig{
			InitialCapacity: table.DefaultInitialCapacity,
			LoadFactor:      table.DefaultLoadFactor,
			MaxCapacity:     table.DefaultMaxCapacity,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate reports all invalid settings at once.
func (c *Config) Validate() error {
	var errs []string
	if c.Input == "" {
		errs = append(errs, "input must be set")
	}
	if c.Workers < 1 {
		errs = append(errs, "workers must be positive")
	}
	if c.Scanner.MaxLineLength < 6 {
		// "a;-1.0"
		errs = append(errs, "max_line_length must be at least 6")
	}
	if c.Scanner.BufferSize < 2*c.Scanner.MaxLineLength {
		errs = append(errs, "buffer_size must be at least twice max_line_length")
	}
	if !isPow2(c.Table.InitialCapacity) {
		errs = append(errs, "initial_capacity must be a power of two")
	}
	if !isPow2(c.Table.MaxCapacity) {
		errs = append(errs, "max_capacity must be a power of two")
	}
	if c.Table.MaxCapacity < c.Table.InitialCapacity {
		errs = append(errs, "max_capacity must not be below initial_capacity")
	}
	if c.Table.LoadFactor <= 0 || c.Table.LoadFactor >= 1 {
		errs = append(errs, "load_factor must be between 0 and 1, exclusive")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

func isPow2(n int) bool {
	return n > 0 && bits.OnesCount(uint(n)) == 1
}

// Engine returns the engine settings. The logger is left to the caller.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Workers: c.Workers,
		Scanner: chunk.Options{
			BufferSize: c.Scanner.BufferSize,
			MaxLineLen: c.Scanner.MaxLineLength,
		},
		Table: table.Options{
			InitialCapacity: c.Table.InitialCapacity,
			LoadFactor:      c.Table.LoadFactor,
			MaxCapacity:     c.Table.MaxCapacity,
		},
	}
}

// Loader builds a Config from defaults, file and environment.
type Loader struct {
	configPath string
	envPrefix  string
	lookupEnv  func(string) (string, bool)
}

// NewLoader returns a Loader using DefaultEnvPrefix and the process
// environment.
func NewLoader() *Loader {
	return &Loader{
		envPrefix: DefaultEnvPrefix,
		lookupEnv: os.LookupEnv,
	}
}

// WithConfigPath sets the YAML file to read. An empty path skips the file.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load returns the merged configuration. It does not validate, since flags
// are usually applied afterwards.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}
	if err := l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}
	return cfg, nil
}

func (l *Loader) loadFromFile(cfg *Config) error {
	f, err := os.Open(l.configPath)
	if err != nil {
		return err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("parse %s: %w", l.configPath, err)
	}
	return nil
}

// setFieldsFromEnv walks the struct and sets every field whose variable,
// built from the env tags joined by underscores, is present.
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field, tag := v.Field(i), t.Field(i).Tag.Get("env")
		if tag == "" || tag == "-" {
			continue
		}
		key := prefix + "_" + tag
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, key); err != nil {
				return err
			}
			continue
		}
		value, ok := l.lookupEnv(key)
		if !ok || value == "" {
			continue
		}
		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	default:
		return fmt.Errorf("unsupported kind %s", field.Kind())
	}
	return nil
}

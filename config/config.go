// Package config handles flow.toml runtime configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/chazu/flowvm/flow"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "flow.toml"

// Environment overrides.
const (
	EnvTickBudget   = "FLOWVM_TICK_BUDGET"
	EnvQueueSize    = "FLOWVM_QUEUE_SIZE"
	EnvLogVerbosity = "FLOWVM_LOG_VERBOSITY"
)

// ErrInvalid is returned when a configuration fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Config represents a flow.toml file.
type Config struct {
	Runtime  Runtime  `toml:"runtime"`
	Log      Log      `toml:"log"`
	Debugger Debugger `toml:"debugger"`

	// Dir is the directory containing the flow.toml file (set at load time).
	Dir string `toml:"-" validate:"-"`
}

// Runtime sizes the engine.
type Runtime struct {
	TickBudget  Duration `toml:"tick_budget" validate:"gte=0"`
	QueueSize   int      `toml:"queue_size" validate:"gte=1,lte=1000000"`
	StackSize   int      `toml:"stack_size" validate:"gte=8,lte=65536"`
	ArenaSize   int      `toml:"arena_size" validate:"gte=0"`
	Diagnostics bool     `toml:"diagnostics"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity" validate:"gte=-4,lte=4"`
	Path      string `toml:"path"`
}

// Debugger configures the debugger message stream.
type Debugger struct {
	Enabled     bool   `toml:"enabled"`
	Output      string `toml:"output" validate:"required_if=Enabled true"`
	StartPaused bool   `toml:"start_paused"`
}

// Duration is a time.Duration written as a string ("5ms") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no flow.toml exists.
func Default() *Config {
	def := flow.DefaultConfig()
	return &Config{
		Runtime: Runtime{
			TickBudget: Duration{def.TickBudget},
			QueueSize:  def.QueueSize,
			StackSize:  def.StackSize,
		},
	}
}

// Load parses a flow.toml file from the given directory over the defaults,
// applies environment overrides, and validates the result. Keys present in
// the file win over defaults, including explicit zeros. A .env file next to
// flow.toml is loaded into the environment first; variables already set win.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if err := loadDotEnv(c.Dir); err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a flow.toml file, then loads
// and returns it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("cannot load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from the FLOWVM_* environment variables.
func (c *Config) ApplyEnv() error {
	if s, ok := os.LookupEnv(EnvTickBudget); ok && s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvTickBudget, err)
		}
		c.Runtime.TickBudget.Duration = d
	}
	if s, ok := os.LookupEnv(EnvQueueSize); ok && s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvQueueSize, err)
		}
		c.Runtime.QueueSize = n
	}
	if s, ok := os.LookupEnv(EnvLogVerbosity); ok && s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalid, EnvLogVerbosity, err)
		}
		c.Log.Verbosity = n
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(Duration); ok {
			return int64(d.Duration)
		}
		return nil
	}, Duration{})
	return v
}

// Validate checks the field constraints. Failures wrap ErrInvalid.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalid, f.Namespace(), f.Tag(), f.Value())
	}
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}

// Engine returns the engine sizing described by c.
func (c *Config) Engine() flow.Config {
	return flow.Config{
		QueueSize:   c.Runtime.QueueSize,
		StackSize:   c.Runtime.StackSize,
		TickBudget:  c.Runtime.TickBudget.Duration,
		Diagnostics: c.Runtime.Diagnostics,
	}
}

// Package config loads the settings of the typedcomm tools from a TOML file,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/sarchlab/typedcomm/datarecording"
)

// EnvPrefix prefixes the environment variables that override settings.
const EnvPrefix = "TYPEDCOMM_"

// Clock names.
const (
	ClockTransport = "transport"
	ClockWall      = "wall"
)

// Config holds the settings of a run.
type Config struct {
	// Ranks is the number of ranks of the in-process group.
	Ranks int `toml:"ranks"`

	// Root is the root rank of collectives.
	Root int `toml:"root"`

	// ReportFile receives a copy of the timing reports when set.
	ReportFile string `toml:"report_file"`

	// RecordDB is the database the timing tables are recorded into. For
	// SQLite backends it is a file name without extension, for ClickHouse a
	// DSN. Nothing is recorded when it is empty.
	RecordDB string `toml:"record_db"`

	// RecordBackend is a datarecording backend name.
	RecordBackend string `toml:"record_backend"`

	// Monitor turns on the HTTP monitor.
	Monitor bool `toml:"monitor"`

	// MonitorPort is the port of the monitor. Zero picks a random port.
	MonitorPort int `toml:"monitor_port"`

	// OpenBrowser opens the monitor page once the server is up.
	OpenBrowser bool `toml:"open_browser"`

	// LogLevel is a zerolog level name.
	LogLevel string `toml:"log_level"`

	// Clock selects the clock of the timers.
	Clock string `toml:"clock"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Ranks:         2,
		RecordBackend: datarecording.BackendSQLite,
		LogLevel:      "info",
		Clock:         ClockTransport,
	}
}

// Load reads the TOML file at path on top of the defaults. Keys missing from
// the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("config: unknown key %q in %s", undecoded[0].String(), path)
	}

	return cfg, nil
}

// Resolve builds the effective settings with Read and validates them.
func Resolve(path string, dotenvFiles ...string) (Config, error) {
	cfg, err := Read(path, dotenvFiles...)
	if err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Read builds the settings from the file at path if it is not empty, then
// the variables of the dotenv files, then the process environment. A missing
// dotenv file is skipped. The result is not validated.
func Read(path string, dotenvFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return Config{}, err
		}
	}

	for _, f := range dotenvFiles {
		vars, err := godotenv.Read(f)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", f, err)
		}

		if err := cfg.ApplyEnv(mapLookup(vars)); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", f, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	return cfg, nil
}

func mapLookup(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

// ApplyEnv overrides settings with the variables named EnvPrefix followed by
// the upper-cased TOML key, e.g. TYPEDCOMM_MONITOR_PORT.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"RANKS":        &c.Ranks,
		"ROOT":         &c.Root,
		"MONITOR_PORT": &c.MonitorPort,
	}

	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}

			*dst = n
		}
	}

	bools := map[string]*bool{
		"MONITOR":      &c.Monitor,
		"OPEN_BROWSER": &c.OpenBrowser,
	}

	for key, dst := range bools {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}

			*dst = b
		}
	}

	strs := map[string]*string{
		"REPORT_FILE":    &c.ReportFile,
		"RECORD_DB":      &c.RecordDB,
		"RECORD_BACKEND": &c.RecordBackend,
		"LOG_LEVEL":      &c.LogLevel,
		"CLOCK":          &c.Clock,
	}

	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	return nil
}

// Validate checks that the settings describe a runnable group.
func (c Config) Validate() error {
	if c.Ranks < 1 {
		return fmt.Errorf("config: ranks must be at least 1, got %d", c.Ranks)
	}

	if c.Root < 0 || c.Root >= c.Ranks {
		return fmt.Errorf("config: root %d outside [0, %d)", c.Root, c.Ranks)
	}

	if c.MonitorPort < 0 || c.MonitorPort > 65535 {
		return fmt.Errorf("config: invalid monitor port %d", c.MonitorPort)
	}

	switch c.Clock {
	case ClockTransport, ClockWall:
	default:
		return fmt.Errorf("config: unknown clock %q", c.Clock)
	}

	switch c.RecordBackend {
	case datarecording.BackendSQLite, datarecording.BackendSQLitePure, datarecording.BackendClickHouse:
	default:
		return fmt.Errorf("config: unknown record backend %q", c.RecordBackend)
	}

	return nil
}

// RecorderConfig returns the datarecording settings of the run.
func (c Config) RecorderConfig() datarecording.RecorderConfig {
	rc := datarecording.RecorderConfig{Type: c.RecordBackend}

	if c.RecordBackend == datarecording.BackendClickHouse {
		rc.ConnStr = c.RecordDB
	} else {
		rc.Path = c.RecordDB
	}

	return rc
}

// Write encodes the settings as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

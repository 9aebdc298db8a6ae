// Package config loads the optional TOML configuration file.
//
//	# /etc/procs-need-restart.toml
//	filters          = ["!/usr/lib/debug/*", "/usr/*"]
//	staging_suffixes = [".apk-new"]
//	procfs           = "/proc"
//	jobs             = 4
//	glob             = "fnmatch"   # or "pathname"
//	output           = "text"      # or "json"
//	metrics_file     = "/var/lib/node_exporter/procs_need_restart.prom"
//
// Every key is optional. Command-line flags override the file, and the
// PROCFS_PATH environment variable overrides procfs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/ja7ad/procs-need-restart/pkg/filter"
)

// DefaultPath is read when no --config flag is given. It may be absent.
const DefaultPath = "/etc/procs-need-restart.toml"

// EnvProcfs overrides the procfs root from the file.
const EnvProcfs = "PROCFS_PATH"

const (
	OutputText = "text"
	OutputJSON = "json"
)

type Config struct {
	Filters         []string `toml:"filters"`
	StagingSuffixes []string `toml:"staging_suffixes"`
	Procfs          string   `toml:"procfs"`
	Jobs            int      `toml:"jobs"`
	Glob            string   `toml:"glob"`
	Output          string   `toml:"output"`
	MetricsFile     string   `toml:"metrics_file"`
}

func DefaultConfig() Config {
	return Config{
		StagingSuffixes: []string{".apk-new"},
		Procfs:          "/proc",
		Jobs:            1,
		Glob:            "fnmatch",
		Output:          OutputText,
	}
}

type LoadResult struct {
	Config   Config
	Path     string // file actually read, empty if none
	Warnings []string
}

// Load reads DefaultPath if it exists.
func Load() (*LoadResult, error) {
	return LoadFrom(DefaultPath, false)
}

// LoadFrom decodes path over DefaultConfig. A missing file is an error only
// when required is set. Keys the file does not set keep their defaults;
// unknown keys produce warnings, not errors.
func LoadFrom(path string, required bool) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return result, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	md, err := toml.Decode(string(data), &result.Config)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	result.Path = path

	for _, key := range md.Undecoded() {
		result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key.String()))
	}

	if err := validate(&result.Config); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return result, nil
}

// ApplyEnv lets the environment override file values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvProcfs); v != "" {
		c.Procfs = v
	}
}

// Validate checks values that may also come from flags.
func (c *Config) Validate() error { return validate(c) }

func validate(c *Config) error {
	if c.Jobs < 1 {
		return fmt.Errorf("jobs must be at least 1, got %d", c.Jobs)
	}
	if _, err := filter.ParseSyntax(c.Glob); err != nil {
		return err
	}
	switch strings.ToLower(c.Output) {
	case OutputText, OutputJSON:
	default:
		return fmt.Errorf("output must be %q or %q, got %q", OutputText, OutputJSON, c.Output)
	}
	if strings.TrimSpace(c.Procfs) == "" {
		return errors.New("procfs must not be empty")
	}
	return nil
}

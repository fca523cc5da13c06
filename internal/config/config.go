// Package config reads the launcher's optional settings. Every command line
// argument belongs to the managed runtime, so settings come from a YAML file
// beside the executable and from environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FileName is looked up in the executable's directory.
const FileName = "maxvm.yaml"

// Environment variables overriding the file.
const (
	EnvLogLevel    = "MAXVM_LOG_LEVEL"
	EnvLogFormat   = "MAXVM_LOG_FORMAT"
	EnvTraceLoader = "MAXVM_TRACE_LOADER"
	EnvTraceLinker = "MAXVM_TRACE_LINKER"
)

// Log formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

type Config struct {
	Log   LogConfig   `yaml:"log"`
	Trace TraceConfig `yaml:"trace"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// TraceConfig enables debug logging of the boot sequence and of every
// dynamic linking request made by the runtime.
type TraceConfig struct {
	Loader bool `yaml:"loader,omitempty"`
	Linker bool `yaml:"linker,omitempty"`
}

func (c *Config) normalize() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = FormatAuto
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
	if c.Trace.Loader || c.Trace.Linker {
		c.Log.Level = "debug"
	}
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	var c Config
	c.normalize()
	return c
}

// Level returns the slog level for c.Log.Level.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (c Config) validate() error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	switch c.Log.Format {
	case FormatAuto, FormatText, FormatJSON:
	default:
		return fmt.Errorf("log format %q: want %s, %s or %s", c.Log.Format, FormatAuto, FormatText, FormatJSON)
	}
	return nil
}

// Load reads dir/FileName if it exists, applies environment overrides from
// getenv and validates the result. An empty dir skips the file.
func Load(dir string, getenv func(string) (string, bool)) (Config, error) {
	var c Config
	if dir != "" {
		path := dir + FileName
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		default:
			if err := decode(data, &c); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}
	if getenv == nil {
		getenv = os.LookupEnv
	}
	if err := c.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	c.normalize()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func decode(data []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) (string, bool)) error {
	if v, ok := getenv(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := getenv(EnvLogFormat); ok && v != "" {
		c.Log.Format = v
	}
	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{EnvTraceLoader, &c.Trace.Loader},
		{EnvTraceLinker, &c.Trace.Linker},
	} {
		v, ok := getenv(b.name)
		if !ok || v == "" {
			continue
		}
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", b.name, v, err)
		}
		*b.dst = on
	}
	return nil
}

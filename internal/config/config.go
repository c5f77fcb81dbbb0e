// Package config reads and writes the contract-gen CLI config file.
//
// The file lives at $CONTRACT_GEN_CONFIG or ~/.contract-gen.yaml. A missing
// file is not an error: Load returns the built-in defaults. Environment
// variables override file values:
//
//	CONTRACT_GEN_OUTPUT_FORMAT   defaults.output.format
//	CONTRACT_GEN_OUTPUT_PRETTY   defaults.output.pretty
//	CONTRACT_GEN_SAMPLE_SIZE     defaults.csv.sample_size and defaults.json.sample_size
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"contractgen/internal/schema"
)

// EnvPath overrides the config file location.
const EnvPath = "CONTRACT_GEN_CONFIG"

// DefaultFileName is the file name used under the home directory.
const DefaultFileName = ".contract-gen.yaml"

// DefaultVersion is written by Init.
const DefaultVersion = "1.0"

// Output formats accepted in defaults.output.format.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

type Config struct {
	Version     string            `yaml:"version"`
	Connections map[string]string `yaml:"connections"`
	Defaults    Defaults          `yaml:"defaults"`
}

type Defaults struct {
	CSV    CSVDefaults    `yaml:"csv"`
	JSON   JSONDefaults   `yaml:"json"`
	Output OutputDefaults `yaml:"output"`
}

type CSVDefaults struct {
	Delimiter  string `yaml:"delimiter"`
	Encoding   string `yaml:"encoding"`
	SampleSize int    `yaml:"sample_size" env:"CONTRACT_GEN_SAMPLE_SIZE" env-description:"rows sampled per analysis"`
}

type JSONDefaults struct {
	SampleSize int `yaml:"sample_size" env:"CONTRACT_GEN_SAMPLE_SIZE" env-description:"rows sampled per analysis"`
}

type OutputDefaults struct {
	Format string `yaml:"format" env:"CONTRACT_GEN_OUTPUT_FORMAT" env-description:"json or yaml"`
	Pretty bool   `yaml:"pretty" env:"CONTRACT_GEN_OUTPUT_PRETTY" env-description:"indent JSON output"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version:     DefaultVersion,
		Connections: map[string]string{},
		Defaults: Defaults{
			CSV:    CSVDefaults{Delimiter: ",", Encoding: "utf-8", SampleSize: 1000},
			JSON:   JSONDefaults{SampleSize: 1000},
			Output: OutputDefaults{Format: FormatJSON, Pretty: false},
		},
	}
}

// Path returns the config file location.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(home, DefaultFileName)
}

// Exists reports whether the config file is present.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// Load reads the config file over the built-in defaults and applies
// environment overrides. Keys missing from the file keep their defaults.
func Load() (*Config, error) {
	path := Path()
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("Failed to load config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			var te *yaml.TypeError
			if errors.As(err, &te) {
				return nil, fmt.Errorf("Failed to load config file %s: %w", path, err)
			}
			return nil, fmt.Errorf("Invalid YAML in config file %s: %w", path, err)
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("Failed to load config file %s: %w", path, err)
	}
	if cfg.Connections == nil {
		cfg.Connections = map[string]string{}
	}
	return cfg, nil
}

// Save writes cfg to Path, creating parent directories.
func Save(cfg *Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("Failed to save config file %s: %w", path, err)
	}
	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("Failed to save config file %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("Failed to save config file %s: %w", path, err)
	}
	return nil
}

// Marshal renders cfg as YAML with two-space indentation.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExistsError is returned by Init when the file is already there.
type ExistsError struct {
	Path string
}

func (e *ExistsError) Error() string { return "Config file already exists: " + e.Path }

// Is matches fs.ErrExist.
func (e *ExistsError) Is(target error) bool { return target == fs.ErrExist }

// Init writes the default configuration and returns its path. An existing
// file is only replaced when force is set.
func Init(force bool) (string, error) {
	path := Path()
	if _, err := os.Stat(path); err == nil && !force {
		return path, &ExistsError{Path: path}
	}
	if err := Save(Default()); err != nil {
		return path, err
	}
	return path, nil
}

// Validate returns the problems found in cfg. An empty result means the
// configuration is usable.
func Validate(cfg *Config) []string {
	var errs []string
	if cfg.Version == "" {
		errs = append(errs, "Missing 'version' field")
	}
	if f := cfg.Defaults.Output.Format; f != FormatJSON && f != FormatYAML {
		errs = append(errs, "'defaults.output.format' must be 'json' or 'yaml'")
	}
	return errs
}

// Connection returns the named connection string.
func (c *Config) Connection(name string) (string, error) {
	v, ok := c.Connections[name]
	if !ok {
		return "", schema.NotFoundf("Connection '%s' not found in config", name)
	}
	return v, nil
}

// ResolveConnection expands an "@name" reference; other values are
// returned unchanged.
func (c *Config) ResolveConnection(value string) (string, error) {
	name, ok := strings.CutPrefix(value, "@")
	if !ok {
		return value, nil
	}
	return c.Connection(name)
}

// EnvUsage describes the environment overrides.
func EnvUsage() string {
	var buf bytes.Buffer
	cleanenv.FUsage(&buf, &Config{}, nil)()
	return buf.String()
}

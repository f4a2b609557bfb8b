// Package config loads the two configuration shapes this repo needs
// (ServerConfig for the protocol server, CoordinatorConfig for the Jacobi
// stepper) the way the teacher loads its own: viper for layered
// file/env/default precedence, mapstructure decode hooks for
// time.Duration, and gopkg.in/yaml.v3 for writing a config back out.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LoggingConfig controls logger.New (internal/logger).
type LoggingConfig struct {
	Level      string   `mapstructure:"level" yaml:"level"`
	Format     string   `mapstructure:"format" yaml:"format"`
	Output     string   `mapstructure:"output" yaml:"output"`
	Categories []string `mapstructure:"categories" yaml:"categories,omitempty"`
}

// MetricsConfig configures the optional /metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port"`
}

// ServerConfig is the protocol server's configuration (spec.md §4.J).
type ServerConfig struct {
	// Addr is the TCP listen address, e.g. ":3000".
	Addr string `mapstructure:"addr" yaml:"addr"`

	// ArchiveURL is the co-simulation component archive to load.
	// The literal "dummy" puts the server into dummy-response mode
	// (spec.md §6 sentinel).
	ArchiveURL string `mapstructure:"archive_url" yaml:"archive_url"`

	// ScratchRoot is the parent directory under which the adapter creates
	// its per-instance scratch directory.
	ScratchRoot string `mapstructure:"scratch_root" yaml:"scratch_root"`

	// Dummy forces dummy-response mode regardless of ArchiveURL.
	Dummy bool `mapstructure:"dummy" yaml:"dummy"`

	// StrictUnimplemented selects the explicit-error vs. silent-drop
	// response policy for recognized but unimplemented operations
	// (spec.md §9 open question).
	StrictUnimplemented bool `mapstructure:"strict_unimplemented" yaml:"strict_unimplemented"`

	// Overrides are applied via the adapter's typed setters right after a
	// successful instantiate, after the catalogue's own XML start values
	// (spec.md §4.I: "applied last... to give the user precedence").
	Overrides []ParamOverride `mapstructure:"overrides" yaml:"overrides,omitempty"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// FmuSpec names one remote component the coordinator dials (spec.md §6
// "List of FMU paths").
type FmuSpec struct {
	Name string `mapstructure:"name" yaml:"name"`
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// ConnectionSpec is the YAML-facing shape of the coordinator's connection
// catalogue (spec.md §3 Connection).
type ConnectionSpec struct {
	SrcFmu     string `mapstructure:"src_fmu" yaml:"src_fmu"`
	SrcRef     uint32 `mapstructure:"src_ref" yaml:"src_ref"`
	DstFmu     string `mapstructure:"dst_fmu" yaml:"dst_fmu"`
	DstRef     uint32 `mapstructure:"dst_ref" yaml:"dst_ref"`
	Type       string `mapstructure:"type" yaml:"type"`
}

// ParamOverride applies a command-line/config value override after XML
// start values (spec.md §4.I).
type ParamOverride struct {
	Fmu   string  `mapstructure:"fmu" yaml:"fmu"`
	Ref   uint32  `mapstructure:"ref" yaml:"ref"`
	Type  string  `mapstructure:"type" yaml:"type"`
	Real  float64 `mapstructure:"real" yaml:"real,omitempty"`
	Int   int32   `mapstructure:"int" yaml:"int,omitempty"`
	Bool  bool    `mapstructure:"bool" yaml:"bool,omitempty"`
	Str   string  `mapstructure:"str" yaml:"str,omitempty"`
}

// CoordinatorConfig is the master-side Jacobi stepper's configuration
// (spec.md §4.H, §6 "Configuration inputs (coordinator)").
type CoordinatorConfig struct {
	Fmus        []FmuSpec        `mapstructure:"fmus" yaml:"fmus"`
	Connections []ConnectionSpec `mapstructure:"connections" yaml:"connections"`

	StartTime time.Duration `mapstructure:"start_time" yaml:"start_time"`
	StepSize  time.Duration `mapstructure:"step_size" yaml:"step_size"`
	EndTime   time.Duration `mapstructure:"end_time" yaml:"end_time"`

	// StepOrder is an optional ordering of FMU names affecting only
	// transfer-order reproducibility (spec.md §3 StepOrder).
	StepOrder []string `mapstructure:"step_order" yaml:"step_order,omitempty"`

	// Output selects the status-printing format: "table", "json", or "yaml".
	Output string `mapstructure:"output" yaml:"output"`

	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoadServer loads a ServerConfig from configPath (or the default search
// path if empty) on top of defaults. Env vars under the FMITCPD_ prefix
// override only keys the config file sets; when no config file is found,
// the defaults are returned and env vars are not read.
func LoadServer(configPath string) (*ServerConfig, error) {
	cfg := defaultServerConfig()
	if err := load(configPath, "FMITCPD", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadCoordinator loads a CoordinatorConfig from configPath on top of
// defaults. Env vars under the FMICOORD_ prefix override only keys the
// config file sets; when no config file is found, the defaults are returned
// and env vars are not read.
func LoadCoordinator(configPath string) (*CoordinatorConfig, error) {
	cfg := defaultCoordinatorConfig()
	if err := load(configPath, "FMICOORD", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadServer is LoadServer with a friendlier error when configPath is
// explicitly given but missing.
func MustLoadServer(configPath string) (*ServerConfig, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s", configPath)
		}
	}
	return LoadServer(configPath)
}

func load(configPath, envPrefix string, out any) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil // defaults already populate out
		}
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read: %w", err)
	}

	if err := v.Unmarshal(out, viper.DecodeHook(durationDecodeHook())); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}
	return nil
}

// durationDecodeHook lets YAML/env values use "30s"-style duration strings,
// same convention as the teacher's config loader.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

func defaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:                ":3000",
		ArchiveURL:          "dummy",
		ScratchRoot:         os.TempDir(),
		Dummy:               false,
		StrictUnimplemented: true,
		Logging:             LoggingConfig{Level: "INFO", Format: "text", Output: "stderr"},
		Metrics:             MetricsConfig{Enabled: false, Port: 9090},
	}
}

func defaultCoordinatorConfig() *CoordinatorConfig {
	return &CoordinatorConfig{
		StepSize: 100 * time.Millisecond,
		EndTime:  1 * time.Second,
		Output:   "table",
		Logging:  LoggingConfig{Level: "INFO", Format: "text", Output: "stderr"},
		Metrics:  MetricsConfig{Enabled: false, Port: 9091},
	}
}

// SaveServer writes cfg to path as YAML.
func SaveServer(cfg *ServerConfig, path string) error {
	return save(cfg, path)
}

// SaveCoordinator writes cfg to path as YAML.
func SaveCoordinator(cfg *CoordinatorConfig, path string) error {
	return save(cfg, path)
}

func save(cfg any, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: mkdir: %w", err)
		}
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

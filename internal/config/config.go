// Package config loads the catalogd service configuration from a TOML file. Values not present
// in the file keep their defaults, and string fields tagged for it may reference environment
// variables as ${NAME} or ${NAME:default}.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atlanticdynamic/catalogd/internal/interpolation"
	"github.com/atlanticdynamic/catalogd/internal/master"
	"github.com/pelletier/go-toml/v2"
)

// Defaults
const (
	DefaultManifest      = "/etc/catalogd/site.toml"
	DefaultCheckInterval = 15 * time.Second
	DefaultGRPCListen    = "tcp://127.0.0.1:8140"
	DefaultHTTPTimeout   = 10 * time.Second
)

// Config is the service configuration.
type Config struct {
	// Manifest is the root manifest file. A relative path is resolved against the directory
	// of the config file.
	Manifest      string   `toml:"manifest"       env_interpolation:"yes"`
	CheckInterval Duration `toml:"check_interval"`
	// WarmInterval refreshes the manifest in the background between requests. Zero disables it.
	WarmInterval Duration `toml:"warm_interval"`
	Mode         string   `toml:"mode"`
	// UseNodes overrides the mode's default for node-aware evaluation when set.
	UseNodes *bool         `toml:"use_nodes"`
	Classes  []string      `toml:"classes"        env_interpolation:"yes"`
	GRPC     GRPCConfig    `toml:"grpc"           env_interpolation:"yes"`
	HTTP     HTTPConfig    `toml:"http"           env_interpolation:"yes"`
	Logging  LoggingConfig `toml:"logging"        env_interpolation:"yes"`

	sourcePath string
}

// GRPCConfig configures the gRPC transport. An empty Listen disables it.
type GRPCConfig struct {
	// Listen is tcp://host:port, unix:///path, unix:/path or host:port.
	Listen string `toml:"listen" env_interpolation:"yes"`
}

// HTTPConfig configures the HTTP transport. An empty Listen disables it.
type HTTPConfig struct {
	Listen       string   `toml:"listen"        env_interpolation:"yes"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// NewDefault returns the configuration used when no file is given.
func NewDefault() *Config {
	return &Config{
		Manifest:      DefaultManifest,
		CheckInterval: FromDuration(DefaultCheckInterval),
		Mode:          master.ModeRemote.String(),
		Classes:       []string{},
		GRPC:          GRPCConfig{Listen: DefaultGRPCListen},
		HTTP: HTTPConfig{
			ReadTimeout:  FromDuration(DefaultHTTPTimeout),
			WriteTimeout: FromDuration(DefaultHTTPTimeout),
		},
		Logging: LoggingConfig{
			Format: LogFormatText,
			Level:  LogLevelInfo,
			Output: "stderr",
		},
	}
}

// NewConfig loads and validates configuration from a TOML file
func NewConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	cfg, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFailedToLoadConfig, filePath, err)
	}
	cfg.sourcePath = filePath
	if cfg.Manifest != "" && !filepath.IsAbs(cfg.Manifest) {
		cfg.Manifest = filepath.Join(filepath.Dir(filePath), cfg.Manifest)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToValidateConfig, err)
	}
	return cfg, nil
}

// NewConfigFromBytes loads and validates configuration from TOML bytes
func NewConfigFromBytes(data []byte) (*Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToValidateConfig, err)
	}
	return cfg, nil
}

func decode(data []byte) (*Config, error) {
	cfg := NewDefault()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("line %d column %d: %w", row, col, err)
		}
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return nil, fmt.Errorf("%w:\n%s", ErrInvalidValue, strictErr.String())
		}
		return nil, err
	}
	if err := interpolation.InterpolateStruct(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SourcePath returns the file the config was loaded from, empty for defaults or bytes.
func (c *Config) SourcePath() string {
	return c.sourcePath
}

// ServiceMode returns the parsed service mode.
func (c *Config) ServiceMode() (master.Mode, error) {
	return master.ParseMode(c.Mode)
}

// NodeAware resolves whether evaluation is node-aware for the configured mode.
func (c *Config) NodeAware() bool {
	mode, err := c.ServiceMode()
	if err != nil {
		mode = master.ModeRemote
	}
	return mode.UseNodes(c.UseNodes)
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Manifest == "" {
		errs = append(errs, fmt.Errorf("%w: manifest", ErrMissingRequiredField))
	}
	if c.CheckInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: check_interval must not be negative: %s",
			ErrInvalidValue, c.CheckInterval))
	}

	if c.WarmInterval < 0 {
		errs = append(errs, fmt.Errorf("%w: warm_interval must not be negative: %s",
			ErrInvalidValue, c.WarmInterval))
	}

	mode, err := c.ServiceMode()
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidValue, err))
	}
	if err == nil && mode == master.ModeRemote && c.GRPC.Listen == "" && c.HTTP.Listen == "" {
		errs = append(errs, fmt.Errorf("%w: remote mode needs grpc.listen or http.listen",
			ErrMissingRequiredField))
	}

	for i, class := range c.Classes {
		if class == "" {
			errs = append(errs, fmt.Errorf("%w: classes[%d] is empty", ErrInvalidValue, i))
		}
	}

	if c.HTTP.ReadTimeout < 0 || c.HTTP.WriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: http timeouts must not be negative", ErrInvalidValue))
	}

	return errors.Join(errs...)
}

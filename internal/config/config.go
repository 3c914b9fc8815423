// Package config handles configuration loading, validation and writing.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/moamenhredeen/oasc/internal/models"
)

// EnvPrefix prefixes environment variable overrides (OASC_TRANSPORT_KIND, ...)
const EnvPrefix = "OASC"

// Config is the top-level configuration
type Config struct {
	BaseURL      string                                  `mapstructure:"base_url" toml:"base_url"`
	Spec         string                                  `mapstructure:"spec" toml:"spec"`
	Environment  string                                  `mapstructure:"environment" toml:"environment"`
	Transport    TransportConfig                         `mapstructure:"transport" toml:"transport"`
	Host         HostConfig                              `mapstructure:"host" toml:"host"`
	Log          LogConfig                               `mapstructure:"log" toml:"log"`
	Store        StoreConfig                             `mapstructure:"store" toml:"store"`
	Headers      map[string]string                       `mapstructure:"headers" toml:"headers,omitempty"`
	Environments map[string]EnvironmentConfig            `mapstructure:"environments" toml:"environments,omitempty"`
	Auth         map[string]map[string]string            `mapstructure:"auth" toml:"auth,omitempty"`
	EnvAuth      map[string]map[string]map[string]string `mapstructure:"env_auth" toml:"env_auth,omitempty"`

	filePath string
}

// TransportConfig selects and tunes the request transport
type TransportConfig struct {
	Kind      string `mapstructure:"kind" toml:"kind"`
	TimeoutMs int64  `mapstructure:"timeout_ms" toml:"timeout_ms"`
}

// HostConfig holds settings of the host process and of clients reaching it
type HostConfig struct {
	URL          string          `mapstructure:"url" toml:"url"`
	ListenAddr   string          `mapstructure:"listen_addr" toml:"listen_addr"`
	BodyMaxBytes int64           `mapstructure:"body_max_bytes" toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit" toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting of the host process
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" toml:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" toml:"requests_per_second"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

// StoreConfig locates the sqlite database
type StoreConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

// EnvironmentConfig is a named set of template variables
type EnvironmentConfig struct {
	Variables map[string]string `mapstructure:"variables" toml:"variables"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// NewViper returns a viper instance reading config.toml from path, or from
// the working directory and the user config directory when path is empty.
// Environment variables prefixed with OASC override file values.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "oasc"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("base_url", "")
	v.SetDefault("spec", "")
	v.SetDefault("environment", "")
	v.SetDefault("transport.kind", defaults.Transport.Kind)
	v.SetDefault("transport.timeout_ms", defaults.Transport.TimeoutMs)
	v.SetDefault("host.url", defaults.Host.URL)
	v.SetDefault("host.listen_addr", defaults.Host.ListenAddr)
	v.SetDefault("host.body_max_bytes", defaults.Host.BodyMaxBytes)
	v.SetDefault("host.rate_limit.enabled", defaults.Host.RateLimit.Enabled)
	v.SetDefault("host.rate_limit.requests_per_second", defaults.Host.RateLimit.RequestsPerSecond)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("store.path", defaults.Store.Path)
	return v
}

// Load reads the configuration file (a missing file in the search paths is
// not an error), applies environment overrides, validates and fills defaults.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", v.ConfigFileUsed(), err)
	}
	cfg.filePath = v.ConfigFileUsed()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Transport.Kind)) {
	case "", "direct", "host":
	default:
		return fmt.Errorf("transport.kind must be one of: direct, host; got %q", c.Transport.Kind)
	}
	if c.Transport.TimeoutMs < 0 {
		return fmt.Errorf("transport.timeout_ms must be non-negative; got %d", c.Transport.TimeoutMs)
	}

	if c.BaseURL != "" && !strings.Contains(c.BaseURL, "{{") {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("base_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base_url must use http or https; got %q", c.BaseURL)
		}
	}
	if c.Host.URL != "" {
		if _, err := url.Parse(c.Host.URL); err != nil {
			return fmt.Errorf("host.url is not a valid URL: %w", err)
		}
	}

	if c.Host.BodyMaxBytes < 0 {
		return fmt.Errorf("host.body_max_bytes must be non-negative; got %d", c.Host.BodyMaxBytes)
	}
	if c.Host.RateLimit.Enabled && c.Host.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("host.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Host.RateLimit.RequestsPerSecond)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	if c.Environment != "" {
		if _, ok := c.lookupEnvironment(c.Environment); !ok {
			return fmt.Errorf("environment %q is not defined under [environments]", c.Environment)
		}
	}
	return nil
}

// setDefaults fills zero-valued fields. A zero timeout means "use the default".
func (c *Config) setDefaults() {
	if c.Transport.Kind == "" {
		c.Transport.Kind = "direct"
	}
	if c.Transport.TimeoutMs == 0 {
		c.Transport.TimeoutMs = 600000
	}
	if c.Host.ListenAddr == "" {
		c.Host.ListenAddr = "127.0.0.1:7420"
	}
	if c.Host.URL == "" {
		c.Host.URL = "http://" + c.Host.ListenAddr
	}
	if c.Host.BodyMaxBytes == 0 {
		c.Host.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Host.RateLimit.RequestsPerSecond == 0 {
		c.Host.RateLimit.RequestsPerSecond = 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Store.Path == "" {
		c.Store.Path = defaultStorePath()
	}
}

func defaultStorePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "oasc", "oasc.db")
	}
	return filepath.Join(".oasc", "oasc.db")
}

// FilePath returns the config file that was read, if any
func (c *Config) FilePath() string {
	return c.filePath
}

// Timeout returns the default request timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Transport.TimeoutMs) * time.Millisecond
}

// ActiveEnvironment returns override when set, else the configured environment
func (c *Config) ActiveEnvironment(override string) string {
	if override != "" {
		return override
	}
	return c.Environment
}

// Variables returns the template variables of an environment. Unknown or
// empty names yield an empty set.
func (c *Config) Variables(env string) map[string]string {
	out := map[string]string{}
	if env == "" {
		return out
	}
	if e, ok := c.lookupEnvironment(env); ok {
		for k, v := range e.Variables {
			out[k] = v
		}
	}
	return out
}

func (c *Config) lookupEnvironment(name string) (EnvironmentConfig, bool) {
	if e, ok := c.Environments[name]; ok {
		return e, true
	}
	for k, e := range c.Environments {
		if strings.EqualFold(k, name) {
			return e, true
		}
	}
	return EnvironmentConfig{}, false
}

// authFields maps lower-cased field names back to their canonical spelling
var authFields = map[string]string{
	"apikey":   "apiKey",
	"token":    "token",
	"username": "username",
	"password": "password",
}

// AuthState builds the credential state for the given scheme names. Keys
// are matched case-insensitively because configuration keys are not
// case-preserving.
func (c *Config) AuthState(schemeNames []string) models.AuthState {
	state := models.AuthState{
		Values:            rekeyAuth(c.Auth, schemeNames),
		EnvironmentValues: map[string]models.AuthValues{},
	}
	for env, values := range c.EnvAuth {
		state.EnvironmentValues[env] = rekeyAuth(values, schemeNames)
	}
	return state
}

// AuthValues returns the credentials of env overlaid on the global ones.
// The environment name is matched case-insensitively.
func (c *Config) AuthValues(schemeNames []string, env string) models.AuthValues {
	state := c.AuthState(schemeNames)
	for name := range state.EnvironmentValues {
		if strings.EqualFold(name, env) {
			return state.ValuesFor(name)
		}
	}
	return state.ValuesFor(env)
}

func rekeyAuth(in map[string]map[string]string, schemeNames []string) models.AuthValues {
	out := models.AuthValues{}
	for key, fields := range in {
		name := key
		for _, candidate := range schemeNames {
			if strings.EqualFold(candidate, key) {
				name = candidate
				break
			}
		}

		normalized := make(map[string]string, len(fields))
		for field, value := range fields {
			if canonical, ok := authFields[strings.ToLower(field)]; ok {
				field = canonical
			}
			normalized[field] = value
		}
		out[name] = normalized
	}
	return out
}

// Write stores cfg as TOML at path. An existing file is only replaced when overwrite is set.
func Write(path string, cfg *Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: %s already exists", path)
		}
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// WarnPermissions logs a warning if the config file, which may hold
// credentials, is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 && (len(c.Auth) > 0 || len(c.EnvAuth) > 0) {
		logger.Warn("config file holds credentials and is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks the environment variables read into the configuration.
	// A double underscore separates sections: NETREQ_RETRY__MAX_DELAY sets retry.max_delay.
	EnvPrefix = "NETREQ_"

	DefaultFile   = "netreq.yaml"
	DefaultDotEnv = ".env"
)

type loadOptions struct {
	file         string
	fileRequired bool
	dotenv       string
	environ      func() []string
}

// Option customises Load.
type Option func(*loadOptions)

// WithFile loads the YAML file at path. Unlike the default file, it must exist.
func WithFile(path string) Option {
	return func(o *loadOptions) {
		o.file = path
		o.fileRequired = true
	}
}

// WithDotEnv reads variables from a dotenv file. An empty path disables it.
func WithDotEnv(path string) Option {
	return func(o *loadOptions) {
		o.dotenv = path
	}
}

// WithEnviron replaces os.Environ as the source of environment variables.
func WithEnviron(environ func() []string) Option {
	return func(o *loadOptions) {
		o.environ = environ
	}
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. Dotenv file entries
// 3. YAML configuration file
// 4. Default values (lowest priority)
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{
		file:    DefaultFile,
		dotenv:  DefaultDotEnv,
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadFile(k, o.file, o.fileRequired); err != nil {
		return nil, err
	}

	environ, err := withDotEnv(o.dotenv, o.environ)
	if err != nil {
		return nil, err
	}

	if err := k.Load(envprovider.Provider(".", envprovider.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: transformEnv,
		EnvironFunc:   environ,
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "netreq",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"retry.min_delay":            1,
		"retry.max_delay":            24,
		"retry.unit":                 "1s",
		"retry.max_attempts_per_nic": 3,

		"redirect.max_hops": 1,

		"session.timeout":         "30s",
		"session.max_body_bytes":  16 << 20,
		"session.strict_url_path": true,
		"session.user_agent":      "go-netreq/1.0",

		"dhcp.poll_interval": "1s",

		"nic.include_loopback": false,

		"server.address":         ":8080",
		"server.secure_base_url": "",

		"observability.enabled":      false,
		"observability.service_name": "go-netreq",
		"observability.exporter":     ExporterStdout,
		"observability.endpoint":     "",
		"observability.insecure":     true,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// withDotEnv prepends the dotenv entries to environ so real variables win.
func withDotEnv(path string, environ func() []string) (func() []string, error) {
	if path == "" {
		return environ, nil
	}
	vals, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return environ, nil
		}
		return nil, fmt.Errorf("failed to read dotenv file %s: %w", path, err)
	}
	return func() []string {
		out := make([]string, 0, len(vals))
		for key, val := range vals {
			out = append(out, key+"="+val)
		}
		return append(out, environ()...)
	}, nil
}

func transformEnv(key, value string) (string, any) {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", "."), value
}

// Exists reports whether key was set by any source.
func (c *Config) Exists(key string) bool {
	return c != nil && c.k != nil && c.k.Exists(key)
}

// GetString retrieves a string value from the configuration or the provided default.
func (c *Config) GetString(key string, defaultVal ...string) string {
	if !c.Exists(key) {
		if len(defaultVal) > 0 {
			return defaultVal[0]
		}
		return ""
	}
	return c.k.String(key)
}

// Unmarshal decodes the subtree at key into out.
func (c *Config) Unmarshal(key string, out any) error {
	if c == nil || c.k == nil {
		return fmt.Errorf("configuration not loaded")
	}
	return c.k.Unmarshal(key, out)
}

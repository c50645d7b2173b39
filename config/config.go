package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/zalando/go-keyring"

	"github.com/skosovsky/aibridge"
	"github.com/skosovsky/aibridge/adapter"
	"github.com/skosovsky/aibridge/catalog"
	"github.com/skosovsky/aibridge/fileregistry"
	"github.com/skosovsky/aibridge/remoteregistry"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "AIBRIDGE_"

// envDelim separates nesting levels in environment variable names.
const envDelim = "__"

var (
	// ErrInvalidConfig is returned when the merged configuration fails validation.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrUnknownVendor is returned by Vendor for a name with no [vendors.<name>] section.
	ErrUnknownVendor = errors.New("config: unknown vendor")
	// ErrKeyring is returned when an API key cannot be read from the OS keyring.
	ErrKeyring = errors.New("config: keyring lookup failed")
	// ErrNoCatalog is returned by Registry when neither catalog.dir nor catalog.remote_url is set.
	ErrNoCatalog = errors.New("config: no catalog source configured")
)

// Config is the merged file and environment configuration.
type Config struct {
	Log     LogConfig              `koanf:"log"`
	Catalog CatalogConfig          `koanf:"catalog"`
	Vendors map[string]VendorEntry `koanf:"vendors" validate:"dive"`
}

// LogConfig selects the level and output format of the logger built by Logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// CatalogConfig locates model catalogs. When both are set, RemoteURL is asked first and Dir
// serves the vendors it cannot. Environment selects {vendor}.{env}.yaml files in Dir.
type CatalogConfig struct {
	Dir         string        `koanf:"dir"`
	Environment string        `koanf:"environment"`
	RemoteURL   string        `koanf:"remote_url" validate:"omitempty,url"`
	RemoteToken string        `koanf:"remote_token"`
	TTL         time.Duration `koanf:"ttl" validate:"gte=0"`
}

// VendorEntry is one [vendors.<name>] section.
type VendorEntry struct {
	APIKey         string `koanf:"api_key"`
	APIKeyKeyring  string `koanf:"api_key_keyring"`
	OrganizationID string `koanf:"organization_id"`
	BaseURL        string `koanf:"base_url" validate:"omitempty,url"`
}

var defaults = map[string]any{
	"log.level":   "info",
	"log.format":  "text",
	"catalog.ttl": "5m",
}

type options struct {
	path    string
	environ func() []string
}

// Option configures Load.
type Option func(*options)

// WithFile loads the TOML file at path before the environment.
func WithFile(path string) Option {
	return func(o *options) { o.path = path }
}

// WithEnviron replaces os.Environ as the source of environment variables.
func WithEnviron(environ func() []string) Option {
	return func(o *options) { o.environ = environ }
}

// Load merges defaults, the optional TOML file and AIBRIDGE_* environment variables, then validates the result.
func Load(opts ...Option) (*Config, error) {
	o := &options{environ: os.Environ}
	for _, opt := range opts {
		opt(o)
	}
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("config: defaults: %w", err)
	}
	if o.path != "" {
		if err := k.Load(file.Provider(o.path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", o.path, err)
		}
	}
	envProvider := env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		EnvironFunc:   o.environ,
		TransformFunc: envKey,
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// envKey maps AIBRIDGE_VENDORS__OPENAI__API_KEY to vendors.openai.api_key.
func envKey(k, v string) (string, any) {
	k = strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	return strings.ReplaceAll(k, envDelim, "."), v
}

// Vendor returns the credentials of the named vendor. An empty api_key is filled from the
// keyring service named by api_key_keyring, with the vendor name as user.
func (c *Config) Vendor(name string) (aibridge.VendorConfig, error) {
	e, ok := c.Vendors[name]
	if !ok {
		return aibridge.VendorConfig{}, fmt.Errorf("%w: %q", ErrUnknownVendor, name)
	}
	key := e.APIKey
	if key == "" && e.APIKeyKeyring != "" {
		secret, err := keyring.Get(e.APIKeyKeyring, name)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return aibridge.VendorConfig{}, fmt.Errorf("%w: %s in keyring %q", adapter.ErrMissingAPIKey, name, e.APIKeyKeyring)
			}
			return aibridge.VendorConfig{}, fmt.Errorf("%w: %s: %w", ErrKeyring, name, err)
		}
		key = secret
	}
	return aibridge.VendorConfig{
		APIKey:         key,
		OrganizationID: e.OrganizationID,
		BaseURL:        e.BaseURL,
	}, nil
}

// Registry builds the catalog registry. A remote source keeps serving expired catalogs while
// it is unreachable and falls back to Dir when that is set too. Without any source it returns
// ErrNoCatalog, so callers can substitute catalogs of their own.
func (c *Config) Registry() (catalog.Registry, error) {
	var local catalog.Registry
	if c.Catalog.Dir != "" {
		local = fileregistry.New(c.Catalog.Dir, fileregistry.WithEnvironment(c.Catalog.Environment))
	}
	if c.Catalog.RemoteURL == "" {
		if local == nil {
			return nil, ErrNoCatalog
		}
		return local, nil
	}
	var fopts []remoteregistry.HTTPOption
	if c.Catalog.RemoteToken != "" {
		fopts = append(fopts, remoteregistry.WithAuthToken(c.Catalog.RemoteToken))
	}
	f, err := remoteregistry.NewHTTPFetcher(c.Catalog.RemoteURL, fopts...)
	if err != nil {
		return nil, err
	}
	ropts := []remoteregistry.Option{remoteregistry.WithTTL(c.Catalog.TTL), remoteregistry.WithStaleOnError()}
	if local != nil {
		ropts = append(ropts, remoteregistry.WithFallback(local))
	}
	return remoteregistry.New(f, ropts...), nil
}

// Logger returns a logger writing to w at the configured level and format.
// Records pass through adapter.RedactingHandler so API keys never reach the output.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.Log.Level))
	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if c.Log.Format == "json" {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}
	return slog.New(adapter.NewRedactingHandler(h))
}

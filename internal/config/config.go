package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/store"
)

//go:embed schema.cue
var schemaCUE string

// StoreFileName is the fixed name of the store file.
const StoreFileName = "cascade.sqlite"

// Config is the full cascade configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" toml:"store" json:"store"`
	Session SessionConfig `yaml:"session" toml:"session" json:"session"`
	Logging LoggingConfig `yaml:"logging" toml:"logging" json:"logging"`
}

// StoreConfig locates the store and sets its attach options.
type StoreConfig struct {
	Path         string `yaml:"path" toml:"path" json:"path"`
	Driver       string `yaml:"driver" toml:"driver" json:"driver"`
	AutoMigrate  bool   `yaml:"auto_migrate" toml:"auto_migrate" json:"auto_migrate"`
	InferMapping bool   `yaml:"infer_mapping" toml:"infer_mapping" json:"infer_mapping"`
	BusyTimeout  string `yaml:"busy_timeout" toml:"busy_timeout" json:"busy_timeout"`
}

// SessionConfig locates the cookie jar. Empty means "session.json" next to
// the store file.
type SessionConfig struct {
	Path string `yaml:"path" toml:"path" json:"path"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" json:"level"`
	Format string `yaml:"format" toml:"format" json:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path:         DefaultStorePath(),
			Driver:       store.DriverCGO,
			AutoMigrate:  true,
			InferMapping: true,
			BusyTimeout:  "5s",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// DefaultStorePath is $XDG_DATA_HOME/cascade/cascade.sqlite, falling back
// to ~/.local/share.
func DefaultStorePath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "cascade", StoreFileName)
}

// Load reads a YAML (.yaml, .yml) or TOML (.toml) file over the defaults,
// expanding ${VAR} references first, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	expanded := expandEnvVars(string(data))

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		md, err := toml.Decode(expanded, cfg)
		if err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing config: unknown key %q", undecoded[0].String())
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .toml)", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks the configuration against the embedded CUE schema.
func (c *Config) Validate() error {
	cctx := cuecontext.New()
	schema := cctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(cctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return errors.New(strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// StoreOptions converts the store section into attach options.
func (c *Config) StoreOptions() (store.Options, error) {
	d, err := time.ParseDuration(c.Store.BusyTimeout)
	if err != nil {
		return store.Options{}, fmt.Errorf("store.busy_timeout: %w", err)
	}
	return store.Options{
		Driver:       c.Store.Driver,
		AutoMigrate:  c.Store.AutoMigrate,
		InferMapping: c.Store.InferMapping,
		BusyTimeout:  d,
	}, nil
}

// SessionPath returns the cookie jar location.
func (c *Config) SessionPath() string {
	if c.Session.Path != "" {
		return c.Session.Path
	}
	return filepath.Join(filepath.Dir(c.Store.Path), "session.json")
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	switch c.Logging.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger builds a logger writing to w in the configured format.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

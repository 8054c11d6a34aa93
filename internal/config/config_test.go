package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cascade/internal/store"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join("/data", "cascade", StoreFileName), cfg.Store.Path)
	assert.Equal(t, filepath.Join("/data", "cascade", "session.json"), cfg.SessionPath())
}

func TestDefaultStorePath_FallsBackToHome(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/tester")

	assert.Equal(t, "/home/tester/.local/share/cascade/cascade.sqlite", DefaultStorePath())
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv("CASCADE_DIR", "/srv/cascade")
	path := writeConfig(t, "cascade.yaml", `
store:
  path: ${CASCADE_DIR}/db.sqlite
  driver: sqlite
  busy_timeout: 250ms
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/cascade/db.sqlite", cfg.Store.Path)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.True(t, cfg.Store.AutoMigrate, "unset fields keep defaults")
	assert.Equal(t, slog.LevelDebug, cfg.Level())

	opts, err := cfg.StoreOptions()
	require.NoError(t, err)
	assert.Equal(t, store.Options{
		Driver:       store.DriverPureGo,
		AutoMigrate:  true,
		InferMapping: true,
		BusyTimeout:  250 * time.Millisecond,
	}, opts)
}

func TestLoad_TOML(t *testing.T) {
	path := writeConfig(t, "cascade.toml", `
[store]
path = "/tmp/x.sqlite"
auto_migrate = false

[session]
path = "/tmp/cookies.json"

[logging]
level = "warn"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.sqlite", cfg.Store.Path)
	assert.False(t, cfg.Store.AutoMigrate)
	assert.Equal(t, "/tmp/cookies.json", cfg.SessionPath())
	assert.Equal(t, slog.LevelWarn, cfg.Level())
}

func TestLoad_EmptyYAMLUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "empty.yml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default().Store, cfg.Store)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "bad.yaml", "store:\n  colour: blue\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "bad.toml", "[store]\ncolour = \"blue\"\n"))
	assert.ErrorContains(t, err, "store.colour")
}

func TestLoad_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad driver", "store:\n  driver: postgres\n"},
		{"bad timeout", "store:\n  busy_timeout: soon\n"},
		{"empty path", "store:\n  path: \"\"\n"},
		{"bad level", "logging:\n  level: loud\n"},
		{"bad format", "logging:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "cfg.yaml", tt.content))
			assert.ErrorContains(t, err, "validating config")
		})
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load(writeConfig(t, "cfg.json", "{}"))
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLogger_Format(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "json"

	var buf bytes.Buffer
	cfg.Logger(&buf).Info("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	cfg.Logging.Format = "text"
	cfg.Logger(&buf).Debug("hidden")
	assert.Empty(t, buf.String(), "info level drops debug")
}

package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/config"
	"github.com/roach88/cascade/internal/persist"
	"github.com/roach88/cascade/internal/session"
)

// env bundles the configuration, the output formatter and an open
// persistence holder for one command.
type env struct {
	ctx    context.Context
	cfg    *config.Config
	out    *OutputFormatter
	holder *persist.Holder
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// loadConfig reads --config (or defaults), applies --db and --verbose and
// installs the configured logger as the slog default.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(opts.ConfigPath); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load config", err)
		}
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	if opts.Verbose {
		cfg.Logging.Level = "debug"
	}
	slog.SetDefault(cfg.Logger(cmd.ErrOrStderr()))
	return cfg, nil
}

// openEnv loads configuration, the session jar and the persistence holder.
// Callers must call release.
func openEnv(opts *RootOptions, cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(opts, cmd)
	if err != nil {
		return nil, err
	}

	storeOpts, err := cfg.StoreOptions()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid store options", err)
	}

	jar, err := session.Open(cfg.SessionPath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open session jar", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	popts := []persist.Option{
		persist.WithStoreOptions(storeOpts),
		persist.WithSession(jar),
		persist.WithLogger(slog.Default()),
	}
	if opts.IDs != nil {
		popts = append(popts, persist.WithIDGenerator(opts.IDs))
	}

	slog.Debug("opening store", "path", cfg.Store.Path)
	h, err := persist.Open(ctx, cfg.Store.Path, popts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	return &env{ctx: ctx, cfg: cfg, out: newFormatter(opts, cmd), holder: h}, nil
}

// release drains queued work and detaches the store.
func (e *env) release() {
	e.holder.Release()
}

func (e *env) manager() *persist.Manager {
	return e.holder.Current()
}

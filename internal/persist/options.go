package persist

import (
	"log/slog"
	"os"

	"github.com/roach88/cascade/internal/domain"
	"github.com/roach88/cascade/internal/record"
	"github.com/roach88/cascade/internal/store"
)

// CommitHook is called on a level's domain before that level commits a
// non-empty change set. Returning an error fails the level, which stops
// the cascade.
type CommitHook func(role Role, changes ChangeSet) error

// SessionClearer is ambient session state wiped on teardown.
type SessionClearer interface {
	Clear() error
}

// Option configures a Holder.
type Option func(*settings)

type settings struct {
	path      string
	storeOpts store.Options
	ui        *domain.Domain
	ids       record.IDGenerator
	hook      CommitHook
	session   SessionClearer
	fatal     func(error)
	logger    *slog.Logger
	destroy   func(path string, opts store.Options) error
}

func defaultSettings(path string) *settings {
	return &settings{
		path:      path,
		storeOpts: store.Options{AutoMigrate: true, InferMapping: true},
		ids:       record.UUIDv7Generator{},
		destroy:   store.Destroy,
	}
}

// WithStoreOptions sets the attach options. The default permits both
// automatic migration and mapping inference.
func WithStoreOptions(opts store.Options) Option {
	return func(s *settings) { s.storeOpts = opts }
}

// WithUIDomain binds Main to an externally driven UI domain. The holder
// neither starts nor closes it. Without this option the holder creates and
// runs its own.
func WithUIDomain(d *domain.Domain) Option {
	return func(s *settings) { s.ui = d }
}

// WithIDGenerator sets the generator used for new object ids.
func WithIDGenerator(g record.IDGenerator) Option {
	return func(s *settings) { s.ids = g }
}

// WithCommitHook installs a hook run before each level commits.
func WithCommitHook(h CommitHook) Option {
	return func(s *settings) { s.hook = h }
}

// WithSession registers session state to clear on teardown.
func WithSession(c SessionClearer) Option {
	return func(s *settings) { s.session = c }
}

// WithFatalHandler replaces the handler invoked when a replacement manager
// cannot be constructed. The default logs and exits the process.
func WithFatalHandler(f func(error)) Option {
	return func(s *settings) { s.fatal = f }
}

// WithLogger sets the base logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

func (s *settings) finish() {
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.ids == nil {
		s.ids = record.UUIDv7Generator{}
	}
	if s.destroy == nil {
		s.destroy = store.Destroy
	}
	if s.fatal == nil {
		logger := s.logger
		s.fatal = func(err error) {
			logger.Error("persistence manager cannot be constructed", "error", err)
			os.Exit(1)
		}
	}
}

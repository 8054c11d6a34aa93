package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/cascade/internal/store"
)

// Coordinator owns the single store handle of a manager. Reads and writes
// go through Root's domain; detach may come from any goroutine, so the
// handle is guarded by mu.
type Coordinator struct {
	path    string
	opts    store.Options
	destroy func(path string, opts store.Options) error
	logger  *slog.Logger

	mu sync.Mutex
	st *store.Store
}

func newCoordinator(s *settings, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		path:    s.path,
		opts:    s.storeOpts,
		destroy: s.destroy,
		logger:  logger,
	}
}

// Path returns the store file location.
func (c *Coordinator) Path() string { return c.path }

// attach opens the store. At most one handle is attached at a time.
func (c *Coordinator) attach(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachLocked(ctx)
}

func (c *Coordinator) attachLocked(ctx context.Context) error {
	if c.st != nil {
		return ErrAlreadyAttached
	}
	st, err := store.Open(ctx, c.path, c.opts)
	if err != nil {
		return fmt.Errorf("attach: %w", err)
	}
	c.st = st
	c.logger.Debug("store attached", "path", c.path)
	return nil
}

// detach closes the handle and releases the store lock. Calling it again
// is a no-op.
func (c *Coordinator) detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detachLocked()
}

func (c *Coordinator) detachLocked() error {
	if c.st == nil {
		return nil
	}
	err := c.st.Close()
	c.st = nil
	c.logger.Debug("store detached", "path", c.path)
	return err
}

// recreate destroys the store file and attaches a fresh, empty one at the
// same location with the same options. On failure the coordinator is left
// detached.
func (c *Coordinator) recreate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.detachLocked(); err != nil {
		c.logger.Debug("detach before destroy failed", "error", err)
	}
	if err := c.destroy(c.path, c.opts); err != nil {
		return fmt.Errorf("destroy: %w", err)
	}
	return c.attachLocked(ctx)
}

// use runs fn with the attached handle. The handle stays attached until fn
// returns.
func (c *Coordinator) use(fn func(st *store.Store) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.st == nil {
		return ErrNotAttached
	}
	return fn(c.st)
}

func (c *Coordinator) apply(ctx context.Context, set ChangeSet) error {
	return c.use(func(st *store.Store) error {
		return st.Apply(ctx, set.mutations())
	})
}

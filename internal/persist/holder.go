package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/cascade/internal/domain"
	"github.com/roach88/cascade/internal/store"
)

// Holder is the replaceable handle to the active Manager. Pass it to the
// code that needs persistence; call Current for the manager to use.
type Holder struct {
	settings *settings
	ui       *domain.Domain
	ownsUI   bool
	logger   *slog.Logger

	current atomic.Pointer[Manager]
	gen     atomic.Uint64

	mu       sync.Mutex
	closed   bool
	retiring sync.WaitGroup
}

// Open builds the first manager for the store at path. An attach failure
// is returned: without its store the process cannot run.
func Open(ctx context.Context, path string, opts ...Option) (*Holder, error) {
	if path == "" {
		return nil, errors.New("persist: store path is empty")
	}
	s := defaultSettings(path)
	for _, opt := range opts {
		opt(s)
	}
	s.finish()

	h := &Holder{
		settings: s,
		ui:       s.ui,
		logger:   s.logger.With("component", "persist"),
	}
	if h.ui == nil {
		h.ui = domain.New("main", domain.UI)
		if err := h.ui.Start(); err != nil {
			return nil, err
		}
		h.ownsUI = true
	}

	m, err := newManager(ctx, h, h.gen.Add(1))
	if err != nil {
		if h.ownsUI {
			h.ui.Close()
		}
		return nil, fmt.Errorf("open persistence manager: %w", err)
	}
	h.current.Store(m)
	h.logger.Info("persistence manager ready", "path", path, "manager", m.ID())
	return h, nil
}

// Current returns the active manager.
func (h *Holder) Current() *Manager {
	return h.current.Load()
}

// Generation returns the generation of the active manager. It increases by
// one on every reinitialization.
func (h *Holder) Generation() uint64 {
	return h.Current().Generation()
}

// UI returns the domain Main contexts are bound to.
func (h *Holder) UI() *domain.Domain {
	return h.ui
}

// Reinitialize replaces the active manager with a freshly constructed one
// and returns it. If construction fails the fatal handler is invoked.
func (h *Holder) Reinitialize() *Manager {
	return h.replace(nil)
}

// replace swaps old (or whatever is current when old is nil) for a new
// manager. The old manager is marked stale and its store detached before
// the successor attaches, so replace never waits on a domain and may be
// called from any task. Work still queued on the old manager drains in the
// background against the detached coordinator and fails at Root.
func (h *Holder) replace(old *Manager) *Manager {
	h.mu.Lock()
	defer h.mu.Unlock()

	cur := h.current.Load()
	if h.closed || (old != nil && cur != old) {
		return cur
	}

	cur.markStale()
	if err := cur.coord.detach(); err != nil {
		h.logger.Debug("detach of replaced manager failed", "manager", cur.ID(), "error", err)
	}
	h.retiring.Add(1)
	go func() {
		defer h.retiring.Done()
		cur.retire()
	}()

	next, err := newManager(context.Background(), h, h.gen.Add(1))
	if err != nil {
		h.settings.fatal(fmt.Errorf("reinitialize: %w", err))
		return cur
	}
	h.current.Store(next)
	h.logger.Info("persistence manager reinitialized",
		"previous", cur.ID(), "manager", next.ID(), "generation", next.Generation())
	return next
}

// Close tears the system down: resets Leaf, Main and Root, clears session
// state, detaches and deletes the store files, and stops owned domains.
// Failures are logged at debug level and otherwise ignored.
func (h *Holder) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	m := h.current.Load()
	h.mu.Unlock()

	ctx := context.Background()
	m.markStale()
	root, main, leaf := m.hierarchy()
	for _, c := range []*Context{leaf, main, root} {
		if err := c.Reset(ctx); err != nil {
			h.logger.Debug("teardown reset failed", "role", c.role, "error", err)
		}
	}

	if h.settings.session != nil {
		if err := h.settings.session.Clear(); err != nil {
			h.logger.Debug("teardown session clear failed", "error", err)
		}
	}

	if err := root.dom.Do(ctx, func(context.Context) error { return m.coord.detach() }); err != nil {
		h.logger.Debug("teardown detach failed", "error", err)
	}
	leaf.dom.Close()
	root.dom.Close()
	<-leaf.dom.Done()
	<-root.dom.Done()

	h.retiring.Wait()

	if err := store.RemoveFiles(h.settings.path); err != nil {
		h.logger.Debug("teardown file removal failed", "error", err)
	}

	if h.ownsUI {
		h.ui.Close()
		<-h.ui.Done()
	}
	h.logger.Debug("persistence torn down", "path", h.settings.path)
}

// Release drains the active manager and detaches its store without
// deleting anything, then stops owned domains. Use it for a normal
// shutdown; Close is for disposal.
func (h *Holder) Release() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	m := h.current.Load()
	h.mu.Unlock()

	m.markStale()
	m.retire()
	h.retiring.Wait()

	if h.ownsUI {
		h.ui.Close()
		<-h.ui.Done()
	}
	h.logger.Debug("persistence released", "path", h.settings.path)
}

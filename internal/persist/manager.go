package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/roach88/cascade/internal/domain"
)

// Manager owns one coordinator and the Root, Main and Leaf contexts.
// Managers are built and replaced by a Holder.
type Manager struct {
	id       string
	gen      uint64
	holder   *Holder
	settings *settings
	coord    *Coordinator
	rootDom  *domain.Domain
	uiDom    *domain.Domain
	logger   *slog.Logger

	once             sync.Once
	root, main, leaf *Context

	stale atomic.Bool
}

// newManager attaches the store on a fresh Root domain. A failed attach
// returns the error with nothing left running.
func newManager(ctx context.Context, h *Holder, gen uint64) (*Manager, error) {
	id := uuid.Must(uuid.NewV7()).String()
	logger := h.settings.logger.With("component", "persist", "manager", id, "generation", gen)

	m := &Manager{
		id:       id,
		gen:      gen,
		holder:   h,
		settings: h.settings,
		rootDom:  domain.NewStarted(fmt.Sprintf("root-%d", gen)),
		uiDom:    h.ui,
		logger:   logger,
	}
	m.coord = newCoordinator(h.settings, logger)

	err := m.rootDom.Do(ctx, func(ctx context.Context) error {
		return m.coord.attach(ctx)
	})
	if err != nil {
		m.rootDom.Close()
		return nil, err
	}
	return m, nil
}

// hierarchy builds the three contexts on first use.
func (m *Manager) hierarchy() (root, main, leaf *Context) {
	m.once.Do(func() {
		m.root = newContext(m, RoleRoot, m.rootDom, nil)
		m.main = newContext(m, RoleMain, m.uiDom, m.root)
		m.leaf = newContext(m, RoleLeaf, domain.NewStarted(fmt.Sprintf("leaf-%d", m.gen)), m.main)
	})
	return m.root, m.main, m.leaf
}

// Root returns the context that writes to the store.
func (m *Manager) Root() *Context {
	root, _, _ := m.hierarchy()
	return root
}

// Main returns the context bound to the UI domain.
func (m *Manager) Main() *Context {
	_, main, _ := m.hierarchy()
	return main
}

// Leaf returns the background working context.
func (m *Manager) Leaf() *Context {
	_, _, leaf := m.hierarchy()
	return leaf
}

// Context returns the context for role.
func (m *Manager) Context(role Role) (*Context, error) {
	switch role {
	case RoleRoot:
		return m.Root(), nil
	case RoleMain:
		return m.Main(), nil
	case RoleLeaf:
		return m.Leaf(), nil
	default:
		return nil, fmt.Errorf("unknown role %s", role)
	}
}

// ID returns the manager's unique id.
func (m *Manager) ID() string { return m.id }

// Generation returns the holder generation this manager was built for.
func (m *Manager) Generation() uint64 { return m.gen }

// Stale reports whether the manager has been replaced or torn down.
func (m *Manager) Stale() bool { return m.stale.Load() }

// Path returns the store file location.
func (m *Manager) Path() string { return m.coord.Path() }

func (m *Manager) markStale() { m.stale.Store(true) }

// DeleteObjects deletes, on c's domain, every object in objs owned by c.
// Objects owned by other contexts are skipped. With save a CommitAsync of
// c is queued behind the deletions. It returns how many objects were
// scheduled for deletion.
func (m *Manager) DeleteObjects(ctx context.Context, objs []*Object, c *Context, save bool) int {
	if !m.accepts(c) {
		return 0
	}

	owned := make([]*Object, 0, len(objs))
	for _, o := range objs {
		if o != nil && o.owner == c {
			owned = append(owned, o)
		}
	}
	if skipped := len(objs) - len(owned); skipped > 0 {
		c.logger.Debug("skipping objects owned by other contexts", "skipped", skipped)
	}

	err := c.PerformAsync(ctx, func(tx *Tx) error {
		for _, o := range owned {
			if err := tx.Delete(o); err != nil {
				c.logger.Warn("delete failed", "object", o.String(), "error", err)
			}
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("delete not enqueued", "error", err)
		return 0
	}

	if save {
		m.CommitAsync(ctx, c, nil)
	}
	return len(owned)
}

// DestroyStore resets Leaf, Main and Root, then destroys the store file
// and attaches a fresh empty store through the same contexts. If destroy
// or re-attach fails, the holder replaces this manager entirely. onDone
// always fires once the store is usable again, through this manager or
// its replacement.
func (m *Manager) DestroyStore(ctx context.Context, onDone func()) {
	defer func() {
		if onDone != nil {
			onDone()
		}
	}()

	if m.Stale() {
		m.logger.Warn("destroy ignored: manager is stale")
		return
	}

	root, main, leaf := m.hierarchy()
	for _, c := range []*Context{leaf, main, root} {
		if err := c.Reset(ctx); err != nil {
			c.logger.Debug("reset failed", "error", err)
		}
	}

	err := root.dom.Do(ctx, func(ctx context.Context) error {
		return m.coord.recreate(ctx)
	})
	if err == nil {
		m.logger.Info("store recreated", "path", m.coord.Path())
		return
	}

	m.logger.Warn("store recreate failed, reinitializing", "error", err)
	if m.holder != nil {
		m.holder.replace(m)
	}
}

// retire drains the manager's work and detaches it. Leaf drains first,
// then whatever the manager queued on the shared UI domain, then Root,
// following the direction changes flow in. It blocks on those domains and
// must not run on one of them.
func (m *Manager) retire() {
	ctx := context.Background()
	root, main, leaf := m.hierarchy()

	leaf.dom.Close()
	<-leaf.dom.Done()

	if err := main.dom.Do(ctx, func(context.Context) error { return nil }); err != nil {
		m.logger.Debug("ui domain barrier skipped", "error", err)
	}

	if err := root.dom.Do(ctx, func(context.Context) error { return m.coord.detach() }); err != nil {
		m.logger.Debug("detach failed", "error", err)
	}
	root.dom.Close()
	<-root.dom.Done()
	m.logger.Debug("manager retired")
}

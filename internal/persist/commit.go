package persist

import (
	"context"
	"sync"
	"sync/atomic"
)

// lineage returns c followed by its ancestors up to Root.
func lineage(c *Context) []*Context {
	var out []*Context
	for ; c != nil; c = c.parent {
		out = append(out, c)
	}
	return out
}

// completion wraps a caller's onDone so it fires at most once and its
// outcome can be read back.
type completion struct {
	once   sync.Once
	ok     atomic.Bool
	onDone func(bool)
}

func newCompletion(onDone func(bool)) *completion {
	return &completion{onDone: onDone}
}

func (d *completion) finish(ok bool) {
	d.once.Do(func() {
		d.ok.Store(ok)
		if d.onDone != nil {
			d.onDone(ok)
		}
	})
}

// step commits one level on its own domain and reports whether the cascade
// continues. The level with nothing pending, the failing level and Root
// each end it.
func (m *Manager) step(ctx context.Context, c *Context, done *completion) bool {
	committed, err := c.commitLevel(ctx)
	switch {
	case err != nil:
		c.logger.Warn("commit failed", "error", err)
		done.finish(false)
		return false
	case !committed || c.parent == nil:
		done.finish(true)
		return false
	default:
		return true
	}
}

// CommitSync commits c and then each ancestor in turn, blocking the caller
// until the cascade stops. onDone (optional) receives the outcome on the
// domain of the last level processed; the same outcome is returned.
//
// A level with no pending changes succeeds without touching its parent.
// A failing level stops the cascade and keeps its changes pending.
func (m *Manager) CommitSync(ctx context.Context, c *Context, onDone func(ok bool)) bool {
	done := newCompletion(onDone)
	if !m.accepts(c) {
		done.finish(false)
		return false
	}

	for _, level := range lineage(c) {
		var next bool
		err := level.dom.Do(ctx, func(ctx context.Context) error {
			next = m.step(ctx, level, done)
			return nil
		})
		if err != nil {
			level.logger.Warn("commit not run", "error", err)
			done.finish(false)
			break
		}
		if !next {
			break
		}
	}
	return done.ok.Load()
}

// CommitAsync is CommitSync without blocking: each level is enqueued on its
// domain, and the next level only after the previous one succeeded.
func (m *Manager) CommitAsync(ctx context.Context, c *Context, onDone func(ok bool)) {
	done := newCompletion(onDone)
	if !m.accepts(c) {
		done.finish(false)
		return
	}
	m.enqueueLevel(ctx, c, done)
}

func (m *Manager) enqueueLevel(ctx context.Context, c *Context, done *completion) {
	err := c.dom.Submit(ctx, func(ctx context.Context) error {
		if m.step(ctx, c, done) {
			m.enqueueLevel(ctx, c.parent, done)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("commit not enqueued", "error", err)
		done.finish(false)
	}
}

func (m *Manager) accepts(c *Context) bool {
	switch {
	case c == nil || c.mgr != m:
		m.logger.Warn("commit rejected: context belongs to another manager")
		return false
	case m.Stale():
		m.logger.Warn("commit rejected: manager is stale")
		return false
	}
	return true
}

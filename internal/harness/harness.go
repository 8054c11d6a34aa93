package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/roach88/cascade/internal/persist"
	"github.com/roach88/cascade/internal/record"
	"github.com/roach88/cascade/internal/testutil"
)

// errRejected is returned by the commit hook for roles a step marks as
// failing.
var errRejected = errors.New("commit rejected by scenario")

// Harness executes one scenario against a fresh store with deterministic
// object ids and sequence numbers.
type Harness struct {
	holder *persist.Holder
	clock  *testutil.Counter
	refs   map[string]record.ObjectID
	logger *slog.Logger

	mu      sync.Mutex
	failing map[persist.Role]bool
	commits []string
	fatal   error
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a new store file in a temporary directory,
// which is torn down afterwards. Execution flow:
//  1. Open a persistence holder with sequential object ids
//  2. Execute setup steps (any non-ok result aborts)
//  3. Execute flow steps, checking each against its expect
//  4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "cascade-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create store dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	h := &Harness{
		clock:   testutil.NewCounter(),
		refs:    make(map[string]record.ObjectID),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
		failing: make(map[persist.Role]bool),
	}

	h.holder, err = persist.Open(ctx, filepath.Join(dir, "cascade.sqlite"),
		persist.WithIDGenerator(record.NewSequentialGenerator("obj")),
		persist.WithCommitHook(h.hook),
		persist.WithFatalHandler(h.onFatal),
		persist.WithLogger(h.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer h.holder.Close()

	result := NewResult()
	for i, step := range scenario.Setup {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("setup step %d: %w", i, err)
		}
		result.AddTrace(ev)
		if ev.Result != ResultOK {
			return nil, fmt.Errorf("setup step %d (%s): result %s", i, step.Op, ev.Result)
		}
	}

	for i, step := range scenario.Flow {
		ev, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
		result.AddTrace(ev)

		want := step.Expect
		if want == "" {
			want = ResultOK
		}
		if ev.Result != want {
			result.AddError(fmt.Sprintf("flow[%d] %s: expected %s, got %s", i, step.Op, want, ev.Result))
		}
		h.logger.Info("flow step completed", "step", i, "op", step.Op, "result", ev.Result)
	}

	h.mu.Lock()
	result.Commits = append(result.Commits, h.commits...)
	fatal := h.fatal
	h.mu.Unlock()
	if fatal != nil {
		result.AddError(fmt.Sprintf("fatal: %v", fatal))
	}

	actx := &AssertionContext{Ctx: ctx, Holder: h.holder, Refs: h.refs}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) hook(role persist.Role, _ persist.ChangeSet) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failing[role] {
		return errRejected
	}
	h.commits = append(h.commits, role.String())
	return nil
}

func (h *Harness) onFatal(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fatal = err
}

func (h *Harness) setFailing(roles []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	clear(h.failing)
	for _, r := range roles {
		role, _ := persist.ParseRole(r) // validated on load
		h.failing[role] = true
	}
}

func (h *Harness) commitCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.commits)
}

func (h *Harness) commitsSince(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n >= len(h.commits) {
		return nil
	}
	return slices.Clone(h.commits[n:])
}

func outcome(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultFailed
}

// execute runs one step. Operation failures are reported in the event's
// Result; the error return is reserved for malformed steps and timeouts.
func (h *Harness) execute(ctx context.Context, step Step) (TraceEvent, error) {
	ev := TraceEvent{
		Seq:  int64(h.clock.Inc("seq")),
		Op:   step.Op,
		Role: step.Role,
		Ref:  step.Ref,
	}
	before := h.commitCount()
	defer h.setFailing(nil)
	h.setFailing(step.Fail)

	m := h.holder.Current()
	var c *persist.Context
	if step.Role != "" {
		role, err := persist.ParseRole(step.Role)
		if err != nil {
			return ev, err
		}
		if c, err = m.Context(role); err != nil {
			return ev, err
		}
	}

	var err error
	switch step.Op {
	case OpInsert:
		ev.Result, err = h.insert(ctx, c, step, &ev)
	case OpUpdate:
		ev.Result, err = h.update(ctx, c, step, &ev)
	case OpDelete:
		ev.ID = string(h.refs[step.Ref])
		ev.Result = outcome(c.Perform(ctx, func(tx *persist.Tx) error {
			obj, err := tx.Get(h.refs[step.Ref])
			if err != nil {
				return err
			}
			return tx.Delete(obj)
		}) == nil)
	case OpCommitSync:
		ev.Result = outcome(m.CommitSync(ctx, c, nil))
	case OpCommitAsync:
		done := make(chan bool, 1)
		m.CommitAsync(ctx, c, func(ok bool) { done <- ok })
		var ok bool
		if ok, err = wait(done); err == nil {
			ev.Result = outcome(ok)
		}
	case OpReset:
		ev.Result = outcome(c.Reset(ctx) == nil)
	case OpDeleteObjects:
		ev.Result, err = h.deleteObjects(ctx, m, c, step, &ev)
	case OpDestroy:
		done := make(chan struct{})
		m.DestroyStore(ctx, func() { close(done) })
		if _, err = wait(done); err == nil {
			ev.Result = ResultRecreated
			if h.holder.Current() != m {
				ev.Result = ResultReinitialized
			}
			ev.Generation = h.holder.Generation()
		}
	case OpReinit:
		h.holder.Reinitialize()
		ev.Result = ResultOK
		ev.Generation = h.holder.Generation()
	case OpRemoveFile:
		ev.Result = outcome(os.Remove(m.Path()) == nil)
	default:
		err = fmt.Errorf("unknown op %q", step.Op)
	}

	ev.Commits = h.commitsSince(before)
	return ev, err
}

func (h *Harness) insert(ctx context.Context, c *persist.Context, step Step, ev *TraceEvent) (string, error) {
	attrs, err := record.ParseMap(step.Attrs)
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", step.Ref, err)
	}
	err = c.Perform(ctx, func(tx *persist.Tx) error {
		obj, err := tx.Insert(step.Kind, attrs)
		if err != nil {
			return err
		}
		h.refs[step.Ref] = obj.ID()
		ev.ID = string(obj.ID())
		return nil
	})
	return outcome(err == nil), nil
}

func (h *Harness) update(ctx context.Context, c *persist.Context, step Step, ev *TraceEvent) (string, error) {
	attrs, err := record.ParseMap(step.Attrs)
	if err != nil {
		return "", fmt.Errorf("update %s: %w", step.Ref, err)
	}
	for k, v := range step.Attrs {
		if v == nil {
			attrs[k] = nil
		}
	}
	id := h.refs[step.Ref]
	ev.ID = string(id)
	err = c.Perform(ctx, func(tx *persist.Tx) error {
		obj, err := tx.Get(id)
		if err != nil {
			return err
		}
		return tx.Update(obj, attrs)
	})
	return outcome(err == nil), nil
}

// deleteObjects hands objects registered in the owner context to
// DeleteObjects on c, then waits for c and its ancestors to drain.
func (h *Harness) deleteObjects(ctx context.Context, m *persist.Manager, c *persist.Context, step Step, ev *TraceEvent) (string, error) {
	owner := c
	if step.Owner != "" {
		role, err := persist.ParseRole(step.Owner)
		if err != nil {
			return "", err
		}
		if owner, err = m.Context(role); err != nil {
			return "", err
		}
	}

	var objs []*persist.Object
	err := owner.Perform(ctx, func(tx *persist.Tx) error {
		for _, ref := range step.Refs {
			obj, err := tx.Get(h.refs[ref])
			if err != nil {
				return fmt.Errorf("%s: %w", ref, err)
			}
			objs = append(objs, obj)
		}
		return nil
	})
	if err != nil {
		return ResultFailed, nil
	}

	ev.Scheduled = m.DeleteObjects(ctx, objs, c, step.Save)
	for level := c; level != nil; level = level.Parent() {
		if err := level.Perform(ctx, func(*persist.Tx) error { return nil }); err != nil {
			return ResultFailed, nil
		}
	}
	return ResultOK, nil
}

// wait receives from ch, giving up after testutil.DefaultWait.
func wait[T any](ch <-chan T) (T, error) {
	select {
	case v := <-ch:
		return v, nil
	case <-time.After(testutil.DefaultWait):
		var zero T
		return zero, fmt.Errorf("timed out after %s", testutil.DefaultWait)
	}
}

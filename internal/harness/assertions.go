package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/roach88/cascade/internal/persist"
	"github.com/roach88/cascade/internal/record"
)

// AssertionContext provides what assertions need to inspect final state.
type AssertionContext struct {
	Ctx    context.Context
	Holder *persist.Holder
	Refs   map[string]record.ObjectID
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s -> %s\n", event.Seq, event.Op, event.Role, event.Ref, event.Result)
		}
	}
	return buf.String()
}

// viewOf returns the context an assertion inspects (root by default).
func viewOf(actx *AssertionContext, a Assertion) (*persist.Context, error) {
	role := persist.RoleRoot
	if a.Role != "" {
		var err error
		if role, err = persist.ParseRole(a.Role); err != nil {
			return nil, err
		}
	}
	return actx.Holder.Current().Context(role)
}

// assertCount checks how many objects the context sees.
func assertCount(actx *AssertionContext, a Assertion) error {
	c, err := viewOf(actx, a)
	if err != nil {
		return err
	}
	var n int
	err = c.Perform(actx.Ctx, func(tx *persist.Tx) error {
		objs, err := tx.Fetch(a.Kind)
		n = len(objs)
		return err
	})
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d objects of kind %q in %s", a.Count, a.Kind, c.Role()),
			Actual:   fmt.Sprintf("%d objects", n),
		}
	}
	return nil
}

// assertFinalState checks an object's attributes (subset match) or its
// absence as seen by the context.
func assertFinalState(actx *AssertionContext, a Assertion) error {
	c, err := viewOf(actx, a)
	if err != nil {
		return err
	}
	id, ok := actx.Refs[a.Ref]
	if !ok {
		return fmt.Errorf("final_state: unknown ref %q", a.Ref)
	}

	var attrs record.Map
	err = c.Perform(actx.Ctx, func(tx *persist.Tx) error {
		obj, err := tx.Get(id)
		if err != nil {
			return err
		}
		attrs, err = tx.Attrs(obj)
		return err
	})
	found := err == nil
	if err != nil && !errors.Is(err, persist.ErrNotFound) {
		return fmt.Errorf("final_state %s: %w", a.Ref, err)
	}

	if a.Absent {
		if found {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s (%s) absent from %s", a.Ref, id, c.Role()),
				Actual:   fmt.Sprintf("present with %v", record.Native(attrs)),
			}
		}
		return nil
	}
	if !found {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s (%s) in %s", a.Ref, id, c.Role()),
			Actual:   "not found",
		}
	}

	want, err := record.ParseMap(a.Expect)
	if err != nil {
		return fmt.Errorf("final_state %s: %w", a.Ref, err)
	}
	got := record.Map{}
	for k := range want {
		if v, ok := attrs[k]; ok {
			got[k] = v
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("%s attributes %v", a.Ref, record.Native(want)),
			Actual:   fmt.Sprintf("mismatch (-want +got):\n%s", diff),
		}
	}
	return nil
}

// assertHasChanges checks whether the context holds pending changes.
func assertHasChanges(actx *AssertionContext, a Assertion) error {
	c, err := viewOf(actx, a)
	if err != nil {
		return err
	}
	has, err := c.HasChanges(actx.Ctx)
	if err != nil {
		return fmt.Errorf("has_changes: %w", err)
	}
	if has != a.Changes {
		return &AssertionError{
			Type:     AssertHasChanges,
			Expected: fmt.Sprintf("%s has changes = %t", c.Role(), a.Changes),
			Actual:   fmt.Sprintf("%t", has),
		}
	}
	return nil
}

// assertTraceCount checks how many events match op (and result, if set).
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == a.Op && (a.Result == "" || event.Result == a.Result) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s events (result %q)", a.Count, a.Op, a.Result),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertCommitOrder checks the exact sequence of level commits.
func assertCommitOrder(result *Result, a Assertion) error {
	if diff := cmp.Diff(a.Roles, result.Commits, cmpopts.EquateEmpty()); diff != "" {
		return &AssertionError{
			Type:     AssertCommitOrder,
			Expected: fmt.Sprintf("commits %v", a.Roles),
			Actual:   fmt.Sprintf("mismatch (-want +got):\n%s", diff),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions runs every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertCount:
			err = assertCount(actx, a)
		case AssertFinalState:
			err = assertFinalState(actx, a)
		case AssertHasChanges:
			err = assertHasChanges(actx, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertCommitOrder:
			err = assertCommitOrder(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

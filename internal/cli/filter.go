package cli

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"

	"github.com/roach88/cascade/internal/record"
)

// rowFilter is a compiled --where predicate over a row. The expression sees
// id, kind, version and attrs (a map of plain values), e.g.
//
//	kind == "note" && attrs.pinned == true
type rowFilter struct {
	src     string
	program *exprvm.Program
}

func compileFilter(src string) (*rowFilter, error) {
	if src == "" {
		return nil, nil
	}
	program, err := exprlang.Compile(src,
		exprlang.Env(filterEnv(record.Row{})),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", src, err)
	}
	return &rowFilter{src: src, program: program}, nil
}

// Match reports whether row satisfies the filter. A nil filter matches
// everything.
func (f *rowFilter) Match(row record.Row) (bool, error) {
	if f == nil {
		return true, nil
	}
	out, err := exprlang.Run(f.program, filterEnv(row))
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q on %s: %w", f.src, row.ID, err)
	}
	ok, _ := out.(bool)
	return ok, nil
}

func filterEnv(row record.Row) map[string]any {
	attrs := map[string]any{}
	if row.Attrs != nil {
		attrs = record.Native(row.Attrs).(map[string]any)
	}
	return map[string]any{
		"id":      string(row.ID),
		"kind":    string(row.Kind),
		"version": row.Version,
		"attrs":   attrs,
	}
}

package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/persist"
	"github.com/roach88/cascade/internal/record"
)

// parseAssignments turns key=value arguments into attributes. Values that
// parse as integers, booleans or null keep that type; anything else is a
// string. Quote a value ("'42'") to force a string.
func parseAssignments(args []string) (record.Map, error) {
	attrs := record.Map{}
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q: want key=value", arg)
		}
		attrs[key] = inferValue(raw)
	}
	return attrs, nil
}

func inferValue(raw string) record.Value {
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		return record.String(raw[1 : len(raw)-1])
	}
	switch raw {
	case "null":
		return record.Null{}
	case "true":
		return record.Bool(true)
	case "false":
		return record.Bool(false)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return record.Int(n)
	}
	return record.String(raw)
}

func argsError(err error) error {
	return WrapExitError(ExitCommandError, "invalid arguments", err)
}

// saveLeaf commits the Leaf context through Main into the store.
func (e *env) saveLeaf() error {
	m := e.manager()
	if !m.CommitSync(e.ctx, m.Leaf(), nil) {
		e.out.Error(CodeCommit, "commit failed", nil)
		return NewExitError(ExitFailure, "commit failed")
	}
	return nil
}

func (e *env) lookupFailed(id string, err error) error {
	if errors.Is(err, persist.ErrNotFound) {
		e.out.Error(CodeNotFound, fmt.Sprintf("object %s not found", id), nil)
		return NewExitError(ExitFailure, "object not found")
	}
	return WrapExitError(ExitFailure, "lookup failed", err)
}

// NewPutCommand creates the put command.
func NewPutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <kind> [key=value...]",
		Short: "Insert an object and save it",
		Long: `Insert a new object of <kind> in the Leaf context and save the
cascade Leaf -> Main -> Root.

Examples:
  cascade put note title=hello pinned=true
  cascade put counter value=3 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parseAssignments(args[1:])
			if err != nil {
				return argsError(err)
			}

			e, err := openEnv(opts, cmd)
			if err != nil {
				return err
			}
			defer e.release()

			var row record.Row
			err = e.manager().Leaf().Perform(e.ctx, func(tx *persist.Tx) error {
				obj, err := tx.Insert(args[0], attrs)
				if err != nil {
					return err
				}
				row, err = tx.Row(obj)
				return err
			})
			if err != nil {
				return argsError(err)
			}
			if err := e.saveLeaf(); err != nil {
				return err
			}
			e.out.VerboseLog("saved %s through leaf, main and root", row.ID)
			return e.out.Success(string(row.ID), row)
		},
	}
}

// NewGetCommand creates the get command.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(opts, cmd)
			if err != nil {
				return err
			}
			defer e.release()

			var row record.Row
			err = e.manager().Leaf().Perform(e.ctx, func(tx *persist.Tx) error {
				obj, err := tx.Get(record.ObjectID(args[0]))
				if err != nil {
					return err
				}
				row, err = tx.Row(obj)
				return err
			})
			if err != nil {
				return e.lookupFailed(args[0], err)
			}
			return e.out.Rows([]record.Row{row})
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(opts *RootOptions) *cobra.Command {
	var unset []string

	cmd := &cobra.Command{
		Use:   "update <id> [key=value...]",
		Short: "Change attributes of an object and save it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			attrs, err := parseAssignments(args[1:])
			if err != nil {
				return argsError(err)
			}
			for _, key := range unset {
				attrs[key] = nil
			}
			if len(attrs) == 0 {
				return argsError(errors.New("nothing to update"))
			}

			e, err := openEnv(opts, cmd)
			if err != nil {
				return err
			}
			defer e.release()

			var row record.Row
			err = e.manager().Leaf().Perform(e.ctx, func(tx *persist.Tx) error {
				obj, err := tx.Get(record.ObjectID(args[0]))
				if err != nil {
					return err
				}
				if err := tx.Update(obj, attrs); err != nil {
					return err
				}
				row, err = tx.Row(obj)
				return err
			})
			if err != nil {
				return e.lookupFailed(args[0], err)
			}
			if err := e.saveLeaf(); err != nil {
				return err
			}
			return e.out.Success(fmt.Sprintf("updated %s", row.ID), row)
		},
	}

	cmd.Flags().StringSliceVar(&unset, "unset", nil, "attribute keys to remove")
	return cmd
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	var where string

	cmd := &cobra.Command{
		Use:   "list [kind]",
		Short: "List stored objects",
		Long: `List objects, optionally of one kind, ordered by id.

--where takes an expression over id, kind, version and attrs:
  cascade list note --where 'attrs.pinned == true'
  cascade list --where 'version > 1 && kind != "draft"'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := compileFilter(where)
			if err != nil {
				return argsError(err)
			}
			kind := ""
			if len(args) == 1 {
				kind = args[0]
			}

			e, err := openEnv(opts, cmd)
			if err != nil {
				return err
			}
			defer e.release()

			var rows []record.Row
			err = e.manager().Leaf().Perform(e.ctx, func(tx *persist.Tx) error {
				objs, err := tx.Fetch(kind)
				if err != nil {
					return err
				}
				for _, obj := range objs {
					row, err := tx.Row(obj)
					if err != nil {
						return err
					}
					ok, err := filter.Match(row)
					if err != nil {
						return err
					}
					if ok {
						rows = append(rows, row)
					}
				}
				return nil
			})
			if err != nil {
				return WrapExitError(ExitFailure, "list failed", err)
			}
			if rows == nil {
				rows = []record.Row{}
			}
			return e.out.Rows(rows)
		},
	}

	cmd.Flags().StringVar(&where, "where", "", "filter expression")
	return cmd
}

// deleteResult is the JSON payload of the delete command.
type deleteResult struct {
	Scheduled int      `json:"scheduled"`
	Missing   []string `json:"missing,omitempty"`
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(opts *RootOptions) *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete objects through the Main context",
		Long: `Delete objects by id. The objects are loaded into the Main context
and deleted there; unless --no-save is given the deletion is committed
through Root before the command exits.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(opts, cmd)
			if err != nil {
				return err
			}
			defer e.release()

			m := e.manager()
			main := m.Main()
			res := deleteResult{}
			var objs []*persist.Object
			err = main.Perform(e.ctx, func(tx *persist.Tx) error {
				for _, id := range args {
					obj, err := tx.Get(record.ObjectID(id))
					if errors.Is(err, persist.ErrNotFound) {
						res.Missing = append(res.Missing, id)
						continue
					}
					if err != nil {
						return err
					}
					objs = append(objs, obj)
				}
				return nil
			})
			if err != nil {
				return WrapExitError(ExitFailure, "delete failed", err)
			}

			res.Scheduled = m.DeleteObjects(e.ctx, objs, main, !noSave)
			for _, id := range res.Missing {
				e.out.VerboseLog("skipping %s: not found", id)
			}
			if err := e.out.Success(fmt.Sprintf("deleted %d object(s)", res.Scheduled), res); err != nil {
				return err
			}
			if len(res.Missing) > 0 {
				return NewExitError(ExitFailure, fmt.Sprintf("%d object(s) not found", len(res.Missing)))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "delete without committing")
	return cmd
}

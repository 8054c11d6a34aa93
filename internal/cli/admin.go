package cli

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/cascade/internal/persist"
	"github.com/roach88/cascade/internal/record"
)

// NewDestroyCommand creates the destroy command.
func NewDestroyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Destroy the store and attach a fresh empty one",
		Long: `Reset every context, delete the store file and attach a new empty
store in its place. If that fails the persistence manager is rebuilt from
scratch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(opts, cmd)
			if err != nil {
				return err
			}
			defer e.release()

			before := e.manager()
			done := make(chan struct{})
			before.DestroyStore(e.ctx, func() { close(done) })
			<-done

			after := e.manager()
			if after != before {
				e.out.VerboseLog("manager %s replaced by %s", before.ID(), after.ID())
			}
			return e.out.Success("store destroyed", map[string]any{
				"path":          after.Path(),
				"generation":    after.Generation(),
				"reinitialized": after != before,
			})
		},
	}
}

// stressResult is the JSON payload of the stress command.
type stressResult struct {
	Requested int `json:"requested"`
	Committed int `json:"committed"`
	Stored    int `json:"stored"`
}

// NewStressCommand creates the stress command.
func NewStressCommand(opts *RootOptions) *cobra.Command {
	var (
		n        int
		workers  int
		roleName string
		kind     string
	)

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Insert and commit concurrently from many goroutines",
		Long: `Run n concurrent insert+commit cycles against one context and check
that every committed object reached the store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := persist.ParseRole(roleName)
			if err != nil {
				return argsError(err)
			}
			if n <= 0 {
				return argsError(fmt.Errorf("--n must be positive, got %d", n))
			}

			e, err := openEnv(opts, cmd)
			if err != nil {
				return err
			}
			defer e.release()

			m := e.manager()
			c, err := m.Context(role)
			if err != nil {
				return argsError(err)
			}
			base, err := storedCount(e, kind)
			if err != nil {
				return WrapExitError(ExitFailure, "count failed", err)
			}

			var committed atomic.Int64
			g, ctx := errgroup.WithContext(e.ctx)
			g.SetLimit(workers)
			for i := range n {
				g.Go(func() error {
					err := c.Perform(ctx, func(tx *persist.Tx) error {
						_, err := tx.Insert(kind, record.Map{"seq": record.Int(i)})
						return err
					})
					if err != nil {
						return err
					}
					if m.CommitSync(ctx, c, nil) {
						committed.Add(1)
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return WrapExitError(ExitFailure, "stress failed", err)
			}

			total, err := storedCount(e, kind)
			if err != nil {
				return WrapExitError(ExitFailure, "count failed", err)
			}
			res := stressResult{Requested: n, Committed: int(committed.Load()), Stored: total - base}
			if err := e.out.Success(fmt.Sprintf("%d/%d committed, %d stored", res.Committed, n, res.Stored), res); err != nil {
				return err
			}
			if res.Committed != n || res.Stored != n {
				return NewExitError(ExitFailure, "stress run lost commits")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "n", "n", 100, "number of insert+commit cycles")
	cmd.Flags().IntVar(&workers, "workers", 16, "concurrent goroutines")
	cmd.Flags().StringVar(&roleName, "role", "main", "context to write through (root|main|leaf)")
	cmd.Flags().StringVar(&kind, "kind", "stress", "kind of the inserted objects")
	return cmd
}

// storedCount counts objects of kind as seen by Root.
func storedCount(e *env, kind string) (int, error) {
	var n int
	err := e.manager().Root().Perform(e.ctx, func(tx *persist.Tx) error {
		objs, err := tx.Fetch(kind)
		n = len(objs)
		return err
	})
	return n, err
}

// NewTeardownCommand creates the teardown command.
func NewTeardownCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "teardown",
		Short: "Reset all contexts, clear the session and delete the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(opts, cmd)
			if err != nil {
				return err
			}
			path := e.manager().Path()
			e.holder.Close()
			return e.out.Success("torn down "+path, map[string]any{"path": path})
		},
	}
}

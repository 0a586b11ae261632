package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/core/ports"
)

// Runtime is the part of the application the operator commands drive.
type Runtime struct {
	Inbox     ports.InboxService
	Converter ports.InboxConverter
	Close     func()
}

// Deps wires the commands to the application. Open is called once per command that needs it.
type Deps struct {
	Open    func(ctx context.Context) (*Runtime, error)
	Migrate func(ctx context.Context) error
}

var errMissingDependency = errors.New("command dependency is not configured")

// NewRootCommand builds the claimsctl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "claimsctl",
		Short:         "Operate the claims intake backend",
		Long:          "claimsctl runs maintenance tasks against the claims database: schema migration, inbox statistics, exports and conversion recovery.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().Duration("timeout", 2*time.Minute, "overall command timeout, zero disables it")

	root.AddCommand(
		newMigrateCommand(deps),
		newStatsCommand(deps),
		newExportCommand(deps),
		newConvertCommand(deps),
		newReconcileCommand(deps),
	)
	return root
}

// Execute runs the command tree with the process arguments.
func Execute(ctx context.Context, deps Deps) error {
	return NewRootCommand(deps).ExecuteContext(ctx)
}

func newMigrateCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps.Migrate == nil {
				return errMissingDependency
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := deps.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newStatsCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print inbox counts by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, deps, func(ctx context.Context, rt *Runtime) error {
				stats, err := rt.Inbox.Stats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

func newExportCommand(deps Deps) *cobra.Command {
	var (
		output string
		status string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export inbox items to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.InboxFilter{InboxStatus: domain.InboxStatus(status)}
			return withRuntime(cmd, deps, func(ctx context.Context, rt *Runtime) error {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				if err := rt.Inbox.Export(ctx, filter, f); err != nil {
					_ = f.Close()
					_ = os.Remove(output)
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close %s: %w", output, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "inbox.xlsx", "destination file")
	cmd.Flags().StringVar(&status, "status", "", "only export items with this inbox status")
	return cmd
}

func newConvertCommand(deps Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <inbox-id>",
		Short: "Convert an inbox item into a claim",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := domain.ParseInboxRef(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, deps, func(ctx context.Context, rt *Runtime) error {
				result, err := rt.Converter.Convert(ctx, ref)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newReconcileCommand(deps Deps) *cobra.Command {
	var (
		pending   bool
		olderThan time.Duration
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "reconcile [<inbox-id> [<claim-id>]]",
		Short: "Finish a partially applied conversion",
		Long: "reconcile completes a conversion whose claim exists but whose documents or inbox cleanup did not finish.\n" +
			"With --pending it sweeps every ledger record left pending for longer than --older-than.",
		Args: func(cmd *cobra.Command, args []string) error {
			if pending {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(1, 2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if pending {
				return withRuntime(cmd, deps, func(ctx context.Context, rt *Runtime) error {
					n, err := rt.Converter.ReconcilePending(ctx, olderThan, limit)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d pending conversions\n", n)
					return nil
				})
			}

			ref, err := domain.ParseInboxRef(args[0])
			if err != nil {
				return err
			}
			claimID := ""
			if len(args) == 2 {
				claimID = args[1]
			}
			return withRuntime(cmd, deps, func(ctx context.Context, rt *Runtime) error {
				result, err := rt.Converter.Reconcile(ctx, ref, claimID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().BoolVar(&pending, "pending", false, "reconcile every stale pending conversion")
	cmd.Flags().DurationVar(&olderThan, "older-than", 5*time.Minute, "minimum age of a pending conversion")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum conversions to reconcile")
	return cmd
}

func withRuntime(cmd *cobra.Command, deps Deps, fn func(ctx context.Context, rt *Runtime) error) error {
	if deps.Open == nil {
		return errMissingDependency
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	rt, err := deps.Open(ctx)
	if err != nil {
		return err
	}
	if rt.Close != nil {
		defer rt.Close()
	}
	return fn(ctx, rt)
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil || timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

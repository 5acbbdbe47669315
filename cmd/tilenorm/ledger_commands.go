package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tilenorm/internal/ledger"
)

func (c *commandContext) withLedger(cmd *cobra.Command, fn func(*ledger.Ledger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	if !cfg.Ledger.Enabled {
		return errors.New("the run ledger is disabled (ledger.enabled = false)")
	}
	l, err := ledger.Open(cmd.Context(), cfg.Paths.StateDir)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer l.Close()
	return fn(l)
}

func newFailuresCommand(ctx *commandContext) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List patches that failed in the latest (or a given) run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(cmd, func(l *ledger.Ledger) error {
				out := cmd.OutOrStdout()
				id := strings.TrimSpace(runID)
				if id == "" {
					latest, ok, err := l.LatestRun(cmd.Context())
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(out, "No runs recorded")
						return nil
					}
					id = latest.ID
				} else if _, err := l.GetRun(cmd.Context(), id); err != nil {
					return err
				}

				failures, err := l.Failures(cmd.Context(), id)
				if err != nil {
					return err
				}
				if len(failures) == 0 {
					fmt.Fprintf(out, "No failed patches in run %s\n", id)
					return nil
				}
				rows := make([][]string, 0, len(failures))
				for _, f := range failures {
					rows = append(rows, []string{
						count(f.Chunk),
						f.Kind,
						f.Source,
						f.Method,
						f.Error,
					})
				}
				fmt.Fprintf(out, "Run %s: %s failed patches\n", id, count(len(failures)))
				fmt.Fprintln(out, renderTable(
					[]column{numCol("Chunk"), statusCol("Kind"), col("Source"), col("Method"), col("Error")},
					rows,
					interactive(out),
				))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Run ID (defaults to the latest run)")
	return cmd
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLedger(cmd, func(l *ledger.Ledger) error {
				runs, err := l.Runs(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{
						r.ID,
						relativeTime(r.StartedAt),
						r.Status,
						count(r.Discovered),
						count(r.Written),
						count(r.Failed),
						bytesLabel(r.BytesWritten),
						yesNo(r.Fallback),
						durationLabel(r.Duration()),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{
						col("Run"), col("Started"), statusCol("Status"),
						numCol("Discovered"), numCol("Written"), numCol("Failed"), numCol("Bytes"),
						col("Fallback"), numCol("Duration"),
					},
					rows,
					interactive(out),
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of runs to show (0 = all)")
	return cmd
}

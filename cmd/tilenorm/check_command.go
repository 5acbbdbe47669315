package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tilenorm/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and check source, destination and reference paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := []preflight.Result{{Name: "Configuration", Passed: true, Detail: "valid"}}
			if err := cfg.Validate(); err != nil {
				results[0] = preflight.Result{Name: "Configuration", Detail: err.Error()}
			}
			results = append(results, preflight.RunAll(cfg, false)...)

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "ok"
				if !r.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{col("Check"), statusCol("Status"), col("Detail")},
				rows,
				interactive(cmd.OutOrStdout()),
			))

			if !results[0].Passed {
				return fmt.Errorf("configuration invalid: %s", results[0].Detail)
			}
			return preflight.Err(results[1:])
		},
	}
}

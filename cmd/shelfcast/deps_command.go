package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shelfcast/internal/deps"
	"shelfcast/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tools, directories, and the book server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				state := "missing"
				switch {
				case status.Available:
					state = "ok"
				case status.Optional:
					state = "optional"
				}
				rows = append(rows, []string{status.Name, status.Command, state, status.Detail})
			}
			fmt.Fprintln(out, renderTable([]column{
				{header: "Tool"},
				{header: "Command"},
				{header: "Status"},
				{header: "Detail"},
			}, rows, nil))

			checks := preflight.RunAll(operationContext(cmd, "deps"), cfg)
			rows = rows[:0]
			for _, check := range checks {
				rows = append(rows, []string{check.Name, checkState(check.Passed), check.Detail})
			}
			fmt.Fprintln(out, renderTable([]column{
				{header: "Check"},
				{header: "Status"},
				{header: "Detail"},
			}, rows, nil))

			missing := deps.MissingRequired(statuses)
			failed := preflight.Failed(checks)
			if len(missing) > 0 || len(failed) > 0 {
				return fmt.Errorf("%d required tool(s) missing, %d check(s) failed", len(missing), len(failed))
			}
			return nil
		},
	}
}

func checkState(passed bool) string {
	if passed {
		return "ok"
	}
	return "failed"
}

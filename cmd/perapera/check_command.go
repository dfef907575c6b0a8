package main

import (
	"errors"

	"github.com/spf13/cobra"

	"perapera/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check game data, key material, directories and download origins",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if ctx.jsonOutput() {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					status := "ok"
					if !r.Passed {
						status = "FAIL"
					}
					rows = append(rows, []string{r.Name, status, r.Detail})
				}
				printTable(cmd, []string{"Check", "Status", "Detail"}, rows, nil)
			}
			if len(preflight.Failed(results)) > 0 {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}

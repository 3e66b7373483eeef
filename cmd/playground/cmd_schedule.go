package main

import (
	"fmt"

	"github.com/spboyer/playground/internal/search"
	"github.com/spf13/cobra"
)

func newScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the Hyperband bracket table",
		Long: `Print the brackets and rounds the search runs for a maximum epoch budget
and reduction factor, most aggressive bracket first.

Defaults come from the search section of the project configuration.`,
		Args: cobra.NoArgs,
		RunE: runSchedule,
	}
	cmd.Flags().Int("max-epochs", 0, "Largest per-trial epoch budget (default from config)")
	cmd.Flags().Int("factor", 0, "Hyperband reduction factor (default from config)")
	return cmd
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	pc, err := loadProjectConfig(cmd)
	if err != nil {
		return err
	}
	maxEpochs, factor := pc.Search.MaxEpochs, pc.Search.Factor
	if cmd.Flags().Changed("max-epochs") {
		if maxEpochs, err = cmd.Flags().GetInt("max-epochs"); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("factor") {
		if factor, err = cmd.Flags().GetInt("factor"); err != nil {
			return err
		}
	}

	brackets, err := search.Schedule(maxEpochs, factor)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprint(out, search.FormatSchedule(brackets)) //nolint:errcheck

	fmt.Fprintf(out, "total: %d epochs across all trial runs\n", search.TotalEpochs(brackets)) //nolint:errcheck
	return nil
}

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spboyer/playground/internal/projectconfig"
	"github.com/spboyer/playground/internal/validation"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a " + projectconfig.FileName + " file against its schema",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := projectconfig.FileName
	if len(args) == 1 {
		path = args[0]
	} else {
		dir, err := cmd.Flags().GetString("config-dir")
		if err != nil {
			return err
		}
		path = filepath.Join(dir, path)
	}

	errs, err := validation.ValidateConfigFile(path)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(out, "  ✗ %s\n", e) //nolint:errcheck
		}
		return fmt.Errorf("%s: %d schema violation(s)", path, len(errs))
	}
	fmt.Fprintf(out, "✓ %s is valid\n", path) //nolint:errcheck
	return nil
}

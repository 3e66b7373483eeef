package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spboyer/playground/internal/projectconfig"
	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playground",
		Short: "Playground - train tabular binary classifiers",
		Long: `Playground trains a binary classifier on labelled CSV files.

It searches the network hyperparameters with Hyperband, retrains the best
configuration to find its best epoch, and saves an averaging ensemble of
independently trained members to a model directory.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", ".", "Directory to start the "+projectconfig.FileName+" lookup from")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newTrainCommand())
	cmd.AddCommand(newEvaluateCommand())
	cmd.AddCommand(newScheduleCommand())
	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newSessionCommand())

	return cmd
}

func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := newRootCommand()
	return rootCmd.ExecuteContext(ctx)
}

// loadProjectConfig loads .playground.yaml starting from --config-dir.
func loadProjectConfig(cmd *cobra.Command) (*projectconfig.ProjectConfig, error) {
	dir, err := cmd.Flags().GetString("config-dir")
	if err != nil {
		return nil, err
	}
	return projectconfig.Load(dir)
}

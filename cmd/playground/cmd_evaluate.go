package main

import (
	"fmt"

	"github.com/spboyer/playground/internal/dataset"
	"github.com/spboyer/playground/internal/modelstore"
	"github.com/spboyer/playground/internal/reporting"
	"github.com/spboyer/playground/internal/spinner"
	"github.com/spboyer/playground/internal/training"
	"github.com/spf13/cobra"
)

func newEvaluateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a saved model on a labelled CSV file",
		Long: `Load the ensemble saved in --model-dir and report loss, accuracy, AUC and
ROC AUC with bootstrap confidence intervals on --evaluation-file.

With --min-auc the command exits with status 1 when the ROC AUC is lower.`,
		Args: cobra.NoArgs,
		RunE: runEvaluate,
	}
	cmd.Flags().String("model-dir", "", "Model directory written by train (required)")
	cmd.Flags().String("evaluation-file", "", "Evaluation CSV file (required)")
	cmd.Flags().Float64("min-auc", 0, "Fail when the ROC AUC is below this value")
	_ = cmd.MarkFlagRequired("model-dir")
	_ = cmd.MarkFlagRequired("evaluation-file")
	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	modelDir, err := cmd.Flags().GetString("model-dir")
	if err != nil {
		return err
	}
	evalFile, err := cmd.Flags().GetString("evaluation-file")
	if err != nil {
		return err
	}
	minAUC, err := cmd.Flags().GetFloat64("min-auc")
	if err != nil {
		return err
	}
	pc, err := loadProjectConfig(cmd)
	if err != nil {
		return err
	}

	model, man, err := modelstore.Load(modelDir)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	label := man.LabelColumn
	if label == "" {
		label = pc.Data.LabelColumn
	}
	ds, err := dataset.Open([]string{evalFile}, dataset.Options{BatchSize: pc.Data.BatchSize, LabelColumn: label})
	if err != nil {
		return err
	}

	stop := spinner.StartIfTerminal(cmd.ErrOrStderr(), "Evaluating "+modelDir)
	report, err := training.Evaluate(model, ds)
	stop()
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), reporting.FormatReport(report)) //nolint:errcheck
	if minAUC > 0 && !(report.ROCAUC >= minAUC) {
		return &ThresholdError{Message: fmt.Sprintf("ROC AUC %.3f is below --min-auc %.3f", report.ROCAUC, minAUC)}
	}
	return nil
}

package main

import (
	"errors"
	"fmt"

	"github.com/spboyer/playground/internal/modelstore"
	"github.com/spboyer/playground/internal/projectconfig"
	"github.com/spboyer/playground/internal/reporting"
	"github.com/spboyer/playground/internal/session"
	"github.com/spboyer/playground/internal/training"
	"github.com/spf13/cobra"
)

func newTrainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Search, train and save an ensemble classifier",
		Long: `Train a binary classifier on labelled CSV files.

Runs a Hyperband search over the network hyperparameters using the training
and validation files, retrains the best configuration to pick the best epoch,
trains the ensemble members on training plus validation data, saves the
ensemble to --model-dir and reports metrics on the evaluation file.

Settings come from ` + projectconfig.FileName + ` when present; flags override them.`,
		Args: cobra.NoArgs,
		RunE: runTrain,
	}
	cmd.Flags().String("train-file", "", "Training CSV file (required)")
	cmd.Flags().String("validation-file", "", "Validation CSV file (required)")
	cmd.Flags().String("evaluation-file", "", "Evaluation CSV file (required)")
	cmd.Flags().String("model-dir", "", "Directory to save the model to (required)")
	cmd.Flags().Bool("publish", false, "Upload the model directory to the configured blob container")
	cmd.Flags().String("label", projectconfig.DefaultLabelColumn, "Label column name")
	cmd.Flags().String("id-column", projectconfig.DefaultIDColumn, "Column excluded from the features")
	cmd.Flags().Int("batch-size", projectconfig.DefaultBatchSize, "Examples per batch")
	cmd.Flags().Int64("seed", projectconfig.DefaultSeed, "Seed for shuffling, search and member initialization")
	cmd.Flags().Int("max-epochs", projectconfig.DefaultMaxEpochs, "Largest per-trial epoch budget")
	cmd.Flags().Int("factor", projectconfig.DefaultFactor, "Hyperband reduction factor")
	cmd.Flags().Int("members", projectconfig.DefaultMembers, "Number of ensemble members")
	cmd.Flags().Bool("session-log", false, "Record the run as an NDJSON session log")
	cmd.Flags().String("session-dir", ".", "Directory for session logs")
	for _, name := range []string{"train-file", "validation-file", "evaluation-file", "model-dir"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	pc, err := loadProjectConfig(cmd)
	if err != nil {
		return err
	}
	if err := applyTrainFlags(cmd, pc); err != nil {
		return err
	}
	cfg := training.ConfigFrom(pc)

	publish, err := cmd.Flags().GetBool("publish")
	if err != nil {
		return err
	}
	if publish {
		blob := pc.Storage.Blob
		if blob.AccountURL == "" {
			return errors.New("--publish needs storage.blob.account_url in " + projectconfig.FileName)
		}
		p, err := modelstore.NewBlobPublisher(blob.AccountURL, blob.Container, blob.Prefix, nil)
		if err != nil {
			return err
		}
		cfg.Publisher = p
	}

	var files training.Files
	for flag, dst := range map[string]*string{
		"train-file":      &files.Train,
		"validation-file": &files.Validation,
		"evaluation-file": &files.Evaluation,
		"model-dir":       &files.ModelDir,
	} {
		if *dst, err = cmd.Flags().GetString(flag); err != nil {
			return err
		}
	}

	logEnabled, err := cmd.Flags().GetBool("session-log")
	if err != nil {
		return err
	}
	if logEnabled {
		dir, err := cmd.Flags().GetString("session-dir")
		if err != nil {
			return err
		}
		logger, err := session.NewJSONLogger(session.DefaultLogPath(dir))
		if err != nil {
			return err
		}
		defer logger.Close() //nolint:errcheck
		cfg.Events = logger
		fmt.Fprintf(cmd.ErrOrStderr(), "Session log: %s\n", logger.Path()) //nolint:errcheck
	}

	summary, err := training.NewPipeline(cfg).Train(cmd.Context(), files)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), reporting.FormatSummaryReport(summary)) //nolint:errcheck
	return nil
}

// applyTrainFlags overlays the flags the user set onto pc.
func applyTrainFlags(cmd *cobra.Command, pc *projectconfig.ProjectConfig) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("label") {
		if pc.Data.LabelColumn, err = flags.GetString("label"); err != nil {
			return err
		}
	}
	if flags.Changed("id-column") {
		if pc.Data.IDColumn, err = flags.GetString("id-column"); err != nil {
			return err
		}
	}
	if flags.Changed("batch-size") {
		if pc.Data.BatchSize, err = flags.GetInt("batch-size"); err != nil {
			return err
		}
	}
	if flags.Changed("seed") {
		seed, err := flags.GetInt64("seed")
		if err != nil {
			return err
		}
		pc.Data.Seed, pc.Search.Seed, pc.Ensemble.Seed = &seed, &seed, &seed
	}
	if flags.Changed("max-epochs") {
		if pc.Search.MaxEpochs, err = flags.GetInt("max-epochs"); err != nil {
			return err
		}
	}
	if flags.Changed("factor") {
		if pc.Search.Factor, err = flags.GetInt("factor"); err != nil {
			return err
		}
	}
	if flags.Changed("members") {
		if pc.Ensemble.Members, err = flags.GetInt("members"); err != nil {
			return err
		}
	}
	if pc.Data.BatchSize < 1 {
		return fmt.Errorf("--batch-size must be at least 1, got %d", pc.Data.BatchSize)
	}
	if pc.Ensemble.Members < 1 {
		return fmt.Errorf("--members must be at least 1, got %d", pc.Ensemble.Members)
	}
	return nil
}

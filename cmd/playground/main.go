package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes for different failure modes
const (
	ExitSuccess        = 0 // Command completed
	ExitBelowThreshold = 1 // Model evaluated below the requested ROC AUC
	ExitError          = 2 // Configuration, data or runtime error
)

// ThresholdError indicates that evaluation ran, but the model scored below
// the --min-auc threshold.
type ThresholdError struct {
	Message string
}

func (e *ThresholdError) Error() string {
	return e.Message
}

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var thresholdErr *ThresholdError
		if errors.As(err, &thresholdErr) {
			os.Exit(ExitBelowThreshold)
		}

		os.Exit(ExitError)
	}
}

// Package training turns a searched configuration into a persisted,
// evaluated ensemble.
package training

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spboyer/playground/internal/dataset"
	"github.com/spboyer/playground/internal/hyperparams"
	"github.com/spboyer/playground/internal/metrics"
	"github.com/spboyer/playground/internal/network"
	"github.com/spboyer/playground/internal/search"
)

// ErrEmptyCurve is returned by BestEpoch for a curve without a single number.
var ErrEmptyCurve = errors.New("training: validation curve is empty")

// BestEpoch returns the 1-indexed epoch of the first maximum of valAUC.
// NaN entries never win.
func BestEpoch(valAUC []float64) (int, error) {
	i := metrics.ArgMax(valAUC)
	if i < 0 {
		return 0, ErrEmptyCurve
	}
	return i + 1, nil
}

// RetrainOptions configures Retrain.
type RetrainOptions struct {
	MaxEpochs int
	Seed      int64
	Callbacks search.Callbacks
}

// Retrain fits a fresh model of cfg for up to MaxEpochs with the search
// callbacks and returns the epoch with the best validation AUC.
func Retrain(cfg hyperparams.Config, train, valid *dataset.Dataset, features dataset.FeatureSet, weights dataset.ClassWeights, opts RetrainOptions) (int, network.History, error) {
	m, err := network.Build(cfg, features, opts.Seed)
	if err != nil {
		return 0, network.History{}, err
	}
	hist, err := m.Fit(train, network.FitOptions{
		Epochs:       opts.MaxEpochs,
		Validation:   valid,
		ClassWeights: weights,
		Callbacks:    opts.Callbacks.Build(),
	})
	if err != nil {
		return 0, hist, fmt.Errorf("training: retrain: %w", err)
	}

	epoch, err := BestEpoch(hist.ValAUC())
	if err != nil {
		return 0, hist, err
	}
	slog.Info("Best epoch", "epoch", epoch, "val_auc", hist.ValAUC()[epoch-1], "epochs_run", len(hist.Epochs))
	return epoch, hist, nil
}

// MemberOptions configures TrainMembers.
type MemberOptions struct {
	N    int
	Seed int64
}

// TrainMembers trains N independent models of cfg for exactly epochs epochs
// without callbacks. Member i is initialized from Seed+i. The first failure
// aborts the remaining members.
func TrainMembers(cfg hyperparams.Config, epochs int, data *dataset.Dataset, features dataset.FeatureSet, weights dataset.ClassWeights, opts MemberOptions) ([]*network.Model, error) {
	if opts.N < 1 {
		return nil, fmt.Errorf("training: member count must be at least 1, got %d", opts.N)
	}
	members := make([]*network.Model, 0, opts.N)
	for i := 0; i < opts.N; i++ {
		seed := opts.Seed + int64(i)
		slog.Info("Training ensemble member", "member", i+1, "of", opts.N, "epochs", epochs, "seed", seed)

		m, err := network.Build(cfg, features, seed)
		if err != nil {
			return nil, err
		}
		if _, err := m.Fit(data, network.FitOptions{Epochs: epochs, ClassWeights: weights}); err != nil {
			return nil, fmt.Errorf("training: member %d: %w", i+1, err)
		}
		members = append(members, m)
	}
	return members, nil
}

package search

import (
	"math"

	"github.com/spboyer/playground/internal/dataset"
	"github.com/spboyer/playground/internal/network"
)

// FitTrial returns a TrialFunc that builds a network for each run, resumes it
// from the checkpoint, and fits it on train with validation on valid.
func FitTrial(train, valid *dataset.Dataset, features dataset.FeatureSet, weights dataset.ClassWeights, cb Callbacks) TrialFunc {
	return func(run TrialRun, resume *network.Weights) (TrialResult, error) {
		m, err := network.Build(run.Config, features, run.Seed)
		if err != nil {
			return TrialResult{}, err
		}
		if resume != nil {
			if err := m.Restore(resume); err != nil {
				return TrialResult{}, err
			}
		}

		ckpt := &network.BestCheckpoint{}
		hist, err := m.Fit(train, network.FitOptions{
			Epochs:       run.Epochs,
			InitialEpoch: run.InitialEpoch,
			Validation:   valid,
			ClassWeights: weights,
			Callbacks:    append([]network.Callback{ckpt}, cb.Build()...),
		})
		if err != nil {
			return TrialResult{}, err
		}

		score := math.NaN()
		for _, auc := range hist.ValAUC() {
			if better(auc, score) {
				score = auc
			}
		}
		w := ckpt.Weights()
		if w == nil {
			w = m.Snapshot()
		}
		return TrialResult{Score: score, Checkpoint: w}, nil
	}
}

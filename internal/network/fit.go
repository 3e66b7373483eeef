package network

import (
	"fmt"
	"log/slog"

	"github.com/spboyer/playground/internal/dataset"
	"github.com/spboyer/playground/internal/metrics"
)

// FitOptions controls one call to Fit.
type FitOptions struct {
	// Epochs is the index of the last epoch, not a count. Training runs
	// epochs InitialEpoch+1 through Epochs.
	Epochs       int
	InitialEpoch int

	// Validation is evaluated after every epoch when set.
	Validation *dataset.Dataset

	// ClassWeights scales each example's loss by the weight of its label.
	ClassWeights dataset.ClassWeights

	Callbacks []Callback
}

// EpochLogs holds the metrics of one completed epoch. Epoch is 1-indexed.
type EpochLogs struct {
	Epoch       int     `json:"epoch"`
	Loss        float64 `json:"loss"`
	Accuracy    float64 `json:"accuracy"`
	AUC         float64 `json:"auc"`
	ValLoss     float64 `json:"val_loss"`
	ValAccuracy float64 `json:"val_accuracy"`
	ValAUC      float64 `json:"val_auc"`
	LR          float64 `json:"lr"`
}

// History is the per-epoch record of a Fit call.
type History struct {
	Epochs []EpochLogs `json:"epochs"`
}

// ValAUC returns the validation AUC curve.
func (h History) ValAUC() []float64 {
	out := make([]float64, len(h.Epochs))
	for i, e := range h.Epochs {
		out[i] = e.ValAUC
	}
	return out
}

// Fit trains the model on train. Each epoch is one full pass of shuffled
// batches followed by validation and the callbacks. A callback may stop
// training early; the history then ends at that epoch.
func (m *Model) Fit(train *dataset.Dataset, opts FitOptions) (History, error) {
	if opts.Epochs <= opts.InitialEpoch {
		return History{}, fmt.Errorf("network: epochs (%d) must be greater than initial epoch (%d)", opts.Epochs, opts.InitialEpoch)
	}
	if train == nil || train.Len() == 0 {
		return History{}, fmt.Errorf("network: training dataset has no examples")
	}

	for _, cb := range opts.Callbacks {
		cb.OnTrainBegin(m)
	}

	var hist History
	for epoch := opts.InitialEpoch + 1; epoch <= opts.Epochs; epoch++ {
		logs := EpochLogs{Epoch: epoch, LR: m.LearningRate()}

		var probs, labels []float64
		lossSum := 0.0
		for _, b := range train.Batches() {
			loss, p, err := m.trainStep(b, opts.ClassWeights)
			if err != nil {
				return hist, fmt.Errorf("network: epoch %d: %w", epoch, err)
			}
			lossSum += loss * float64(b.Len())
			probs = append(probs, p...)
			labels = append(labels, b.Labels...)
		}
		logs.Loss = lossSum / float64(len(labels))
		logs.Accuracy = metrics.Accuracy(probs, labels)
		logs.AUC = metrics.ROCAUC(probs, labels)

		if opts.Validation != nil {
			ev, err := m.Evaluate(opts.Validation)
			if err != nil {
				return hist, fmt.Errorf("network: epoch %d validation: %w", epoch, err)
			}
			logs.ValLoss = ev.Loss
			logs.ValAccuracy = ev.Accuracy
			logs.ValAUC = ev.AUC
		}

		slog.Debug("epoch complete",
			"epoch", epoch,
			"loss", logs.Loss,
			"auc", logs.AUC,
			"val_loss", logs.ValLoss,
			"val_auc", logs.ValAUC,
			"lr", logs.LR)

		hist.Epochs = append(hist.Epochs, logs)

		stop := false
		for _, cb := range opts.Callbacks {
			if cb.OnEpochEnd(m, logs) {
				stop = true
			}
		}
		if stop {
			slog.Debug("training stopped early", "epoch", epoch)
			break
		}
	}
	return hist, nil
}

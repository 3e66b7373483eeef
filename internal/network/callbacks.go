package network

import (
	"log/slog"
	"math"
)

// Callback observes training. OnEpochEnd returns true to stop training.
type Callback interface {
	OnTrainBegin(m *Model)
	OnEpochEnd(m *Model, logs EpochLogs) (stop bool)
}

// ReduceLROnPlateau multiplies the learning rate by Factor once val_loss has
// not improved by more than MinDelta for Patience epochs.
type ReduceLROnPlateau struct {
	Factor   float64
	Patience int
	MinDelta float64
	MinLR    float64

	best float64
	wait int
}

// NewReduceLROnPlateau returns a plateau scheduler with the given settings.
func NewReduceLROnPlateau(factor float64, patience int, minDelta float64) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{Factor: factor, Patience: patience, MinDelta: minDelta}
}

func (r *ReduceLROnPlateau) OnTrainBegin(*Model) {
	r.best = math.Inf(1)
	r.wait = 0
}

func (r *ReduceLROnPlateau) OnEpochEnd(m *Model, logs EpochLogs) bool {
	current := logs.ValLoss
	if math.IsNaN(current) {
		return false
	}
	if current < r.best-r.MinDelta {
		r.best = current
		r.wait = 0
		return false
	}
	r.wait++
	if r.wait >= r.Patience {
		old := m.LearningRate()
		lr := math.Max(old*r.Factor, r.MinLR)
		if lr < old {
			m.SetLearningRate(lr)
			slog.Debug("reducing learning rate", "epoch", logs.Epoch, "from", old, "to", lr)
		}
		r.wait = 0
	}
	return false
}

// EarlyStopping stops training once val_loss has not improved for Patience
// epochs. With RestoreBest the weights of the best epoch are put back when
// it stops.
type EarlyStopping struct {
	Patience    int
	RestoreBest bool

	best    float64
	wait    int
	weights *Weights
}

// NewEarlyStopping returns an early stopper that restores the best weights.
func NewEarlyStopping(patience int) *EarlyStopping {
	return &EarlyStopping{Patience: patience, RestoreBest: true}
}

func (e *EarlyStopping) OnTrainBegin(*Model) {
	e.best = math.Inf(1)
	e.wait = 0
	e.weights = nil
}

func (e *EarlyStopping) OnEpochEnd(m *Model, logs EpochLogs) bool {
	current := logs.ValLoss
	if math.IsNaN(current) {
		return false
	}
	e.wait++
	if current < e.best {
		e.best = current
		e.wait = 0
		if e.RestoreBest {
			e.weights = m.Snapshot()
		}
	}
	if e.wait >= e.Patience {
		if e.RestoreBest && e.weights != nil {
			if err := m.Restore(e.weights); err != nil {
				slog.Warn("restoring best weights failed", "error", err)
			}
		}
		return true
	}
	return false
}

// BestCheckpoint keeps a snapshot of the weights at the epoch with the highest
// validation AUC seen so far.
type BestCheckpoint struct {
	best    float64
	weights *Weights
}

func (c *BestCheckpoint) OnTrainBegin(*Model) {
	c.best = math.Inf(-1)
	c.weights = nil
}

func (c *BestCheckpoint) OnEpochEnd(m *Model, logs EpochLogs) bool {
	if logs.ValAUC > c.best {
		c.best = logs.ValAUC
		c.weights = m.Snapshot()
	}
	return false
}

// Weights returns the best snapshot, or nil if no epoch had a finite AUC.
func (c *BestCheckpoint) Weights() *Weights {
	return c.weights
}

package network

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spboyer/playground/internal/dataset"
	"github.com/spboyer/playground/internal/hyperparams"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// separableCSV writes n rows whose label is 1 when a+b > 0.
func separableCSV(t *testing.T, n int, seed int64) string {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	var b strings.Builder
	b.WriteString("id,a,b,classification_target\n")
	for i := 0; i < n; i++ {
		x, y := rng.Float64()*2-1, rng.Float64()*2-1
		label := 0
		if x+y > 0 {
			label = 1
		}
		fmt.Fprintf(&b, "%d,%.4f,%.4f,%d\n", i, x, y, label)
	}
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func openData(t *testing.T, path string, shuffle bool) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Open([]string{path}, dataset.Options{
		BatchSize:         32,
		LabelColumn:       dataset.DefaultLabelColumn,
		Shuffle:           shuffle,
		ShuffleBufferSize: 100,
		Seed:              7,
	})
	require.NoError(t, err)
	return ds
}

func testFeatures(t *testing.T) dataset.FeatureSet {
	t.Helper()
	fs, err := dataset.FeaturesOf("a", "b")
	require.NoError(t, err)
	return fs
}

func baseConfig() hyperparams.Config {
	return hyperparams.Config{
		Layers:          1,
		FirstLayerUnits: 32,
		Dropout:         0,
		Activation:      hyperparams.ReLU,
		Regularization:  hyperparams.NoRegularization,
		LR:              1e-2,
	}
}

func TestBuild_Widths(t *testing.T) {
	cfg := baseConfig()
	cfg.Layers = 3
	m, err := Build(cfg, testFeatures(t), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{32, 16, 8, 1}, m.Widths())
	assert.Equal(t, cfg, m.Config())
	assert.Equal(t, 1e-2, m.LearningRate())
}

func TestBuild_Errors(t *testing.T) {
	cfg := baseConfig()
	cfg.Activation = "softplus"
	_, err := Build(cfg, testFeatures(t), 1)
	assert.ErrorIs(t, err, hyperparams.ErrOutOfDomain)

	_, err = Build(baseConfig(), dataset.FeatureSet{}, 1)
	assert.ErrorIs(t, err, dataset.ErrEmptyFeatureSet)
}

func TestPredict_ProbabilitiesInRange(t *testing.T) {
	ds := openData(t, separableCSV(t, 50, 1), false)
	batch := ds.Batches()[0]

	activations := []hyperparams.Activation{
		hyperparams.ReLU, hyperparams.Tanh, hyperparams.Sigmoid, hyperparams.ELU, hyperparams.SELU,
	}
	regs := []hyperparams.Regularization{
		hyperparams.L1, hyperparams.L2, hyperparams.L1L2, hyperparams.NoRegularization,
	}
	for _, act := range activations {
		for _, reg := range regs {
			t.Run(string(act)+"/"+string(reg), func(t *testing.T) {
				cfg := baseConfig()
				cfg.Layers = 2
				cfg.Dropout = 0.3
				cfg.Activation = act
				cfg.Regularization = reg
				m, err := Build(cfg, testFeatures(t), 3)
				require.NoError(t, err)

				_, err = m.Fit(ds, FitOptions{Epochs: 1})
				require.NoError(t, err)

				probs, err := m.Predict(batch)
				require.NoError(t, err)
				require.Len(t, probs, batch.Len())
				for _, p := range probs {
					assert.GreaterOrEqual(t, p, 0.0)
					assert.LessOrEqual(t, p, 1.0)
				}
			})
		}
	}
}

func TestPredict_MissingFeature(t *testing.T) {
	m, err := Build(baseConfig(), testFeatures(t), 1)
	require.NoError(t, err)
	_, err = m.Predict(&dataset.Batch{
		Features: map[string][]float64{"a": {1}},
		Labels:   []float64{1},
	})
	assert.Error(t, err)
}

func TestFit_Learns(t *testing.T) {
	train := openData(t, separableCSV(t, 400, 1), true)
	valid := openData(t, separableCSV(t, 200, 2), false)

	m, err := Build(baseConfig(), testFeatures(t), 5)
	require.NoError(t, err)

	hist, err := m.Fit(train, FitOptions{Epochs: 20, Validation: valid})
	require.NoError(t, err)
	require.Len(t, hist.Epochs, 20)

	first, last := hist.Epochs[0], hist.Epochs[len(hist.Epochs)-1]
	assert.Equal(t, 1, first.Epoch)
	assert.Equal(t, 20, last.Epoch)
	assert.Less(t, last.Loss, first.Loss)
	assert.Greater(t, last.ValAUC, 0.9)
	assert.Len(t, hist.ValAUC(), 20)
}

func TestFit_InitialEpoch(t *testing.T) {
	train := openData(t, separableCSV(t, 64, 1), true)
	m, err := Build(baseConfig(), testFeatures(t), 5)
	require.NoError(t, err)

	hist, err := m.Fit(train, FitOptions{Epochs: 4, InitialEpoch: 2})
	require.NoError(t, err)
	require.Len(t, hist.Epochs, 2)
	assert.Equal(t, 3, hist.Epochs[0].Epoch)
	assert.Equal(t, 4, hist.Epochs[1].Epoch)

	_, err = m.Fit(train, FitOptions{Epochs: 2, InitialEpoch: 2})
	assert.Error(t, err)
}

func TestFit_Deterministic(t *testing.T) {
	path := separableCSV(t, 128, 1)
	cfg := baseConfig()
	cfg.Dropout = 0.2

	run := func() History {
		m, err := Build(cfg, testFeatures(t), 11)
		require.NoError(t, err)
		hist, err := m.Fit(openData(t, path, true), FitOptions{Epochs: 3})
		require.NoError(t, err)
		return hist
	}
	assert.Equal(t, run(), run())
}

func TestFit_ClassWeightsChangeLoss(t *testing.T) {
	path := separableCSV(t, 64, 1)
	run := func(w dataset.ClassWeights) float64 {
		m, err := Build(baseConfig(), testFeatures(t), 11)
		require.NoError(t, err)
		hist, err := m.Fit(openData(t, path, false), FitOptions{Epochs: 1, ClassWeights: w})
		require.NoError(t, err)
		return hist.Epochs[0].Loss
	}
	assert.NotEqual(t, run(nil), run(dataset.ClassWeights{0: 1, 1: 3}))
}

func TestReduceLROnPlateau(t *testing.T) {
	m, err := Build(baseConfig(), testFeatures(t), 1)
	require.NoError(t, err)

	cb := NewReduceLROnPlateau(0.1, 1, 1e-4)
	cb.OnTrainBegin(m)

	assert.False(t, cb.OnEpochEnd(m, EpochLogs{Epoch: 1, ValLoss: 1.0}))
	assert.Equal(t, 1e-2, m.LearningRate())

	// improvement smaller than min delta counts as a plateau
	cb.OnEpochEnd(m, EpochLogs{Epoch: 2, ValLoss: 1.0 - 1e-5})
	assert.InDelta(t, 1e-3, m.LearningRate(), 1e-15)

	cb.OnEpochEnd(m, EpochLogs{Epoch: 3, ValLoss: 0.5})
	assert.InDelta(t, 1e-3, m.LearningRate(), 1e-15)
}

func TestEarlyStopping_RestoresBest(t *testing.T) {
	m, err := Build(baseConfig(), testFeatures(t), 1)
	require.NoError(t, err)

	cb := NewEarlyStopping(3)
	cb.OnTrainBegin(m)

	assert.False(t, cb.OnEpochEnd(m, EpochLogs{Epoch: 1, ValLoss: 1.0}))
	assert.False(t, cb.OnEpochEnd(m, EpochLogs{Epoch: 2, ValLoss: 0.9}))
	best := m.Snapshot()

	m.output.b[0] = 42
	assert.False(t, cb.OnEpochEnd(m, EpochLogs{Epoch: 3, ValLoss: 0.95}))
	assert.False(t, cb.OnEpochEnd(m, EpochLogs{Epoch: 4, ValLoss: 0.96}))
	assert.True(t, cb.OnEpochEnd(m, EpochLogs{Epoch: 5, ValLoss: 0.97}))

	assert.Equal(t, best, m.Snapshot())
}

func TestFit_CallbackStops(t *testing.T) {
	train := openData(t, separableCSV(t, 64, 1), true)
	valid := openData(t, separableCSV(t, 32, 2), false)

	m, err := Build(baseConfig(), testFeatures(t), 1)
	require.NoError(t, err)

	hist, err := m.Fit(train, FitOptions{Epochs: 5, Validation: valid, Callbacks: []Callback{stopAt{epoch: 2}}})
	require.NoError(t, err)
	assert.Len(t, hist.Epochs, 2)
}

type stopAt struct{ epoch int }

func (stopAt) OnTrainBegin(*Model) {}

func (s stopAt) OnEpochEnd(_ *Model, logs EpochLogs) bool { return logs.Epoch >= s.epoch }

func TestBestCheckpoint(t *testing.T) {
	m, err := Build(baseConfig(), testFeatures(t), 1)
	require.NoError(t, err)

	cb := &BestCheckpoint{}
	cb.OnTrainBegin(m)
	assert.Nil(t, cb.Weights())

	cb.OnEpochEnd(m, EpochLogs{Epoch: 1, ValAUC: math.NaN()})
	assert.Nil(t, cb.Weights())

	cb.OnEpochEnd(m, EpochLogs{Epoch: 2, ValAUC: 0.8})
	want := m.Snapshot()
	m.output.b[0] = 7
	cb.OnEpochEnd(m, EpochLogs{Epoch: 3, ValAUC: 0.7})
	assert.Equal(t, want, cb.Weights())
}

func TestWeights_RoundTrip(t *testing.T) {
	ds := openData(t, separableCSV(t, 40, 1), false)
	cfg := baseConfig()
	cfg.Layers = 2

	src, err := Build(cfg, testFeatures(t), 1)
	require.NoError(t, err)
	dst, err := Build(cfg, testFeatures(t), 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, EncodeWeights(&buf, src.Snapshot()))
	w, err := DecodeWeights(&buf)
	require.NoError(t, err)
	require.NoError(t, dst.Restore(w))

	batch := ds.Batches()[0]
	want, err := src.Predict(batch)
	require.NoError(t, err)
	got, err := dst.Predict(batch)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	path := filepath.Join(t.TempDir(), "w.zst")
	require.NoError(t, SaveWeights(path, w))
	loaded, err := LoadWeights(path)
	require.NoError(t, err)
	assert.Equal(t, w, loaded)
}

func TestRestore_ShapeMismatch(t *testing.T) {
	small, err := Build(baseConfig(), testFeatures(t), 1)
	require.NoError(t, err)
	cfg := baseConfig()
	cfg.Layers = 2
	big, err := Build(cfg, testFeatures(t), 1)
	require.NoError(t, err)

	assert.Error(t, small.Restore(big.Snapshot()))
}

func TestPredictDataset_KeepsOrder(t *testing.T) {
	ds := openData(t, separableCSV(t, 100, 1), false)
	m, err := Build(baseConfig(), testFeatures(t), 1)
	require.NoError(t, err)

	probs, labels, err := PredictDataset(m, ds)
	require.NoError(t, err)
	assert.Equal(t, dataset.GroundTruth(ds), labels)

	var sequential []float64
	for _, b := range ds.Batches() {
		p, err := m.Predict(b)
		require.NoError(t, err)
		sequential = append(sequential, p...)
	}
	assert.Equal(t, sequential, probs)

	ev, err := m.Evaluate(ds)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, ev.AUC, 0.0)
	assert.LessOrEqual(t, ev.AUC, 1.0)
}

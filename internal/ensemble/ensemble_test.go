package ensemble

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spboyer/playground/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func features(t *testing.T, names ...string) dataset.FeatureSet {
	t.Helper()
	fs, err := dataset.FeaturesOf(names...)
	require.NoError(t, err)
	return fs
}

func constantMember(ctrl *gomock.Controller, fs dataset.FeatureSet, p float64) *MockMember {
	m := NewMockMember(ctrl)
	m.EXPECT().Features().Return(fs).AnyTimes()
	m.EXPECT().Predict(gomock.Any()).DoAndReturn(func(b *dataset.Batch) ([]float64, error) {
		out := make([]float64, b.Len())
		for i := range out {
			out[i] = p
		}
		return out, nil
	}).AnyTimes()
	return m
}

func TestPredict_Averages(t *testing.T) {
	ctrl := gomock.NewController(t)
	fs := features(t, "a", "b")

	model, err := Wrap(fs, []Member{
		constantMember(ctrl, fs, 0.2),
		constantMember(ctrl, fs, 0.4),
		constantMember(ctrl, fs, 0.6),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, model.Len())

	batch := &dataset.Batch{
		Features: map[string][]float64{"a": {1, 2}, "b": {3, 4}},
		Labels:   []float64{0, 1},
	}
	got, err := model.Predict(batch)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, p := range got {
		assert.InDelta(t, 0.4, p, 1e-12)
	}
}

func TestPredict_PerRowMean(t *testing.T) {
	ctrl := gomock.NewController(t)
	fs := features(t, "a")
	batch := &dataset.Batch{Features: map[string][]float64{"a": {0, 0}}, Labels: []float64{0, 1}}

	m1 := NewMockMember(ctrl)
	m1.EXPECT().Features().Return(fs)
	m1.EXPECT().Predict(batch).Return([]float64{0.1, 0.9}, nil)
	m2 := NewMockMember(ctrl)
	m2.EXPECT().Features().Return(fs)
	m2.EXPECT().Predict(batch).Return([]float64{0.3, 0.5}, nil)

	model, err := Wrap(fs, []Member{m1, m2})
	require.NoError(t, err)

	got, err := model.Predict(batch)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.2, 0.7}, got, 1e-12)
}

func TestPredict_MemberError(t *testing.T) {
	ctrl := gomock.NewController(t)
	fs := features(t, "a")

	boom := errors.New("boom")
	m1 := NewMockMember(ctrl)
	m1.EXPECT().Features().Return(fs)
	m1.EXPECT().Predict(gomock.Any()).Return(nil, boom)

	model, err := Wrap(fs, []Member{m1})
	require.NoError(t, err)

	_, err = model.Predict(&dataset.Batch{Features: map[string][]float64{"a": {1}}, Labels: []float64{1}})
	assert.ErrorIs(t, err, boom)
}

func TestPredict_LengthMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	fs := features(t, "a")

	m1 := NewMockMember(ctrl)
	m1.EXPECT().Features().Return(fs)
	m1.EXPECT().Predict(gomock.Any()).Return([]float64{0.1, 0.2}, nil)
	m2 := NewMockMember(ctrl)
	m2.EXPECT().Features().Return(fs)
	m2.EXPECT().Predict(gomock.Any()).Return([]float64{0.1}, nil)

	model, err := Wrap(fs, []Member{m1, m2})
	require.NoError(t, err)

	_, err = model.Predict(&dataset.Batch{Features: map[string][]float64{"a": {1, 2}}, Labels: []float64{0, 1}})
	assert.ErrorContains(t, err, "returned 1 predictions")
}

func TestWrap_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	fs := features(t, "a", "b")

	_, err := Wrap(fs, nil)
	assert.ErrorContains(t, err, "no members")

	other := NewMockMember(ctrl)
	other.EXPECT().Features().Return(features(t, "a", "c")).AnyTimes()
	_, err = Wrap(fs, []Member{constantMember(ctrl, fs, 0.5), other})
	assert.ErrorIs(t, err, ErrFeatureMismatch)
}

func TestEvaluate(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,a,classification_target\n")
	for i := 0; i < 10; i++ {
		fmt.Fprintf(&b, "%d,%d,%d\n", i, i, i%2)
	}
	path := filepath.Join(t.TempDir(), "eval.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	ds, err := dataset.Open([]string{path}, dataset.Options{BatchSize: 4, LabelColumn: dataset.DefaultLabelColumn})
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	fs := features(t, "a")
	member := NewMockMember(ctrl)
	member.EXPECT().Features().Return(fs)
	// predicts the label perfectly from the parity of a
	member.EXPECT().Predict(gomock.Any()).DoAndReturn(func(b *dataset.Batch) ([]float64, error) {
		out := make([]float64, b.Len())
		for i, v := range b.Features["a"] {
			out[i] = 0.1
			if int(v)%2 == 1 {
				out[i] = 0.9
			}
		}
		return out, nil
	}).Times(3)

	model, err := Wrap(fs, []Member{member})
	require.NoError(t, err)

	ev, err := model.Evaluate(ds)
	require.NoError(t, err)
	assert.Equal(t, 1.0, ev.Accuracy)
	assert.InDelta(t, 1.0, ev.AUC, 1e-12)
	assert.Greater(t, ev.Loss, 0.0)
}

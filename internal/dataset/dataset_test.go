package dataset

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialCSV(n int) string {
	var b strings.Builder
	b.WriteString("id,x,y,classification_target\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,%d,%.2f,%d\n", i, i, float64(i)/10, i%2)
	}
	return b.String()
}

func openOne(t *testing.T, content string, opts Options) *Dataset {
	t.Helper()
	path := writeCSV(t, t.TempDir(), "data.csv", content)
	ds, err := Open([]string{path}, opts)
	require.NoError(t, err)
	return ds
}

func TestOpen_SchemaExcludesLabel(t *testing.T) {
	ds := openOne(t, sequentialCSV(5), Options{BatchSize: 2, LabelColumn: DefaultLabelColumn})

	assert.Equal(t, Schema{
		{Name: "id", Type: Int},
		{Name: "x", Type: Int},
		{Name: "y", Type: Float},
	}, ds.Schema())
	assert.Equal(t, 5, ds.Len())
}

func TestOpen_Errors(t *testing.T) {
	tests := []struct {
		name    string
		csv     string
		opts    Options
		wantErr string
	}{
		{
			name:    "missing label",
			csv:     "id,x\n1,2\n",
			opts:    Options{BatchSize: 1, LabelColumn: DefaultLabelColumn},
			wantErr: "no label column",
		},
		{
			name:    "non numeric feature",
			csv:     "id,x,classification_target\n1,abc,0\n",
			opts:    Options{BatchSize: 1, LabelColumn: DefaultLabelColumn},
			wantErr: `"abc" is not numeric`,
		},
		{
			name:    "non binary label",
			csv:     "id,x,classification_target\n1,2,3\n",
			opts:    Options{BatchSize: 1, LabelColumn: DefaultLabelColumn},
			wantErr: "is not 0 or 1",
		},
		{
			name:    "zero batch size",
			csv:     "id,x,classification_target\n1,2,0\n",
			opts:    Options{LabelColumn: DefaultLabelColumn},
			wantErr: "batch size must be positive",
		},
		{
			name:    "shuffle without buffer",
			csv:     "id,x,classification_target\n1,2,0\n",
			opts:    Options{BatchSize: 1, LabelColumn: DefaultLabelColumn, Shuffle: true},
			wantErr: "shuffle buffer size must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCSV(t, t.TempDir(), "data.csv", tt.csv)
			_, err := Open([]string{path}, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOpen_MultipleFilesRequireSameColumns(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "id,x,classification_target\n1,2,0\n")
	b := writeCSV(t, dir, "b.csv", "id,z,classification_target\n1,2,0\n")

	_, err := Open([]string{a, b}, Options{BatchSize: 4, LabelColumn: DefaultLabelColumn})
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func TestOpen_MultipleFilesReordersColumns(t *testing.T) {
	dir := t.TempDir()
	a := writeCSV(t, dir, "a.csv", "id,x,classification_target\n1,2,0\n")
	b := writeCSV(t, dir, "b.csv", "classification_target,x,id\n1,5,2\n")

	ds, err := Open([]string{a, b}, Options{BatchSize: 4, LabelColumn: DefaultLabelColumn})
	require.NoError(t, err)

	batches := ds.Batches()
	require.Len(t, batches, 1)
	assert.Equal(t, []float64{2, 5}, batches[0].Features["x"])
	assert.Equal(t, []float64{1, 2}, batches[0].Features["id"])
	assert.Equal(t, []float64{0, 1}, batches[0].Labels)
}

func TestBatches_UnshuffledKeepsFileOrder(t *testing.T) {
	ds := openOne(t, sequentialCSV(5), Options{BatchSize: 2, LabelColumn: DefaultLabelColumn})

	batches := ds.Batches()
	require.Len(t, batches, 3)
	assert.Equal(t, []float64{0, 1}, batches[0].Features["x"])
	assert.Equal(t, []float64{2, 3}, batches[1].Features["x"])
	assert.Equal(t, []float64{4}, batches[2].Features["x"])
	assert.Equal(t, []float64{0, 1, 0, 1, 0}, GroundTruth(ds))

	// a second pass is identical
	assert.Equal(t, batches, ds.Batches())
}

func flatten(batches []*Batch, name string) []float64 {
	var out []float64
	for _, b := range batches {
		out = append(out, b.Features[name]...)
	}
	return out
}

func TestBatches_ShuffleIsSeededAndComplete(t *testing.T) {
	opts := Options{BatchSize: 8, LabelColumn: DefaultLabelColumn, Shuffle: true, ShuffleBufferSize: 10, Seed: DefaultSeed}
	content := sequentialCSV(50)

	first := openOne(t, content, opts)
	second := openOne(t, content, opts)

	pass1 := flatten(first.Batches(), "x")
	assert.Equal(t, pass1, flatten(second.Batches(), "x"), "same seed must give same order")
	assert.ElementsMatch(t, flatten(openOne(t, content, Options{BatchSize: 8, LabelColumn: DefaultLabelColumn}).Batches(), "x"), pass1)

	pass2 := flatten(first.Batches(), "x")
	assert.NotEqual(t, pass1, pass2, "each pass reshuffles")
	assert.Equal(t, pass2, flatten(second.Batches(), "x"))
}

func TestBatches_LabelsFollowRows(t *testing.T) {
	ds := openOne(t, sequentialCSV(30), Options{BatchSize: 7, LabelColumn: DefaultLabelColumn, Shuffle: true, ShuffleBufferSize: 30, Seed: 3})

	for _, b := range ds.Batches() {
		for i, x := range b.Features["x"] {
			assert.Equal(t, float64(int(x)%2), b.Labels[i])
		}
	}
}

func TestFeatureSet(t *testing.T) {
	schema := Schema{{Name: "id", Type: Int}, {Name: "b", Type: Float}, {Name: "a", Type: Float}}

	fs, err := NewFeatureSet(schema, "id", DefaultLabelColumn)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, fs.Names())
	assert.Equal(t, 2, fs.Len())

	other, err := FeaturesOf("b", "a")
	require.NoError(t, err)
	assert.True(t, fs.Equal(other))

	_, err = NewFeatureSet(Schema{{Name: "id", Type: Int}}, "id")
	require.ErrorIs(t, err, ErrEmptyFeatureSet)

	_, err = FeaturesOf("a", "a")
	require.Error(t, err)
}

func TestFeatureSet_Matrix(t *testing.T) {
	fs, err := FeaturesOf("b", "a")
	require.NoError(t, err)

	x, err := fs.Matrix(&Batch{
		Features: map[string][]float64{"a": {1, 2}, "b": {3, 4}, "id": {9, 9}},
		Labels:   []float64{0, 1},
	})
	require.NoError(t, err)
	r, c := x.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, []float64{1, 3}, x.RawRowView(0))
	assert.Equal(t, []float64{2, 4}, x.RawRowView(1))

	_, err = fs.Matrix(&Batch{Features: map[string][]float64{"a": {1}}, Labels: []float64{0}})
	require.ErrorContains(t, err, `missing feature "b"`)
}

func TestClassWeights_PositiveMinorityIsUpweighted(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,x,classification_target\n")
	for i := 0; i < 100; i++ {
		label := 0
		if i < 20 {
			label = 1
		}
		fmt.Fprintf(&b, "%d,%d,%d\n", i, i, label)
	}
	path := writeCSV(t, t.TempDir(), "train.csv", b.String())

	weights, err := ComputeClassWeights(path, DefaultLabelColumn)
	require.NoError(t, err)

	assert.InDelta(t, 0.625, weights.Weight(0), 1e-12)
	assert.InDelta(t, 2.5, weights.Weight(1), 1e-12)
	assert.Greater(t, weights.Weight(1), weights.Weight(0))
	assert.Equal(t, []float64{0, 1}, weights.Labels())
	assert.Equal(t, 1.0, ClassWeights{}.Weight(1))
}

func TestClassWeights_Errors(t *testing.T) {
	_, err := BalancedClassWeights(nil)
	require.Error(t, err)

	path := writeCSV(t, t.TempDir(), "train.csv", "id,x\n1,2\n")
	_, err = ComputeClassWeights(path, DefaultLabelColumn)
	require.ErrorContains(t, err, "no label column")
}

package dataset

import (
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// ErrEmptyFeatureSet is returned when no feature column is left after exclusions.
var ErrEmptyFeatureSet = errors.New("dataset: empty feature set")

// FeatureSet is the immutable, sorted set of scalar input names every model is built from.
type FeatureSet struct {
	names []string
}

// NewFeatureSet derives the feature set from a schema, dropping the excluded columns.
func NewFeatureSet(schema Schema, exclude ...string) (FeatureSet, error) {
	var names []string
	for _, c := range schema {
		if slices.Contains(exclude, c.Name) {
			continue
		}
		names = append(names, c.Name)
	}
	return FeaturesOf(names...)
}

// FeaturesOf builds a feature set from explicit names.
func FeaturesOf(names ...string) (FeatureSet, error) {
	if len(names) == 0 {
		return FeatureSet{}, ErrEmptyFeatureSet
	}
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	if len(slices.Compact(slices.Clone(sorted))) != len(sorted) {
		return FeatureSet{}, fmt.Errorf("dataset: duplicate feature names in %v", names)
	}
	return FeatureSet{names: sorted}, nil
}

// Names returns a copy of the feature names in input order.
func (f FeatureSet) Names() []string {
	return slices.Clone(f.names)
}

// Len returns the number of features.
func (f FeatureSet) Len() int {
	return len(f.names)
}

// Equal reports whether both sets hold the same names.
func (f FeatureSet) Equal(o FeatureSet) bool {
	return slices.Equal(f.names, o.names)
}

// Matrix stacks the batch features into an examples x features matrix.
func (f FeatureSet) Matrix(b *Batch) (*mat.Dense, error) {
	n := b.Len()
	if n == 0 {
		return nil, errors.New("dataset: empty batch")
	}
	x := mat.NewDense(n, len(f.names), nil)
	for j, name := range f.names {
		values, ok := b.Features[name]
		if !ok {
			return nil, fmt.Errorf("dataset: batch is missing feature %q", name)
		}
		if len(values) != n {
			return nil, fmt.Errorf("dataset: feature %q has %d values, expected %d", name, len(values), n)
		}
		for i, v := range values {
			x.Set(i, j, v)
		}
	}
	return x, nil
}

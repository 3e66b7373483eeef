package dataset

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// ClassWeights maps a label value to the loss weight applied to its examples.
type ClassWeights map[float64]float64

// Weight returns the weight of label, or 1 when the label has no entry.
func (c ClassWeights) Weight(label float64) float64 {
	if w, ok := c[label]; ok {
		return w
	}
	return 1
}

// Labels returns the labels with a weight, ascending.
func (c ClassWeights) Labels() []float64 {
	return slices.Sorted(maps.Keys(c))
}

// ComputeClassWeights reads the label column of a training file and returns
// balanced weights n_samples / (n_classes * n_c).
func ComputeClassWeights(path, labelColumn string) (ClassWeights, error) {
	table, err := LoadCSV(path)
	if err != nil {
		return nil, err
	}
	col := table.Column(labelColumn)
	if col < 0 {
		return nil, fmt.Errorf("dataset: %s has no label column %q", path, labelColumn)
	}

	labels := make([]float64, 0, table.Len())
	for i, record := range table.Records {
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			return nil, fmt.Errorf("dataset: %s row %d: label %q is not numeric", path, i+2, record[col])
		}
		labels = append(labels, v)
	}
	return BalancedClassWeights(labels)
}

// BalancedClassWeights computes balanced weights from raw labels.
func BalancedClassWeights(labels []float64) (ClassWeights, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("dataset: cannot compute class weights without labels")
	}
	counts := make(map[float64]int)
	for _, l := range labels {
		counts[l]++
	}
	weights := make(ClassWeights, len(counts))
	n, k := float64(len(labels)), float64(len(counts))
	for label, c := range counts {
		weights[label] = n / (k * float64(c))
	}
	return weights, nil
}

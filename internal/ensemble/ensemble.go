// Package ensemble composes trained models into one predictor that averages
// their outputs.
package ensemble

import (
	"errors"
	"fmt"

	"github.com/spboyer/playground/internal/dataset"
	"github.com/spboyer/playground/internal/metrics"
	"github.com/spboyer/playground/internal/network"
)

//go:generate go tool mockgen -source=ensemble.go -destination=member_mock_test.go -package=ensemble

// ErrFeatureMismatch is returned when a member accepts different inputs than the ensemble.
var ErrFeatureMismatch = errors.New("ensemble: member feature set does not match")

// Member is a trained model the ensemble averages over.
type Member interface {
	Features() dataset.FeatureSet
	Predict(b *dataset.Batch) ([]float64, error)
}

// Model averages the outputs of its members. Members are treated as frozen
// once wrapped; the ensemble never mutates them.
type Model struct {
	features dataset.FeatureSet
	members  []Member
}

// Wrap builds an ensemble over members. Every member must accept exactly features.
func Wrap(features dataset.FeatureSet, members []Member) (*Model, error) {
	if len(members) == 0 {
		return nil, errors.New("ensemble: no members")
	}
	for i, m := range members {
		if !m.Features().Equal(features) {
			return nil, fmt.Errorf("%w: member %d has %v, want %v", ErrFeatureMismatch, i, m.Features().Names(), features.Names())
		}
	}
	return &Model{
		features: features,
		members:  append([]Member(nil), members...),
	}, nil
}

// Features returns the inputs the ensemble accepts.
func (m *Model) Features() dataset.FeatureSet {
	return m.features
}

// Members returns the wrapped members in insertion order.
func (m *Model) Members() []Member {
	return append([]Member(nil), m.members...)
}

// Len returns the number of members.
func (m *Model) Len() int {
	return len(m.members)
}

// Predict returns the per-example mean of the members' probabilities.
func (m *Model) Predict(b *dataset.Batch) ([]float64, error) {
	var sum []float64
	for i, member := range m.members {
		probs, err := member.Predict(b)
		if err != nil {
			return nil, fmt.Errorf("ensemble: member %d: %w", i, err)
		}
		if sum == nil {
			sum = make([]float64, len(probs))
		}
		if len(probs) != len(sum) {
			return nil, fmt.Errorf("ensemble: member %d returned %d predictions, want %d", i, len(probs), len(sum))
		}
		for j, p := range probs {
			sum[j] += p
		}
	}
	n := float64(len(m.members))
	for j := range sum {
		sum[j] /= n
	}
	return sum, nil
}

// Evaluate scores the ensemble on one pass of ds with binary cross-entropy,
// accuracy and AUC.
func (m *Model) Evaluate(ds *dataset.Dataset) (metrics.Classification, error) {
	probs, labels, err := network.PredictDataset(m, ds)
	if err != nil {
		return metrics.Classification{}, err
	}
	return metrics.Classify(probs, labels), nil
}

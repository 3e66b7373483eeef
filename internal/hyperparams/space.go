// Package hyperparams declares the searchable hyperparameter space of the
// feed-forward classifier and the immutable configurations sampled from it.
package hyperparams

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
)

// IntRange is a closed integer range [min,max].
type IntRange [2]int

func (r IntRange) sample(rng *rand.Rand) int {
	return r[0] + rng.Intn(r[1]-r[0]+1)
}

func (r IntRange) contains(v int) bool {
	return v >= r[0] && v <= r[1]
}

// StepRange is a closed float range [Min,Max] restricted to multiples of Step above Min.
type StepRange struct {
	Min, Max, Step float64
}

func (r StepRange) values() []float64 {
	n := int(math.Round((r.Max-r.Min)/r.Step)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = roundTo(r.Min+float64(i)*r.Step, r.Step)
	}
	return out
}

func (r StepRange) sample(rng *rand.Rand) float64 {
	v := r.values()
	return v[rng.Intn(len(v))]
}

func (r StepRange) contains(v float64) bool {
	return slices.ContainsFunc(r.values(), func(x float64) bool {
		return math.Abs(x-v) < 1e-9
	})
}

// LogRange is a closed float range [min,max] sampled uniformly in log space.
type LogRange [2]float64

func (r LogRange) sample(rng *rand.Rand) float64 {
	lo, hi := math.Log(r[0]), math.Log(r[1])
	return math.Exp(lo + rng.Float64()*(hi-lo))
}

func (r LogRange) contains(v float64) bool {
	return v >= r[0]*(1-1e-12) && v <= r[1]*(1+1e-12)
}

// Space is the declaration of every searchable dimension.
type Space struct {
	Layers          IntRange
	FirstLayerUnits []int
	Dropout         StepRange
	Activations     []Activation
	Regularizations []Regularization
	LR              LogRange
}

// DefaultSpace returns the space the search explores.
func DefaultSpace() Space {
	return Space{
		Layers:          IntRange{1, 3},
		FirstLayerUnits: []int{32, 64, 128, 512, 1024, 2048},
		Dropout:         StepRange{Min: 0.0, Max: 0.5, Step: 0.1},
		Activations:     []Activation{ReLU, Tanh, Sigmoid, ELU, SELU},
		Regularizations: []Regularization{L1, L2, L1L2, NoRegularization},
		LR:              LogRange{1e-5, 1e-2},
	}
}

// Sample draws one configuration. The draw order is fixed so a seeded rng
// always yields the same sequence of configurations.
func (s Space) Sample(rng *rand.Rand) Config {
	return Config{
		Layers:          s.Layers.sample(rng),
		FirstLayerUnits: s.FirstLayerUnits[rng.Intn(len(s.FirstLayerUnits))],
		Dropout:         s.Dropout.sample(rng),
		Activation:      s.Activations[rng.Intn(len(s.Activations))],
		Regularization:  s.Regularizations[rng.Intn(len(s.Regularizations))],
		LR:              s.LR.sample(rng),
	}
}

// Contains returns an ErrOutOfDomain error naming the first value of c outside s.
func (s Space) Contains(c Config) error {
	switch {
	case !s.Layers.contains(c.Layers):
		return domainError(KeyLayers, c.Layers)
	case !slices.Contains(s.FirstLayerUnits, c.FirstLayerUnits):
		return domainError(KeyFirstLayerUnits, c.FirstLayerUnits)
	case !s.Dropout.contains(c.Dropout):
		return domainError(KeyDropout, c.Dropout)
	case !slices.Contains(s.Activations, c.Activation):
		return domainError(KeyActivation, c.Activation)
	case !slices.Contains(s.Regularizations, c.Regularization):
		return domainError(KeyRegularization, c.Regularization)
	case !s.LR.contains(c.LR):
		return domainError(KeyLR, c.LR)
	}
	return nil
}

func domainError(key string, v any) error {
	return fmt.Errorf("%w: %s=%v", ErrOutOfDomain, key, v)
}

func roundTo(v, step float64) float64 {
	digits := math.Max(0, math.Ceil(-math.Log10(step)))
	p := math.Pow(10, digits)
	return math.Round(v*p) / p
}

package network

import (
	"fmt"
	"math"

	"github.com/spboyer/playground/internal/hyperparams"
)

const (
	seluAlpha = 1.6732632423543772848170429916717
	seluScale = 1.0507009873554804934193349852946
)

// activation holds a non-linearity and its derivative expressed through the
// pre-activation z and the activation a = f(z).
type activation struct {
	f  func(z float64) float64
	df func(z, a float64) float64
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func activationFor(name hyperparams.Activation) (activation, error) {
	switch name {
	case hyperparams.ReLU:
		return activation{
			f: func(z float64) float64 { return math.Max(z, 0) },
			df: func(z, _ float64) float64 {
				if z > 0 {
					return 1
				}
				return 0
			},
		}, nil
	case hyperparams.Tanh:
		return activation{
			f:  math.Tanh,
			df: func(_, a float64) float64 { return 1 - a*a },
		}, nil
	case hyperparams.Sigmoid:
		return activation{
			f:  sigmoid,
			df: func(_, a float64) float64 { return a * (1 - a) },
		}, nil
	case hyperparams.ELU:
		return activation{
			f: func(z float64) float64 {
				if z > 0 {
					return z
				}
				return math.Expm1(z)
			},
			df: func(z, a float64) float64 {
				if z > 0 {
					return 1
				}
				return a + 1
			},
		}, nil
	case hyperparams.SELU:
		return activation{
			f: func(z float64) float64 {
				if z > 0 {
					return seluScale * z
				}
				return seluScale * seluAlpha * math.Expm1(z)
			},
			df: func(z, a float64) float64 {
				if z > 0 {
					return seluScale
				}
				return a + seluScale*seluAlpha
			},
		}, nil
	}
	return activation{}, fmt.Errorf("%w: %s=%s", hyperparams.ErrOutOfDomain, hyperparams.KeyActivation, name)
}

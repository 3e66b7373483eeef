package network

import "math"

// Adam defaults.
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

// adam keeps first and second moment estimates for a fixed list of parameter slices.
type adam struct {
	lr   float64
	t    int
	m, v [][]float64
}

func newAdam(lr float64) *adam {
	return &adam{lr: lr}
}

// step updates every params[i] in place with grads[i].
func (a *adam) step(params, grads [][]float64) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for i, p := range params {
			a.m[i] = make([]float64, len(p))
			a.v[i] = make([]float64, len(p))
		}
	}
	a.t++
	t := float64(a.t)
	lr := a.lr * math.Sqrt(1-math.Pow(adamBeta2, t)) / (1 - math.Pow(adamBeta1, t))

	for i, p := range params {
		g, m, v := grads[i], a.m[i], a.v[i]
		for j := range p {
			m[j] = adamBeta1*m[j] + (1-adamBeta1)*g[j]
			v[j] = adamBeta2*v[j] + (1-adamBeta2)*g[j]*g[j]
			p[j] -= lr * m[j] / (math.Sqrt(v[j]) + adamEpsilon)
		}
	}
}

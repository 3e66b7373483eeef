package network

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// dense is a fully connected layer: z = x·W + b.
type dense struct {
	w *mat.Dense // inputs x units
	b []float64  // units
}

// newDense initializes the kernel glorot-uniform and the bias with zeros.
func newDense(inputs, units int, rng *rand.Rand) *dense {
	limit := math.Sqrt(6 / float64(inputs+units))
	data := make([]float64, inputs*units)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return &dense{
		w: mat.NewDense(inputs, units, data),
		b: make([]float64, units),
	}
}

func (d *dense) inputs() int {
	r, _ := d.w.Dims()
	return r
}

func (d *dense) units() int {
	_, c := d.w.Dims()
	return c
}

// kernel returns the backing slice of W in row-major order.
func (d *dense) kernel() []float64 {
	return d.w.RawMatrix().Data
}

func (d *dense) forward(x mat.Matrix) *mat.Dense {
	var z mat.Dense
	z.Mul(x, d.w)
	z.Apply(func(_, j int, v float64) float64 { return v + d.b[j] }, &z)
	return &z
}

// backward returns the kernel and bias gradients for the upstream gradient dz
// of a layer that received x.
func (d *dense) backward(x, dz *mat.Dense) (dw *mat.Dense, db []float64) {
	dw = &mat.Dense{}
	dw.Mul(x.T(), dz)
	r, c := dz.Dims()
	db = make([]float64, c)
	for i := 0; i < r; i++ {
		for j, v := range dz.RawRowView(i) {
			db[j] += v
		}
	}
	return dw, db
}

// propagate returns the gradient with respect to the layer input.
func (d *dense) propagate(dz *mat.Dense) *mat.Dense {
	var dx mat.Dense
	dx.Mul(dz, d.w.T())
	return &dx
}

// penalty returns the l1/l2 penalty of params and, when grads is not nil,
// adds the penalty gradient into it.
func penalty(params, grads []float64, l1, l2 float64) float64 {
	if l1 == 0 && l2 == 0 {
		return 0
	}
	sum := 0.0
	for i, v := range params {
		sum += l1*math.Abs(v) + l2*v*v
		if grads != nil {
			g := 2 * l2 * v
			switch {
			case v > 0:
				g += l1
			case v < 0:
				g -= l1
			}
			grads[i] += g
		}
	}
	return sum
}

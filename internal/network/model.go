// Package network builds and trains the feed-forward binary classifier:
// stacked dense and dropout blocks over scalar inputs, a single sigmoid
// output unit, Adam and binary cross-entropy.
package network

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/spboyer/playground/internal/compute"
	"github.com/spboyer/playground/internal/dataset"
	"github.com/spboyer/playground/internal/hyperparams"
	"github.com/spboyer/playground/internal/metrics"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Model is a compiled classifier. Training methods are not safe for
// concurrent use; Predict may be called concurrently when no training runs.
type Model struct {
	features dataset.FeatureSet
	config   hyperparams.Config
	seed     int64

	hidden []*dense
	output *dense
	act    activation
	l1, l2 float64

	opt *adam
	rng *rand.Rand
}

// Build creates a model for cfg over the given inputs. seed drives weight
// initialization and dropout. An out-of-domain cfg fails fast.
func Build(cfg hyperparams.Config, features dataset.FeatureSet, seed int64) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}
	if features.Len() == 0 {
		return nil, fmt.Errorf("network: %w", dataset.ErrEmptyFeatureSet)
	}
	act, err := activationFor(cfg.Activation)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}

	rng := rand.New(rand.NewSource(seed))
	m := &Model{
		features: features,
		config:   cfg,
		seed:     seed,
		act:      act,
		opt:      newAdam(cfg.LR),
		rng:      rng,
	}
	m.l1, m.l2 = cfg.Regularization.Factors()

	in := features.Len()
	for _, units := range cfg.Widths() {
		m.hidden = append(m.hidden, newDense(in, units, rng))
		in = units
	}
	m.output = newDense(in, 1, rng)
	return m, nil
}

// Features returns the input signature of the model.
func (m *Model) Features() dataset.FeatureSet {
	return m.features
}

// Config returns the hyperparameters the model was built from.
func (m *Model) Config() hyperparams.Config {
	return m.config
}

// Seed returns the seed the model was built with.
func (m *Model) Seed() int64 {
	return m.seed
}

// LearningRate returns the current optimizer learning rate.
func (m *Model) LearningRate() float64 {
	return m.opt.lr
}

// SetLearningRate changes the optimizer learning rate.
func (m *Model) SetLearningRate(lr float64) {
	m.opt.lr = lr
}

// Widths returns the unit count of every layer including the output unit.
func (m *Model) Widths() []int {
	out := make([]int, 0, len(m.hidden)+1)
	for _, d := range m.hidden {
		out = append(out, d.units())
	}
	return append(out, m.output.units())
}

// layers returns hidden layers followed by the output layer.
func (m *Model) layers() []*dense {
	return append(append([]*dense(nil), m.hidden...), m.output)
}

// pass caches the intermediate values of one forward pass.
type pass struct {
	inputs []*mat.Dense // input of every layer, output layer last
	pre    []*mat.Dense // hidden pre-activations
	post   []*mat.Dense // hidden activations before dropout
	masks  []*mat.Dense // dropout scale masks, nil entries when not applied
	logits []float64
}

func (m *Model) forward(x *mat.Dense, training bool) *pass {
	p := &pass{}
	h := x
	for _, layer := range m.hidden {
		p.inputs = append(p.inputs, h)
		z := layer.forward(h)
		var a mat.Dense
		a.Apply(func(_, _ int, v float64) float64 { return m.act.f(v) }, z)
		p.pre = append(p.pre, z)
		p.post = append(p.post, &a)

		var mask *mat.Dense
		h = &a
		if training && m.config.Dropout > 0 {
			mask = m.dropoutMask(a.Dims())
			var dropped mat.Dense
			dropped.MulElem(&a, mask)
			h = &dropped
		}
		p.masks = append(p.masks, mask)
	}
	p.inputs = append(p.inputs, h)
	z := m.output.forward(h)
	p.logits = mat.Col(nil, 0, z)
	return p
}

// dropoutMask returns inverted-dropout scales: 0 for dropped units, 1/keep otherwise.
func (m *Model) dropoutMask(r, c int) *mat.Dense {
	keep := 1 - m.config.Dropout
	data := make([]float64, r*c)
	for i := range data {
		if m.rng.Float64() >= m.config.Dropout {
			data[i] = 1 / keep
		}
	}
	return mat.NewDense(r, c, data)
}

// regularization returns the total penalty of the hidden layers.
func (m *Model) regularization() float64 {
	sum := 0.0
	for _, layer := range m.hidden {
		sum += penalty(layer.kernel(), nil, m.l1, m.l2)
		sum += penalty(layer.b, nil, m.l1, m.l2)
	}
	return sum
}

// trainStep runs one optimizer step on b and returns the regularized batch loss
// and the training-mode probabilities.
func (m *Model) trainStep(b *dataset.Batch, weights dataset.ClassWeights) (float64, []float64, error) {
	x, err := m.features.Matrix(b)
	if err != nil {
		return 0, nil, err
	}
	n := b.Len()
	p := m.forward(x, true)

	probs := make([]float64, n)
	delta := mat.NewDense(n, 1, nil)
	loss := 0.0
	for i, z := range p.logits {
		y := b.Labels[i]
		w := weights.Weight(y)
		probs[i] = sigmoid(z)
		loss += w * logLoss(z, y)
		delta.Set(i, 0, w*(probs[i]-y)/float64(n))
	}
	loss /= float64(n)

	layers := m.layers()
	params := make([][]float64, 0, 2*len(layers))
	grads := make([][]float64, 0, 2*len(layers))

	out := len(m.hidden)
	dw, db := m.output.backward(p.inputs[out], delta)
	params = append(params, m.output.kernel(), m.output.b)
	grads = append(grads, dw.RawMatrix().Data, db)

	dh := m.output.propagate(delta)
	for l := len(m.hidden) - 1; l >= 0; l-- {
		layer := m.hidden[l]
		if p.masks[l] != nil {
			dh.MulElem(dh, p.masks[l])
		}
		pre, post := p.pre[l], p.post[l]
		dz := &mat.Dense{}
		dz.Apply(func(i, j int, v float64) float64 {
			return v * m.act.df(pre.At(i, j), post.At(i, j))
		}, dh)
		dw, db := layer.backward(p.inputs[l], dz)
		gw := dw.RawMatrix().Data
		loss += penalty(layer.kernel(), gw, m.l1, m.l2)
		loss += penalty(layer.b, db, m.l1, m.l2)
		params = append(params, layer.kernel(), layer.b)
		grads = append(grads, gw, db)
		if l > 0 {
			dh = layer.propagate(dz)
		}
	}

	m.opt.step(params, grads)
	return loss, probs, nil
}

// logLoss is the binary cross-entropy of a logit, computed without overflow.
func logLoss(z, y float64) float64 {
	return math.Max(z, 0) - z*y + math.Log1p(math.Exp(-math.Abs(z)))
}

// Predict returns the positive-class probability for every example of b.
func (m *Model) Predict(b *dataset.Batch) ([]float64, error) {
	x, err := m.features.Matrix(b)
	if err != nil {
		return nil, err
	}
	p := m.forward(x, false)
	probs := make([]float64, len(p.logits))
	for i, z := range p.logits {
		probs[i] = sigmoid(z)
	}
	return probs, nil
}

// Predictor is anything that maps a batch to probabilities.
type Predictor interface {
	Predict(b *dataset.Batch) ([]float64, error)
}

// PredictDataset predicts one pass over ds, sharding batches across
// compute.Workers goroutines. Predictions and labels keep batch order.
func PredictDataset(p Predictor, ds *dataset.Dataset) (probs, labels []float64, err error) {
	batches := ds.Batches()
	if len(batches) == 0 {
		return nil, nil, errors.New("network: dataset has no examples")
	}
	out := make([][]float64, len(batches))

	var g errgroup.Group
	g.SetLimit(compute.Workers())
	for i, b := range batches {
		g.Go(func() error {
			pr, err := p.Predict(b)
			if err != nil {
				return err
			}
			out[i] = pr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	for i, b := range batches {
		probs = append(probs, out[i]...)
		labels = append(labels, b.Labels...)
	}
	return probs, labels, nil
}

// Evaluation is the result of scoring a model on a dataset.
type Evaluation = metrics.Classification

// Evaluate returns loss, accuracy and AUC over one pass of ds. The loss
// includes the regularization penalty.
func (m *Model) Evaluate(ds *dataset.Dataset) (Evaluation, error) {
	probs, labels, err := PredictDataset(m, ds)
	if err != nil {
		return Evaluation{}, err
	}
	ev := metrics.Classify(probs, labels)
	ev.Loss += m.regularization()
	return ev, nil
}

package network

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// LayerWeights is the kernel (row-major, Inputs x Units) and bias of one layer.
type LayerWeights struct {
	Inputs int
	Units  int
	Kernel []float64
	Bias   []float64
}

// Weights holds every layer of a model, output layer last.
type Weights struct {
	Layers []LayerWeights
}

// Snapshot copies the current weights.
func (m *Model) Snapshot() *Weights {
	w := &Weights{}
	for _, d := range m.layers() {
		w.Layers = append(w.Layers, LayerWeights{
			Inputs: d.inputs(),
			Units:  d.units(),
			Kernel: append([]float64(nil), d.kernel()...),
			Bias:   append([]float64(nil), d.b...),
		})
	}
	return w
}

// Restore copies w into the model. The layer shapes must match. Optimizer
// state is left untouched.
func (m *Model) Restore(w *Weights) error {
	layers := m.layers()
	if len(w.Layers) != len(layers) {
		return fmt.Errorf("network: weights have %d layers, model has %d", len(w.Layers), len(layers))
	}
	for i, d := range layers {
		lw := w.Layers[i]
		if lw.Inputs != d.inputs() || lw.Units != d.units() ||
			len(lw.Kernel) != lw.Inputs*lw.Units || len(lw.Bias) != lw.Units {
			return fmt.Errorf("network: layer %d shape %dx%d does not match %dx%d",
				i, lw.Inputs, lw.Units, d.inputs(), d.units())
		}
	}
	for i, d := range layers {
		copy(d.kernel(), w.Layers[i].Kernel)
		copy(d.b, w.Layers[i].Bias)
	}
	return nil
}

// EncodeWeights writes w as a zstd-compressed gob stream.
func EncodeWeights(dst io.Writer, w *Weights) error {
	enc, err := zstd.NewWriter(dst)
	if err != nil {
		return fmt.Errorf("network: creating zstd writer: %w", err)
	}
	if err := gob.NewEncoder(enc).Encode(w); err != nil {
		_ = enc.Close()
		return fmt.Errorf("network: encoding weights: %w", err)
	}
	return enc.Close()
}

// DecodeWeights reads weights written by EncodeWeights.
func DecodeWeights(src io.Reader) (*Weights, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, fmt.Errorf("network: creating zstd reader: %w", err)
	}
	defer dec.Close()

	var w Weights
	if err := gob.NewDecoder(dec).Decode(&w); err != nil {
		return nil, fmt.Errorf("network: decoding weights: %w", err)
	}
	return &w, nil
}

// SaveWeights writes w to path.
func SaveWeights(path string, w *Weights) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("network: %w", err)
	}
	if err := EncodeWeights(f, w); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// LoadWeights reads weights from path.
func LoadWeights(path string) (*Weights, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}
	defer f.Close() //nolint:errcheck
	return DecodeWeights(f)
}

// Package dataset turns labelled CSV files into batched, optionally shuffled
// streams of scalar features.
package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
)

// Default values used by the training pipeline.
const (
	DefaultBatchSize     = 64
	DefaultLabelColumn   = "classification_target"
	DefaultIDColumn      = "id"
	DefaultShuffleBuffer = 1000
	DefaultSeed          = 17
)

// ErrSchemaMismatch is returned when the files of one dataset disagree on their columns.
var ErrSchemaMismatch = errors.New("dataset: schema mismatch")

// ScalarType is the inferred numeric type of a column.
type ScalarType string

const (
	Int   ScalarType = "int"
	Float ScalarType = "float"
)

// Column describes one feature column of a dataset.
type Column struct {
	Name string
	Type ScalarType
}

// Schema is the ordered list of feature columns (the label column is not part of it).
type Schema []Column

// Names returns the column names in file order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Options control how a Dataset is read and iterated.
type Options struct {
	BatchSize         int
	LabelColumn       string
	Shuffle           bool
	ShuffleBufferSize int
	Seed              int64
}

// Batch is one slice of examples: one value per example for every feature, plus the labels.
type Batch struct {
	Features map[string][]float64
	Labels   []float64
}

// Len returns the number of examples in the batch.
func (b *Batch) Len() int {
	return len(b.Labels)
}

// Dataset is an in-memory labelled dataset. Iteration is not safe for
// concurrent use because shuffled datasets advance a private RNG.
type Dataset struct {
	opts    Options
	paths   []string
	schema  Schema
	columns [][]float64
	labels  []float64
	rng     *rand.Rand
}

// Open reads every path as one dataset. All files must share the same columns,
// every feature cell must be numeric and every label must be 0 or 1.
func Open(paths []string, opts Options) (*Dataset, error) {
	if len(paths) == 0 {
		return nil, errors.New("dataset: no input files")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("dataset: batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.LabelColumn == "" {
		return nil, errors.New("dataset: label column is required")
	}
	if opts.Shuffle && opts.ShuffleBufferSize <= 0 {
		return nil, fmt.Errorf("dataset: shuffle buffer size must be positive, got %d", opts.ShuffleBufferSize)
	}

	d := &Dataset{opts: opts, paths: paths}

	var header []string
	var ints []bool
	for _, path := range paths {
		table, err := LoadCSV(path)
		if err != nil {
			return nil, err
		}
		if header == nil {
			header = table.Header
			if table.Column(opts.LabelColumn) < 0 {
				return nil, fmt.Errorf("dataset: %s has no label column %q", path, opts.LabelColumn)
			}
			for _, h := range header {
				if h != opts.LabelColumn {
					d.schema = append(d.schema, Column{Name: h})
					ints = append(ints, true)
				}
			}
			d.columns = make([][]float64, len(d.schema))
		}
		if err := d.append(table, header, ints); err != nil {
			return nil, err
		}
	}

	for i := range d.schema {
		d.schema[i].Type = Float
		if ints[i] {
			d.schema[i].Type = Int
		}
	}

	if opts.Shuffle {
		d.rng = rand.New(rand.NewSource(opts.Seed))
	}
	return d, nil
}

func (d *Dataset) append(table *Table, header []string, ints []bool) error {
	if len(table.Header) != len(header) {
		return fmt.Errorf("%w: %s has %d columns, expected %d", ErrSchemaMismatch, table.Path, len(table.Header), len(header))
	}
	// positions of the reference header columns inside this file
	pos := make([]int, len(header))
	for i, h := range header {
		pos[i] = table.Column(h)
		if pos[i] < 0 {
			return fmt.Errorf("%w: %s has no column %q", ErrSchemaMismatch, table.Path, h)
		}
	}

	for r, record := range table.Records {
		feature := 0
		for i, h := range header {
			raw := record[pos[i]]
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("dataset: %s row %d column %q: %q is not numeric", table.Path, r+2, h, raw)
			}
			if h == d.opts.LabelColumn {
				if v != 0 && v != 1 {
					return fmt.Errorf("dataset: %s row %d: label %v is not 0 or 1", table.Path, r+2, v)
				}
				d.labels = append(d.labels, v)
				continue
			}
			if ints[feature] {
				if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
					ints[feature] = false
				}
			}
			d.columns[feature] = append(d.columns[feature], v)
			feature++
		}
	}
	return nil
}

// Schema returns the feature columns and their inferred types.
func (d *Dataset) Schema() Schema {
	out := make(Schema, len(d.schema))
	copy(out, d.schema)
	return out
}

// Len returns the number of examples.
func (d *Dataset) Len() int {
	return len(d.labels)
}

// Paths returns the files the dataset was read from.
func (d *Dataset) Paths() []string {
	return append([]string(nil), d.paths...)
}

// Labels returns a copy of the labels in file order.
func (d *Dataset) Labels() []float64 {
	return append([]float64(nil), d.labels...)
}

// Batches returns one full pass over the dataset. Shuffled datasets produce a
// new, seed-determined order on every call.
func (d *Dataset) Batches() []*Batch {
	order := d.order()
	batches := make([]*Batch, 0, (len(order)+d.opts.BatchSize-1)/d.opts.BatchSize)
	for start := 0; start < len(order); start += d.opts.BatchSize {
		end := min(start+d.opts.BatchSize, len(order))
		batches = append(batches, d.batch(order[start:end]))
	}
	return batches
}

func (d *Dataset) batch(idx []int) *Batch {
	b := &Batch{
		Features: make(map[string][]float64, len(d.schema)),
		Labels:   make([]float64, len(idx)),
	}
	for c, col := range d.schema {
		values := make([]float64, len(idx))
		for i, row := range idx {
			values[i] = d.columns[c][row]
		}
		b.Features[col.Name] = values
	}
	for i, row := range idx {
		b.Labels[i] = d.labels[row]
	}
	return b
}

// order implements a bounded shuffle buffer: the buffer is filled with the
// first ShuffleBufferSize rows, a uniformly chosen slot is emitted and refilled
// with the next row until the input is exhausted.
func (d *Dataset) order() []int {
	n := len(d.labels)
	out := make([]int, 0, n)
	if !d.opts.Shuffle {
		for i := 0; i < n; i++ {
			out = append(out, i)
		}
		return out
	}

	size := min(d.opts.ShuffleBufferSize, n)
	buf := make([]int, 0, size)
	next := 0
	for ; next < n && len(buf) < size; next++ {
		buf = append(buf, next)
	}
	for len(buf) > 0 {
		k := d.rng.Intn(len(buf))
		out = append(out, buf[k])
		if next < n {
			buf[k] = next
			next++
			continue
		}
		buf[k] = buf[len(buf)-1]
		buf = buf[:len(buf)-1]
	}
	return out
}

// GroundTruth returns every label of one pass over ds, in batch order.
func GroundTruth(ds *Dataset) []float64 {
	var labels []float64
	for _, b := range ds.Batches() {
		labels = append(labels, b.Labels...)
	}
	return labels
}

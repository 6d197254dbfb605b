// tensorutil.go - Tensor-Hilfsfunktionen fuer die Diffusions-Pipeline.
//
// Dieses Modul enthaelt:
// - Konstruktoren fuer Float32-Tensoren
// - Concat, Duplicate und Chunk entlang der Batch-Achse
// - HiddenLayout fuer die Umformung von Text-Embeddings
// - FromFloat16 fuer Half-Precision Modell-Ausgaben
package tensorutil

import (
	"fmt"

	"github.com/pdevine/tensor"
	"github.com/x448/float16"
)

// New creates a zero-filled float32 tensor with the given shape.
func New(shape ...int) *tensor.Dense {
	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(shape...))
}

// FromSlice wraps a float32 slice into a tensor with the given shape.
// The slice is used as backing storage, not copied.
func FromSlice(data []float32, shape ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// Full creates a tensor with every element set to value.
func Full(value float32, shape ...int) *tensor.Dense {
	n := 1
	for _, s := range shape {
		n *= s
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = value
	}
	return FromSlice(data, shape...)
}

// Data returns the flat float32 backing slice of a dense tensor.
func Data(t *tensor.Dense) []float32 {
	return t.Data().([]float32)
}

// Clone returns a deep copy.
func Clone(t *tensor.Dense) *tensor.Dense {
	return t.Clone().(*tensor.Dense)
}

// Scale returns t scaled element-wise by s, leaving t untouched.
func Scale(t *tensor.Dense, s float32) *tensor.Dense {
	src := Data(t)
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = v * s
	}
	return FromSlice(out, t.Shape()...)
}

// Concat joins tensors along the given axis.
func Concat(axis int, ts ...*tensor.Dense) (*tensor.Dense, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("concat: no tensors")
	}
	if len(ts) == 1 {
		return Clone(ts[0]), nil
	}
	rest := make([]tensor.Tensor, len(ts)-1)
	for i, t := range ts[1:] {
		rest[i] = t
	}
	out, err := tensor.Concat(axis, ts[0], rest...)
	if err != nil {
		return nil, err
	}
	return tensor.Materialize(out).(*tensor.Dense), nil
}

// Duplicate stacks t with itself along the batch axis. A latent of shape
// [1, c, h, w] becomes [2, c, h, w] for the two-branch guidance pass.
func Duplicate(t *tensor.Dense) (*tensor.Dense, error) {
	return Concat(0, t, t)
}

// Chunk splits t into n equal parts along the batch axis.
func Chunk(t *tensor.Dense, n int) ([]*tensor.Dense, error) {
	batch := t.Shape()[0]
	if n <= 0 || batch%n != 0 {
		return nil, fmt.Errorf("chunk: cannot split batch %d into %d parts", batch, n)
	}
	size := batch / n
	out := make([]*tensor.Dense, n)
	for i := 0; i < n; i++ {
		sl, err := t.Slice(tensor.S(i*size, (i+1)*size))
		if err != nil {
			return nil, err
		}
		out[i] = tensor.Materialize(sl).(*tensor.Dense)
	}
	return out, nil
}

// HiddenLayout permutes text-encoder embeddings from [batch, seq, channels]
// into the [batch, channels, 1, seq] layout the noise predictor expects.
func HiddenLayout(t *tensor.Dense) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("hidden layout: want 3 dimensions, got %v", shape)
	}
	n := Clone(t)
	if err := n.T(0, 2, 1); err != nil {
		return nil, err
	}
	if err := n.Transpose(); err != nil {
		return nil, err
	}
	if err := n.Reshape(shape[0], shape[2], 1, shape[1]); err != nil {
		return nil, err
	}
	return n, nil
}

// FromFloat16 converts raw IEEE 754 half-precision bits into a float32 tensor.
// Used for backends that emit fp16 model outputs.
func FromFloat16(raw []uint16, shape ...int) *tensor.Dense {
	data := make([]float32, len(raw))
	for i, h := range raw {
		data[i] = float16.Frombits(h).Float32()
	}
	return FromSlice(data, shape...)
}

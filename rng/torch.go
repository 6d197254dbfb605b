// torch.go - Torch-CPU-kompatible Normalverteilung.
//
// Dieses Modul enthaelt:
// - torchSource mit Box-Muller Paar-Befuellung
// - Chunk-weise Verarbeitung wie in ATen normal_fill
package rng

import (
	"math"

	"github.com/pdevine/tensor"

	"github.com/latentforge/latentforge/tensorutil"
)

// torchSource reproduces the torch CPU normal_ fill: the buffer is first
// filled with single-precision uniforms, then transformed in chunks of 16
// where each pair (j, j+8) turns into the cosine/sine halves of one
// Box-Muller draw.
type torchSource struct {
	mt *mt19937
}

func newTorchSource(seed uint64) *torchSource {
	return &torchSource{mt: newMT19937(uint32(seed))}
}

const torchChunk = 16

func (s *torchSource) NormalTensor(shape []int, mean, stdev float32) *tensor.Dense {
	n := elements(shape)
	data := make([]float32, n)

	if n < torchChunk {
		// ATen only runs the chunked fill from 16 elements upwards;
		// smaller draws take a full chunk and keep the prefix.
		chunk := make([]float32, torchChunk)
		for i := range chunk {
			chunk[i] = s.mt.float32()
		}
		normalFill16(chunk, mean, stdev)
		copy(data, chunk[:n])
		return tensorutil.FromSlice(data, shape...)
	}

	for i := range data {
		data[i] = s.mt.float32()
	}
	for off := 0; off+torchChunk <= n; off += torchChunk {
		normalFill16(data[off:off+torchChunk], mean, stdev)
	}
	if n%torchChunk != 0 {
		// ATen redraws the final 16 values in place, overwriting part of
		// the last full chunk.
		tail := data[n-torchChunk:]
		for i := range tail {
			tail[i] = s.mt.float32()
		}
		normalFill16(tail, mean, stdev)
	}

	return tensorutil.FromSlice(data, shape...)
}

func normalFill16(chunk []float32, mean, stdev float32) {
	for j := 0; j < 8; j++ {
		u1 := 1.0 - float64(chunk[j])
		u2 := float64(chunk[j+8])
		radius := math.Sqrt(-2.0 * math.Log(u1))
		theta := 2.0 * math.Pi * u2
		chunk[j] = float32(radius*math.Cos(theta))*stdev + mean
		chunk[j+8] = float32(radius*math.Sin(theta))*stdev + mean
	}
}

// guidance.go - Classifier-Free Guidance.
package diffusion

import (
	"fmt"

	"github.com/pdevine/tensor"

	"github.com/latentforge/latentforge/tensorutil"
)

// ApplyGuidance combines the unconditional (batch index 0) and conditional
// (batch index 1) noise predictions into one steered prediction:
//
//	result = unconditional + scale * (conditional - unconditional)
//
// The input must have batch dimension exactly 2; the result has batch
// dimension 1. For multi-image batches the caller applies this per image.
func ApplyGuidance(noise *tensor.Dense, scale float32) (*tensor.Dense, error) {
	shape := noise.Shape()
	if len(shape) == 0 || shape[0] != 2 {
		return nil, fmt.Errorf("guidance: want batch dimension 2, got shape %v", shape)
	}

	data := tensorutil.Data(noise)
	half := len(data) / 2
	uncond, cond := data[:half], data[half:]

	out := make([]float32, half)
	for i := range out {
		out[i] = uncond[i] + scale*(cond[i]-uncond[i])
	}

	outShape := append([]int{1}, shape[1:]...)
	return tensorutil.FromSlice(out, outShape...), nil
}

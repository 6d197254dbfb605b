// capabilities.go - Externe Faehigkeits-Interfaces der Pipeline.
//
// Dieses Modul enthaelt:
// - TextEncoder, NoisePredictor, ImageEncoder, ImageDecoder
// - ControlSignalNetwork und SafetyChecker (optional)
//
// Each capability is one opaque, potentially slow, blocking call. The
// pipeline never retries a failed call; failures propagate to the caller.
package diffusion

import (
	"image"

	"github.com/pdevine/tensor"

	"github.com/latentforge/latentforge/rng"
)

// TextEncoder turns prompt text into an embedding of shape [1, seq, channels].
type TextEncoder interface {
	Encode(text string) (*tensor.Dense, error)
}

// NoisePredictor predicts the noise present in a batch of latents. The
// latents carry the full batch (image count times the two guidance
// branches); hiddenStates is in [batch, channels, 1, seq] layout.
// additionalResiduals may be nil.
type NoisePredictor interface {
	Predict(latents *tensor.Dense, timeStep int, hiddenStates *tensor.Dense, additionalResiduals *tensor.Dense) (*tensor.Dense, error)
}

// ImageEncoder encodes a starting image into latent space for
// image-to-image generation.
type ImageEncoder interface {
	Encode(img image.Image, scaleFactor float32, source rng.Source) (*tensor.Dense, error)
}

// ImageDecoder decodes final latents, one per requested image, into pixels.
type ImageDecoder interface {
	Decode(latents []*tensor.Dense, scaleFactor float32) ([]image.Image, error)
}

// ControlSignalNetwork computes an additional residual from control images,
// fed into the noise predictor alongside the regular inputs.
type ControlSignalNetwork interface {
	Execute(latents *tensor.Dense, timeStep int, hiddenStates *tensor.Dense, images []image.Image) (*tensor.Dense, error)
}

// SafetyChecker classifies a decoded image. Unsafe images are replaced with
// a nil placeholder, never reported as an error.
type SafetyChecker interface {
	IsSafe(img image.Image) (bool, error)
}

//go:build ort

// ort.go - ONNX-Runtime Backend fuer die Diffusions-Pipeline.
//
// Dieses Modul enthaelt:
// - Session-Aufbau fuer CLIP, UNet und VAE (Encoder/Decoder)
// - Implementierungen der Pipeline-Faehigkeits-Interfaces
// - fp16/fp32 Konvertierung der Modell-Ausgaben
package ort

import (
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/pdevine/tensor"
	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/sync/errgroup"

	"github.com/latentforge/latentforge/backend"
	"github.com/latentforge/latentforge/diffusion"
	"github.com/latentforge/latentforge/pixel"
	"github.com/latentforge/latentforge/rng"
	"github.com/latentforge/latentforge/tensorutil"
)

func init() {
	backend.Register(func(modelDir string) (*diffusion.Pipeline, error) {
		b, err := New(modelDir)
		if err != nil {
			return nil, err
		}
		return &diffusion.Pipeline{
			TextEncoder: &textEncoder{b},
			Predictor:   &noisePredictor{b},
			Encoder:     &imageEncoder{b},
			Decoder:     &imageDecoder{b},
		}, nil
	})
}

// Backend holds the ONNX Runtime sessions for one model directory.
type Backend struct {
	clip       *ort.DynamicAdvancedSession
	unet       *ort.DynamicAdvancedSession
	vaeEncoder *ort.DynamicAdvancedSession
	vaeDecoder *ort.DynamicAdvancedSession
	tokenizer  *clipTokenizer
}

// New loads all sessions from modelDir. Expected layout:
// clip_text_encoder.onnx, unet.onnx, vae_encoder.onnx, vae_decoder.onnx
// plus a tokenizer/ directory with vocab.json and merges.txt.
func New(modelDir string) (*Backend, error) {
	if lib := findLibrary(); lib != "" {
		ort.SetSharedLibraryPath(lib)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("onnxruntime init: %w", err)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()
	opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)

	b := &Backend{}

	start := time.Now()
	var g errgroup.Group
	g.Go(func() (err error) {
		b.tokenizer, err = loadTokenizer(filepath.Join(modelDir, "tokenizer"))
		return err
	})
	g.Go(func() (err error) {
		b.clip, err = loadSession(filepath.Join(modelDir, "clip_text_encoder.onnx"), opts)
		return err
	})
	g.Go(func() (err error) {
		b.unet, err = loadSession(filepath.Join(modelDir, "unet.onnx"), opts)
		return err
	})
	g.Go(func() (err error) {
		b.vaeEncoder, err = loadSession(filepath.Join(modelDir, "vae_encoder.onnx"), opts)
		return err
	})
	g.Go(func() (err error) {
		b.vaeDecoder, err = loadSession(filepath.Join(modelDir, "vae_decoder.onnx"), opts)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slog.Info("onnx sessions loaded", "dir", modelDir, "duration", time.Since(start))

	return b, nil
}

func loadSession(path string, opts *ort.SessionOptions) (*ort.DynamicAdvancedSession, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	inNames := make([]string, len(inputs))
	for i, in := range inputs {
		inNames[i] = in.Name
	}
	outNames := make([]string, len(outputs))
	for i, out := range outputs {
		outNames[i] = out.Name
	}
	session, err := ort.NewDynamicAdvancedSession(path, inNames, outNames, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return session, nil
}

// findLibrary looks for libonnxruntime in common locations.
func findLibrary() string {
	if p := os.Getenv("ONNXRUNTIME_LIB"); p != "" {
		return p
	}
	candidates := []string{
		"/usr/local/lib/libonnxruntime.dylib",
		"/opt/homebrew/lib/libonnxruntime.dylib",
		"/usr/lib/libonnxruntime.so",
		"/usr/local/lib/libonnxruntime.so",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// run executes a session and extracts all outputs as float32 slices.
func run(session *ort.DynamicAdvancedSession, inputs []ort.Value, outputCount int) ([][]float32, error) {
	outputs := make([]ort.Value, outputCount)
	if err := session.Run(inputs, outputs); err != nil {
		return nil, err
	}
	result := make([][]float32, outputCount)
	for i, o := range outputs {
		if o == nil {
			continue
		}
		data, err := extractFloat32(o)
		o.Destroy()
		if err != nil {
			return nil, err
		}
		result[i] = data
	}
	return result, nil
}

// extractFloat32 reads an output tensor, converting fp16 outputs.
func extractFloat32(v ort.Value) ([]float32, error) {
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		src := t.GetData()
		out := make([]float32, len(src))
		copy(out, src)
		return out, nil
	case *ort.Tensor[uint16]:
		return tensorutil.Data(tensorutil.FromFloat16(t.GetData(), len(t.GetData()))), nil
	default:
		return nil, fmt.Errorf("unsupported output tensor type %T", v)
	}
}

type textEncoder struct{ b *Backend }

// Encode tokenizes the text and runs the CLIP encoder. The result has
// shape [1, seq, channels].
func (e *textEncoder) Encode(text string) (*tensor.Dense, error) {
	tokens := e.b.tokenizer.Encode(text)
	ids := make([]int64, len(tokens))
	for i, t := range tokens {
		ids[i] = int64(t)
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(len(ids))), ids)
	if err != nil {
		return nil, err
	}
	defer input.Destroy()

	// last_hidden_state, pooler_output
	outputs, err := run(e.b.clip, []ort.Value{input}, 2)
	if err != nil {
		return nil, fmt.Errorf("clip: %w", err)
	}

	hidden := outputs[0]
	channels := len(hidden) / len(ids)
	return tensorutil.FromSlice(hidden, 1, len(ids), channels), nil
}

type noisePredictor struct{ b *Backend }

// Predict runs one UNet forward pass over the full batch. Hidden states
// arrive in [batch, channels, 1, seq] layout and are flattened back to the
// [batch, seq, channels] layout the ONNX graph expects.
func (p *noisePredictor) Predict(latents *tensor.Dense, timeStep int, hiddenStates *tensor.Dense, additionalResiduals *tensor.Dense) (*tensor.Dense, error) {
	shape := latents.Shape()
	sample, err := ort.NewTensor(shapeOf(shape), tensorutil.Data(latents))
	if err != nil {
		return nil, err
	}
	defer sample.Destroy()

	ts, err := ort.NewTensor(ort.NewShape(1), []int64{int64(timeStep)})
	if err != nil {
		return nil, err
	}
	defer ts.Destroy()

	embShape := hiddenStates.Shape()
	states, err := restoreHiddenLayout(hiddenStates)
	if err != nil {
		return nil, err
	}
	emb, err := ort.NewTensor(ort.NewShape(int64(embShape[0]), int64(embShape[3]), int64(embShape[1])), states)
	if err != nil {
		return nil, err
	}
	defer emb.Destroy()

	inputs := []ort.Value{sample, ts, emb}
	if additionalResiduals != nil {
		residuals, err := ort.NewTensor(shapeOf(additionalResiduals.Shape()), tensorutil.Data(additionalResiduals))
		if err != nil {
			return nil, err
		}
		defer residuals.Destroy()
		inputs = append(inputs, residuals)
	}

	outputs, err := run(p.b.unet, inputs, 1)
	if err != nil {
		return nil, fmt.Errorf("unet: %w", err)
	}
	return tensorutil.FromSlice(outputs[0], shape...), nil
}

// restoreHiddenLayout undoes the [b, ch, 1, seq] permutation.
func restoreHiddenLayout(t *tensor.Dense) ([]float32, error) {
	shape := t.Shape()
	n := tensorutil.Clone(t)
	if err := n.Reshape(shape[0], shape[1], shape[3]); err != nil {
		return nil, err
	}
	if err := n.T(0, 2, 1); err != nil {
		return nil, err
	}
	if err := n.Transpose(); err != nil {
		return nil, err
	}
	return tensorutil.Data(n), nil
}

type imageEncoder struct{ b *Backend }

// Encode runs the VAE encoder and samples from the returned latent
// distribution: the graph emits mean and log-variance stacked along the
// channel axis.
func (e *imageEncoder) Encode(img image.Image, scaleFactor float32, source rng.Source) (*tensor.Dense, error) {
	prepared, w, h := pixel.PrepareImage(img, 0)
	input := pixel.ImageToTensor(prepared)

	value, err := ort.NewTensor(shapeOf(input.Shape()), tensorutil.Data(input))
	if err != nil {
		return nil, err
	}
	defer value.Destroy()

	outputs, err := run(e.b.vaeEncoder, []ort.Value{value}, 1)
	if err != nil {
		return nil, fmt.Errorf("vae encoder: %w", err)
	}

	latentH, latentW := h/diffusion.LatentDownsample, w/diffusion.LatentDownsample
	moments := outputs[0]
	half := len(moments) / 2
	mean, logvar := moments[:half], moments[half:]

	noise := tensorutil.Data(source.NormalTensor([]int{1, diffusion.LatentChannels, latentH, latentW}, 0, 1))
	latent := make([]float32, half)
	for i := range latent {
		std := float32(math.Exp(0.5 * float64(logvar[i])))
		latent[i] = (mean[i] + std*noise[i]) * scaleFactor
	}
	return tensorutil.FromSlice(latent, 1, diffusion.LatentChannels, latentH, latentW), nil
}

type imageDecoder struct{ b *Backend }

// Decode scales each latent back to VAE range and decodes it to pixels.
func (d *imageDecoder) Decode(latents []*tensor.Dense, scaleFactor float32) ([]image.Image, error) {
	images := make([]image.Image, 0, len(latents))
	for _, latent := range latents {
		scaled := tensorutil.Scale(latent, 1.0/scaleFactor)

		value, err := ort.NewTensor(shapeOf(scaled.Shape()), tensorutil.Data(scaled))
		if err != nil {
			return nil, err
		}
		outputs, err := run(d.b.vaeDecoder, []ort.Value{value}, 1)
		value.Destroy()
		if err != nil {
			return nil, fmt.Errorf("vae decoder: %w", err)
		}

		shape := latent.Shape()
		h := shape[2] * diffusion.LatentDownsample
		w := shape[3] * diffusion.LatentDownsample
		decoded, err := pixel.TensorToImages(tensorutil.FromSlice(outputs[0], 1, 3, h, w))
		if err != nil {
			return nil, err
		}
		images = append(images, decoded...)
	}
	return images, nil
}

func shapeOf(shape tensor.Shape) ort.Shape {
	dims := make([]int64, len(shape))
	for i, s := range shape {
		dims[i] = int64(s)
	}
	return ort.NewShape(dims...)
}

// pipeline.go - Denoising-Orchestrierung.
//
// Dieses Modul enthaelt:
// - GenerateConfig und Defaults
// - ProgressRecord und Observer-Vertrag
// - Pipeline.GenerateImages als vollstaendigen Generierungslauf
package diffusion

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/pdevine/tensor"

	"github.com/latentforge/latentforge/rng"
	"github.com/latentforge/latentforge/tensorutil"
)

// Latent geometry of the SD v1.x family: 4 channels at 1/8 resolution.
const (
	LatentChannels   = 4
	LatentDownsample = 8

	// DefaultScaleFactor is the VAE scaling constant of the SD v1.x family.
	DefaultScaleFactor = 0.18215
)

// Mode selects between pure text conditioning and starting-image refinement.
type Mode string

const (
	ModeTextToImage  Mode = "txt2img"
	ModeImageToImage Mode = "img2img"
)

// GenerateConfig describes one generation request. The zero value is not
// usable; applyDefaults fills the optional fields.
type GenerateConfig struct {
	Prompt         string
	NegativePrompt string

	StepCount  int
	ImageCount int
	Width      int
	Height     int

	Scheduler       SchedulerKind
	SchedulerConfig SchedulerConfig
	RNG             rng.Kind
	Seed            uint64

	// GuidanceScale is a pointer so an explicit 0 (unconditional output)
	// stays distinguishable from an absent value.
	GuidanceScale *float32

	Mode          Mode
	Strength      float32
	StartingImage image.Image
	ControlImages []image.Image

	EncodeScaleFactor float32
	DecodeScaleFactor float32

	DisableSafety bool
}

func (c *GenerateConfig) applyDefaults() {
	if c.StepCount <= 0 {
		c.StepCount = 25
	}
	if c.ImageCount <= 0 {
		c.ImageCount = 1
	}
	if c.Width <= 0 {
		c.Width = 512
	}
	if c.Height <= 0 {
		c.Height = 512
	}
	if c.Scheduler == "" {
		c.Scheduler = SchedulerPNDM
	}
	if c.SchedulerConfig == (SchedulerConfig{}) {
		c.SchedulerConfig = DefaultSchedulerConfig()
	}
	if c.RNG == "" {
		c.RNG = rng.KindNumpy
	}
	if c.GuidanceScale == nil {
		scale := float32(7.5)
		c.GuidanceScale = &scale
	}
	if c.Mode == "" {
		c.Mode = ModeTextToImage
	}
	if c.EncodeScaleFactor == 0 {
		c.EncodeScaleFactor = DefaultScaleFactor
	}
	if c.DecodeScaleFactor == 0 {
		c.DecodeScaleFactor = DefaultScaleFactor
	}
}

// ProgressRecord is the immutable snapshot handed to the observer after
// every completed step. The pipeline does not retain it afterwards.
type ProgressRecord struct {
	Pipeline   *Pipeline
	Prompt     string
	Step       int
	TotalSteps int
	Latents    []*tensor.Dense
	Config     *GenerateConfig
}

// ProgressFunc observes per-step progress. Returning false stops the run:
// the pipeline then returns no images at all, not partial results.
type ProgressFunc func(ProgressRecord) bool

// Pipeline wires the capability interfaces into a generation run. Encoder,
// ControlNet and Safety are optional; the rest is required.
type Pipeline struct {
	TextEncoder TextEncoder
	Predictor   NoisePredictor
	Encoder     ImageEncoder
	Decoder     ImageDecoder
	ControlNet  ControlSignalNetwork
	Safety      SafetyChecker
}

// GenerateImages runs the full denoising loop and returns one decoded image
// per requested image. Safety-filtered results are nil placeholders, kept
// one-for-one with the requested count. An observer stop returns an empty
// slice and a nil error.
func (p *Pipeline) GenerateImages(ctx context.Context, config *GenerateConfig, onProgress ProgressFunc) ([]image.Image, error) {
	config.applyDefaults()
	if err := p.validate(config); err != nil {
		return nil, err
	}

	start := time.Now()
	source, err := rng.NewSource(config.RNG, config.Seed)
	if err != nil {
		return nil, err
	}

	hiddenStates, err := p.encodePrompts(config)
	if err != nil {
		return nil, err
	}

	schedulers := make([]Scheduler, config.ImageCount)
	for i := range schedulers {
		schedulers[i], err = NewScheduler(config.Scheduler, config.StepCount, config.SchedulerConfig)
		if err != nil {
			return nil, err
		}
	}

	latents, err := p.initLatents(config, schedulers, source)
	if err != nil {
		return nil, err
	}

	var strength *float32
	if config.Mode == ModeImageToImage {
		strength = &config.Strength
	}
	timeSteps := schedulers[0].CalculateTimesteps(strength)

	slog.Info("starting denoising loop", "scheduler", config.Scheduler,
		"steps", len(timeSteps), "images", config.ImageCount, "seed", config.Seed)

	for i, timeStep := range timeSteps {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		prediction, err := p.predictNoise(config, latents, hiddenStates, timeStep)
		if err != nil {
			return nil, err
		}

		perImage, err := tensorutil.Chunk(prediction, config.ImageCount)
		if err != nil {
			return nil, err
		}
		for j := range latents {
			guided, err := ApplyGuidance(perImage[j], *config.GuidanceScale)
			if err != nil {
				return nil, err
			}
			latents[j], err = schedulers[j].Step(guided, latents[j], timeStep)
			if err != nil {
				return nil, err
			}
		}

		slog.Debug("denoise step", "step", i+1, "total", len(timeSteps), "timestep", timeStep)

		if onProgress != nil {
			record := ProgressRecord{
				Pipeline:   p,
				Prompt:     config.Prompt,
				Step:       i + 1,
				TotalSteps: len(timeSteps),
				Latents:    latents,
				Config:     config,
			}
			if !onProgress(record) {
				slog.Info("generation stopped by observer", "step", i+1)
				return []image.Image{}, nil
			}
		}
	}

	images, err := p.Decoder.Decode(latents, config.DecodeScaleFactor)
	if err != nil {
		return nil, fmt.Errorf("decode latents: %w", err)
	}

	if p.Safety != nil && !config.DisableSafety {
		for i, img := range images {
			if img == nil {
				continue
			}
			safe, err := p.Safety.IsSafe(img)
			if err != nil {
				return nil, fmt.Errorf("safety check: %w", err)
			}
			if !safe {
				slog.Warn("image failed safety check, withholding result", "image", i)
				images[i] = nil
			}
		}
	}

	slog.Info("generation complete", "images", len(images), "duration", time.Since(start))
	return images, nil
}

// validate fails fast on configuration problems, before any capability call.
func (p *Pipeline) validate(config *GenerateConfig) error {
	switch {
	case p.TextEncoder == nil:
		return configErrorf("text encoder is required")
	case p.Predictor == nil:
		return configErrorf("noise predictor is required")
	case p.Decoder == nil:
		return configErrorf("image decoder is required")
	case config.StartingImage != nil && p.Encoder == nil:
		return configErrorf("starting image supplied but no image encoder is available")
	case config.Mode == ModeImageToImage && config.StartingImage == nil:
		return configErrorf("image-to-image mode requires a starting image")
	case config.Mode == ModeImageToImage && (config.Strength < 0 || config.Strength > 1):
		return configErrorf(fmt.Sprintf("strength must be in [0, 1], got %g", config.Strength))
	case config.Width%LatentDownsample != 0 || config.Height%LatentDownsample != 0:
		return configErrorf(fmt.Sprintf("width and height must be multiples of %d, got %dx%d", LatentDownsample, config.Width, config.Height))
	case config.StepCount >= config.SchedulerConfig.TrainStepCount:
		return configErrorf(fmt.Sprintf("step count must be below the training schedule length %d, got %d", config.SchedulerConfig.TrainStepCount, config.StepCount))
	}
	return nil
}

// encodePrompts encodes negative and positive prompts, concatenates them
// negative-first along the batch axis and permutes into the hidden-state
// layout the noise predictor expects.
func (p *Pipeline) encodePrompts(config *GenerateConfig) (*tensor.Dense, error) {
	negative, err := p.TextEncoder.Encode(config.NegativePrompt)
	if err != nil {
		return nil, fmt.Errorf("encode negative prompt: %w", err)
	}
	positive, err := p.TextEncoder.Encode(config.Prompt)
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}
	embeddings, err := tensorutil.Concat(0, negative, positive)
	if err != nil {
		return nil, err
	}
	return tensorutil.HiddenLayout(embeddings)
}

// initLatents draws one latent per image, scaled by the scheduler's initial
// noise sigma, and mixes in the encoded starting image when refining.
func (p *Pipeline) initLatents(config *GenerateConfig, schedulers []Scheduler, source rng.Source) ([]*tensor.Dense, error) {
	shape := []int{1, LatentChannels, config.Height / LatentDownsample, config.Width / LatentDownsample}

	var encoded *tensor.Dense
	if config.Mode == ModeImageToImage {
		var err error
		encoded, err = p.Encoder.Encode(config.StartingImage, config.EncodeScaleFactor, source)
		if err != nil {
			return nil, fmt.Errorf("encode starting image: %w", err)
		}
	}

	latents := make([]*tensor.Dense, config.ImageCount)
	for i := range latents {
		noise := source.NormalTensor(shape, 0, 1)
		latent := tensorutil.Scale(noise, schedulers[i].InitNoiseSigma())
		if encoded != nil {
			var err error
			latent, err = schedulers[i].AddNoise(encoded, latent, config.Strength)
			if err != nil {
				return nil, err
			}
		}
		latents[i] = latent
	}
	return latents, nil
}

// predictNoise issues the single per-step predictor call covering all
// images and the two-way guidance expansion.
func (p *Pipeline) predictNoise(config *GenerateConfig, latents []*tensor.Dense, hiddenStates *tensor.Dense, timeStep int) (*tensor.Dense, error) {
	expanded := make([]*tensor.Dense, len(latents))
	for i, latent := range latents {
		var err error
		expanded[i], err = tensorutil.Duplicate(latent)
		if err != nil {
			return nil, err
		}
	}
	batch, err := tensorutil.Concat(0, expanded...)
	if err != nil {
		return nil, err
	}

	var residuals *tensor.Dense
	if p.ControlNet != nil && len(config.ControlImages) > 0 {
		residuals, err = p.ControlNet.Execute(batch, timeStep, hiddenStates, config.ControlImages)
		if err != nil {
			return nil, fmt.Errorf("control network: %w", err)
		}
	}

	prediction, err := p.Predictor.Predict(batch, timeStep, hiddenStates, residuals)
	if err != nil {
		return nil, fmt.Errorf("predict noise: %w", err)
	}
	return prediction, nil
}

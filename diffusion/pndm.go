// pndm.go - PNDM Scheduler (pseudo linear multistep).
//
// Dieses Modul enthaelt:
// - PNDMScheduler mit begrenztem ets-Verlauf
// - Warm-up Formeln niedriger Ordnung fuer die ersten Schritte
// - DDIM-artige Closed-Form Aktualisierung ueber Alpha-Kumulativprodukte
package diffusion

import (
	"fmt"
	"math"

	"github.com/pdevine/tensor"

	"github.com/latentforge/latentforge/tensorutil"
)

// PNDMScheduler advances a sample with a pseudo linear multistep rule. It
// keeps up to four previous noise predictions and blends them with
// Adams-Bashforth weights once enough history exists; the first two calls
// fall back to lower-order formulas.
type PNDMScheduler struct {
	config    SchedulerConfig
	stepCount int
	timeSteps []int

	alphasCumProd     []float64
	finalAlphaCumProd float64

	ets           []*tensor.Dense
	currentSample *tensor.Dense
	counter       int
}

// NewPNDMScheduler creates a PNDM scheduler for stepCount inference steps.
func NewPNDMScheduler(stepCount int, config SchedulerConfig) *PNDMScheduler {
	products := alphaCumulativeProducts(betaTable(config))

	// Training-step spacing with steps_offset=1, descending.
	stepRatio := config.TrainStepCount / stepCount
	timeSteps := make([]int, stepCount)
	for i := range timeSteps {
		timeSteps[i] = (stepCount-1-i)*stepRatio + 1
	}

	return &PNDMScheduler{
		config:            config,
		stepCount:         stepCount,
		timeSteps:         timeSteps,
		alphasCumProd:     products,
		finalAlphaCumProd: products[0],
	}
}

func (s *PNDMScheduler) InitNoiseSigma() float32 { return 1.0 }

func (s *PNDMScheduler) TimeSteps() []int { return s.timeSteps }

func (s *PNDMScheduler) CalculateTimesteps(strength *float32) []int {
	return sliceTimesteps(s.timeSteps, s.stepCount, strength)
}

// Step applies one linear-multistep update. The model output history is
// trimmed to the last three entries before the current output is appended,
// so at most four predictions enter the weighted combination.
func (s *PNDMScheduler) Step(output, sample *tensor.Dense, timeStep int) (*tensor.Dense, error) {
	if !output.Shape().Eq(sample.Shape()) {
		return nil, fmt.Errorf("pndm step: output shape %v does not match sample shape %v", output.Shape(), sample.Shape())
	}

	stepRatio := s.config.TrainStepCount / s.stepCount
	prevStep := timeStep - stepRatio

	if s.counter != 1 {
		if len(s.ets) > 3 {
			s.ets = s.ets[len(s.ets)-3:]
		}
		s.ets = append(s.ets, output)
	} else {
		// Second call replays the held sample one schedule position forward.
		prevStep = timeStep
		timeStep += stepRatio
	}

	var modelOutput *tensor.Dense
	switch {
	case len(s.ets) == 1 && s.counter == 0:
		modelOutput = output
		s.currentSample = sample
	case len(s.ets) == 1 && s.counter == 1:
		modelOutput = weightedSum([]float64{0.5, 0.5}, output, s.ets[len(s.ets)-1])
		sample = s.currentSample
		s.currentSample = nil
	case len(s.ets) == 2:
		modelOutput = weightedSum([]float64{3.0 / 2.0, -1.0 / 2.0},
			s.ets[len(s.ets)-1], s.ets[len(s.ets)-2])
	case len(s.ets) == 3:
		modelOutput = weightedSum([]float64{23.0 / 12.0, -16.0 / 12.0, 5.0 / 12.0},
			s.ets[len(s.ets)-1], s.ets[len(s.ets)-2], s.ets[len(s.ets)-3])
	default:
		modelOutput = weightedSum([]float64{55.0 / 24.0, -59.0 / 24.0, 37.0 / 24.0, -9.0 / 24.0},
			s.ets[len(s.ets)-1], s.ets[len(s.ets)-2], s.ets[len(s.ets)-3], s.ets[len(s.ets)-4])
	}

	prev := s.previousSample(sample, timeStep, prevStep, modelOutput)
	s.counter++
	return prev, nil
}

// previousSample is the closed-form transition from timeStep to prevStep
// given the (possibly blended) noise estimate.
func (s *PNDMScheduler) previousSample(sample *tensor.Dense, timeStep, prevStep int, modelOutput *tensor.Dense) *tensor.Dense {
	alphaProdT := s.alphasCumProd[timeStep]
	alphaProdTPrev := s.finalAlphaCumProd
	if prevStep >= 0 {
		alphaProdTPrev = s.alphasCumProd[prevStep]
	}
	betaProdT := 1.0 - alphaProdT
	betaProdTPrev := 1.0 - alphaProdTPrev

	sampleCoeff := math.Sqrt(alphaProdTPrev / alphaProdT)
	outputDenomCoeff := alphaProdT*math.Sqrt(betaProdTPrev) +
		math.Sqrt(alphaProdT*betaProdT*alphaProdTPrev)
	outputCoeff := (alphaProdTPrev - alphaProdT) / outputDenomCoeff

	sampleData := tensorutil.Data(sample)
	outputData := tensorutil.Data(modelOutput)
	prev := make([]float32, len(sampleData))
	for i := range prev {
		prev[i] = float32(sampleCoeff*float64(sampleData[i]) - outputCoeff*float64(outputData[i]))
	}
	return tensorutil.FromSlice(prev, sample.Shape()...)
}

// AddNoise mixes an encoded starting image with noise at the first visited
// timestep for the given strength. With strength 0 no schedule position
// exists and the noise is returned unchanged.
func (s *PNDMScheduler) AddNoise(original, noise *tensor.Dense, strength float32) (*tensor.Dense, error) {
	timeSteps := s.CalculateTimesteps(&strength)
	if len(timeSteps) == 0 {
		return tensorutil.Clone(noise), nil
	}
	return mixNoise(original, noise, s.alphasCumProd[timeSteps[0]])
}

// weightedSum blends tensors element-wise with the given coefficients.
func weightedSum(weights []float64, ts ...*tensor.Dense) *tensor.Dense {
	out := make([]float32, len(tensorutil.Data(ts[0])))
	for k, t := range ts {
		data := tensorutil.Data(t)
		w := weights[k]
		for i, v := range data {
			out[i] += float32(w * float64(v))
		}
	}
	return tensorutil.FromSlice(out, ts[0].Shape()...)
}

// mixNoise applies sqrt(a)*original + sqrt(1-a)*noise for one cumulative
// alpha, per image in the batch.
func mixNoise(original, noise *tensor.Dense, alphaCumProd float64) (*tensor.Dense, error) {
	if !original.Shape().Eq(noise.Shape()) {
		return nil, fmt.Errorf("add noise: original shape %v does not match noise shape %v", original.Shape(), noise.Shape())
	}
	sqrtAlpha := float32(math.Sqrt(alphaCumProd))
	sqrtOneMinus := float32(math.Sqrt(1.0 - alphaCumProd))

	origData := tensorutil.Data(original)
	noiseData := tensorutil.Data(noise)
	out := make([]float32, len(origData))
	for i := range out {
		out[i] = sqrtAlpha*origData[i] + sqrtOneMinus*noiseData[i]
	}
	return tensorutil.FromSlice(out, original.Shape()...), nil
}

// dpmsolver.go - DPM-Solver++ Multistep Scheduler (2. Ordnung).
//
// Dieses Modul enthaelt:
// - DPMSolverScheduler mit log-SNR Koeffiziententabellen
// - Erststufige Aktualisierung beim ersten Aufruf
// - Zweistufige Multistep-Korrektur mit genau einer gehaltenen Data-Prediction
package diffusion

import (
	"fmt"
	"math"

	"github.com/pdevine/tensor"
	"gonum.org/v1/gonum/floats"

	"github.com/latentforge/latentforge/tensorutil"
)

// DPMSolverScheduler advances a sample with the second-order DPM-Solver++
// multistep rule. The raw noise prediction is first converted into an
// estimate of the clean sample; the update then works in the log-SNR
// (lambda) parameterization. Exactly one previous data prediction is kept
// and overwritten on every call.
type DPMSolverScheduler struct {
	config    SchedulerConfig
	stepCount int
	timeSteps []int

	alphasCumProd []float64
	alphaT        []float64
	sigmaT        []float64
	lambdaT       []float64

	prevPrediction *tensor.Dense
	prevTimeStep   int
	counter        int
}

// NewDPMSolverScheduler creates a DPM-Solver++ scheduler for stepCount
// inference steps.
func NewDPMSolverScheduler(stepCount int, config SchedulerConfig) *DPMSolverScheduler {
	products := alphaCumulativeProducts(betaTable(config))

	train := config.TrainStepCount
	alphaT := make([]float64, train)
	sigmaT := make([]float64, train)
	lambdaT := make([]float64, train)
	for i, p := range products {
		alphaT[i] = math.Sqrt(p)
		sigmaT[i] = math.Sqrt(1.0 - p)
		lambdaT[i] = math.Log(alphaT[i]) - math.Log(sigmaT[i])
	}

	// Rounded linspace over the training range, descending, final zero
	// dropped. Length is exactly stepCount.
	span := make([]float64, stepCount+1)
	floats.Span(span, 0, float64(train-1))
	timeSteps := make([]int, stepCount)
	for i := range timeSteps {
		timeSteps[i] = int(math.Round(span[stepCount-i]))
	}

	return &DPMSolverScheduler{
		config:        config,
		stepCount:     stepCount,
		timeSteps:     timeSteps,
		alphasCumProd: products,
		alphaT:        alphaT,
		sigmaT:        sigmaT,
		lambdaT:       lambdaT,
	}
}

// InitNoiseSigma is the sigma at the noisiest end of the schedule. Unlike
// PNDM this is not 1, so callers must scale the initial draw.
func (s *DPMSolverScheduler) InitNoiseSigma() float32 {
	return float32(s.sigmaT[s.timeSteps[0]])
}

func (s *DPMSolverScheduler) TimeSteps() []int { return s.timeSteps }

func (s *DPMSolverScheduler) CalculateTimesteps(strength *float32) []int {
	return sliceTimesteps(s.timeSteps, s.stepCount, strength)
}

// Step converts the model output into a data prediction and applies a
// first-order update on the very first call, a second-order multistep
// correction on every call after that.
func (s *DPMSolverScheduler) Step(output, sample *tensor.Dense, timeStep int) (*tensor.Dense, error) {
	if !output.Shape().Eq(sample.Shape()) {
		return nil, fmt.Errorf("dpm++ step: output shape %v does not match sample shape %v", output.Shape(), sample.Shape())
	}

	prevTimeStep := 0
	if idx := s.indexOf(timeStep); idx >= 0 && idx+1 < len(s.timeSteps) {
		prevTimeStep = s.timeSteps[idx+1]
	}

	prediction := s.dataPrediction(output, sample, timeStep)

	// A repeated log-SNR position leaves no step to divide the correction
	// by, so such calls stay first order.
	var next *tensor.Dense
	if s.prevPrediction == nil || s.lambdaT[timeStep] == s.lambdaT[s.prevTimeStep] {
		next = s.firstOrderUpdate(prediction, sample, timeStep, prevTimeStep)
	} else {
		next = s.secondOrderUpdate(prediction, sample, timeStep, prevTimeStep)
	}

	s.prevPrediction = prediction
	s.prevTimeStep = timeStep
	s.counter++
	return next, nil
}

// dataPrediction estimates the clean sample from the epsilon prediction:
// x0 = (sample - sigma_t * output) / alpha_t.
func (s *DPMSolverScheduler) dataPrediction(output, sample *tensor.Dense, timeStep int) *tensor.Dense {
	alpha := s.alphaT[timeStep]
	sigma := s.sigmaT[timeStep]

	sampleData := tensorutil.Data(sample)
	outputData := tensorutil.Data(output)
	out := make([]float32, len(sampleData))
	for i := range out {
		out[i] = float32((float64(sampleData[i]) - sigma*float64(outputData[i])) / alpha)
	}
	return tensorutil.FromSlice(out, sample.Shape()...)
}

// firstOrderUpdate: x_prev = (sigma_prev/sigma_t)*x - alpha_prev*(e^-h - 1)*x0
// with h = lambda_prev - lambda_t.
func (s *DPMSolverScheduler) firstOrderUpdate(prediction, sample *tensor.Dense, timeStep, prevTimeStep int) *tensor.Dense {
	h := s.lambdaT[prevTimeStep] - s.lambdaT[timeStep]
	sampleCoeff := s.sigmaT[prevTimeStep] / s.sigmaT[timeStep]
	predCoeff := s.alphaT[prevTimeStep] * (math.Exp(-h) - 1.0)

	sampleData := tensorutil.Data(sample)
	predData := tensorutil.Data(prediction)
	out := make([]float32, len(sampleData))
	for i := range out {
		out[i] = float32(sampleCoeff*float64(sampleData[i]) - predCoeff*float64(predData[i]))
	}
	return tensorutil.FromSlice(out, sample.Shape()...)
}

// secondOrderUpdate adds the Heun-like correction weighted by the ratio of
// the previous and current log-SNR step sizes.
func (s *DPMSolverScheduler) secondOrderUpdate(prediction, sample *tensor.Dense, timeStep, prevTimeStep int) *tensor.Dense {
	lambdaPrev := s.lambdaT[prevTimeStep]
	lambdaCurr := s.lambdaT[timeStep]
	lambdaLast := s.lambdaT[s.prevTimeStep]

	h := lambdaPrev - lambdaCurr
	hLast := lambdaCurr - lambdaLast
	r := hLast / h

	sampleCoeff := s.sigmaT[prevTimeStep] / s.sigmaT[timeStep]
	predCoeff := s.alphaT[prevTimeStep] * (math.Exp(-h) - 1.0)

	sampleData := tensorutil.Data(sample)
	currData := tensorutil.Data(prediction)
	lastData := tensorutil.Data(s.prevPrediction)
	out := make([]float32, len(sampleData))
	for i := range out {
		d0 := float64(currData[i])
		d1 := (d0 - float64(lastData[i])) / r
		out[i] = float32(sampleCoeff*float64(sampleData[i]) - predCoeff*d0 - 0.5*predCoeff*d1)
	}
	return tensorutil.FromSlice(out, sample.Shape()...)
}

// AddNoise mixes an encoded starting image with noise using this variant's
// own coefficient table. The mixing law matches PNDM structurally but the
// tables are derived independently.
func (s *DPMSolverScheduler) AddNoise(original, noise *tensor.Dense, strength float32) (*tensor.Dense, error) {
	timeSteps := s.CalculateTimesteps(&strength)
	if len(timeSteps) == 0 {
		return tensorutil.Clone(noise), nil
	}
	return mixNoise(original, noise, s.alphasCumProd[timeSteps[0]])
}

func (s *DPMSolverScheduler) indexOf(timeStep int) int {
	for i, t := range s.timeSteps {
		if t == timeStep {
			return i
		}
	}
	return -1
}

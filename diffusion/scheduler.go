// scheduler.go - Scheduler-Vertrag und Noise-Schedule-Berechnung.
//
// Dieses Modul enthaelt:
// - Scheduler Interface und Kind-Dispatch
// - Beta-Schedule (linear, scaled-linear) und Alpha-Kumulativprodukte
// - Strength-abhaengiges Slicing der Timestep-Sequenz
package diffusion

import (
	"fmt"
	"math"

	"github.com/pdevine/tensor"
	"gonum.org/v1/gonum/floats"
)

// SchedulerKind selects one of the two step-update algorithms. The set is
// closed: dispatch happens over this enum, not over open plugin registration.
type SchedulerKind string

const (
	SchedulerPNDM        SchedulerKind = "pndm"
	SchedulerDPMSolverPP SchedulerKind = "dpm++"
)

// SchedulerKinds returns all supported scheduler kinds.
func SchedulerKinds() []SchedulerKind {
	return []SchedulerKind{SchedulerPNDM, SchedulerDPMSolverPP}
}

// ParseSchedulerKind parses a user-supplied scheduler name.
func ParseSchedulerKind(s string) (SchedulerKind, error) {
	switch SchedulerKind(s) {
	case SchedulerPNDM, SchedulerDPMSolverPP:
		return SchedulerKind(s), nil
	case "":
		return SchedulerPNDM, nil
	}
	return "", fmt.Errorf("unknown scheduler %q", s)
}

// BetaSchedule names the spacing of the training beta table.
type BetaSchedule string

const (
	BetaScheduleLinear       BetaSchedule = "linear"
	BetaScheduleScaledLinear BetaSchedule = "scaledlinear"
)

// SchedulerConfig holds the training-schedule parameters shared by both
// scheduler variants. The defaults are the Stable Diffusion v1.x values.
type SchedulerConfig struct {
	TrainStepCount int
	BetaStart      float64
	BetaEnd        float64
	BetaSchedule   BetaSchedule
}

// DefaultSchedulerConfig returns the SD v1.x training schedule.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TrainStepCount: 1000,
		BetaStart:      0.00085,
		BetaEnd:        0.012,
		BetaSchedule:   BetaScheduleScaledLinear,
	}
}

// Scheduler advances one latent sample through the denoising trajectory.
// One instance is owned per image in the batch; Step mutates internal
// history, so instances are never shared.
type Scheduler interface {
	// InitNoiseSigma is the factor the initial random draw must be scaled by.
	InitNoiseSigma() float32

	// TimeSteps is the full descending inference schedule.
	TimeSteps() []int

	// CalculateTimesteps returns the visited schedule. A nil strength
	// (text-to-image) yields the full schedule; otherwise the tail
	// corresponding to the injected noise level.
	CalculateTimesteps(strength *float32) []int

	// Step advances sample one position given the model's noise prediction.
	Step(output, sample *tensor.Dense, timeStep int) (*tensor.Dense, error)

	// AddNoise mixes an encoded starting image with noise at the schedule
	// position selected by strength.
	AddNoise(original, noise *tensor.Dense, strength float32) (*tensor.Dense, error)
}

// NewScheduler constructs a scheduler of the given kind for stepCount
// inference steps.
func NewScheduler(kind SchedulerKind, stepCount int, config SchedulerConfig) (Scheduler, error) {
	if stepCount < 1 {
		return nil, fmt.Errorf("step count must be >= 1, got %d", stepCount)
	}
	// At stepCount == TrainStepCount the offset PNDM schedule tops out at
	// TrainStepCount itself, past the end of the coefficient tables.
	if stepCount >= config.TrainStepCount {
		return nil, fmt.Errorf("step count %d must be below training schedule length %d", stepCount, config.TrainStepCount)
	}
	switch kind {
	case SchedulerPNDM:
		return NewPNDMScheduler(stepCount, config), nil
	case SchedulerDPMSolverPP:
		return NewDPMSolverScheduler(stepCount, config), nil
	}
	return nil, fmt.Errorf("unknown scheduler %q", kind)
}

// betaTable computes the per-timestep beta values for the configured
// spacing. Anything but linear means scaled-linear, the SD default.
func betaTable(config SchedulerConfig) []float64 {
	betas := make([]float64, config.TrainStepCount)
	if config.BetaSchedule == BetaScheduleLinear {
		floats.Span(betas, config.BetaStart, config.BetaEnd)
		return betas
	}
	// linspace over sqrt(beta), squared afterwards
	floats.Span(betas, math.Sqrt(config.BetaStart), math.Sqrt(config.BetaEnd))
	for i, b := range betas {
		betas[i] = b * b
	}
	return betas
}

// alphaCumulativeProducts computes cumprod(1 - beta) over the training range.
func alphaCumulativeProducts(betas []float64) []float64 {
	products := make([]float64, len(betas))
	prod := 1.0
	for i, b := range betas {
		prod *= 1.0 - b
		products[i] = prod
	}
	return products
}

// sliceTimesteps applies the strength rule: initTimestep = floor(n*strength)
// clamped to [0, n], and the returned schedule is the tail starting at
// n - initTimestep. strength 0 visits nothing, strength 1 everything.
func sliceTimesteps(timeSteps []int, stepCount int, strength *float32) []int {
	if strength == nil {
		return timeSteps
	}
	initTimestep := int(float32(stepCount) * *strength)
	if initTimestep > stepCount {
		initTimestep = stepCount
	}
	if initTimestep < 0 {
		initTimestep = 0
	}
	start := stepCount - initTimestep
	if start > len(timeSteps) {
		return nil
	}
	return timeSteps[start:]
}

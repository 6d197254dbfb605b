// MODUL: guidance_test
// ZWECK: Tests fuer Classifier-Free Guidance
// INPUT: Zweier-Batches aus Noise-Predictions
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, tensorutil

package diffusion

import (
	"math"
	"testing"

	"github.com/latentforge/latentforge/tensorutil"
)

func guidanceBatch(uncond, cond []float32) ([]float32, []int) {
	data := append(append([]float32{}, uncond...), cond...)
	return data, []int{2, 1, 2, 2}
}

func TestApplyGuidance(t *testing.T) {
	uncond := []float32{0.1, 0.2, 0.3, 0.4}
	cond := []float32{0.5, 0.4, 0.1, 0.0}
	data, shape := guidanceBatch(uncond, cond)

	got, err := ApplyGuidance(tensorutil.FromSlice(data, shape...), 7.5)
	if err != nil {
		t.Fatalf("ApplyGuidance() error = %v", err)
	}
	if shape := got.Shape(); len(shape) != 4 || shape[0] != 1 || shape[2] != 2 {
		t.Fatalf("Shape = %v, erwartet [1 1 2 2]", shape)
	}
	for i, v := range tensorutil.Data(got) {
		want := uncond[i] + 7.5*(cond[i]-uncond[i])
		if math.Abs(float64(v-want)) > 1e-6 {
			t.Errorf("Index %d: %g, erwartet %g", i, v, want)
		}
	}
}

func TestApplyGuidanceScaleZeroKeepsUnconditional(t *testing.T) {
	uncond := []float32{0.1, 0.2, 0.3, 0.4}
	cond := []float32{0.9, 0.8, 0.7, 0.6}
	data, shape := guidanceBatch(uncond, cond)

	got, err := ApplyGuidance(tensorutil.FromSlice(data, shape...), 0)
	if err != nil {
		t.Fatalf("ApplyGuidance() error = %v", err)
	}
	for i, v := range tensorutil.Data(got) {
		if v != uncond[i] {
			t.Errorf("Index %d: %g, erwartet %g", i, v, uncond[i])
		}
	}
}

func TestApplyGuidanceScaleOneKeepsConditional(t *testing.T) {
	uncond := []float32{0.1, 0.2, 0.3, 0.4}
	cond := []float32{0.9, 0.8, 0.7, 0.6}
	data, shape := guidanceBatch(uncond, cond)

	got, err := ApplyGuidance(tensorutil.FromSlice(data, shape...), 1)
	if err != nil {
		t.Fatalf("ApplyGuidance() error = %v", err)
	}
	for i, v := range tensorutil.Data(got) {
		if math.Abs(float64(v-cond[i])) > 1e-6 {
			t.Errorf("Index %d: %g, erwartet %g", i, v, cond[i])
		}
	}
}

func TestApplyGuidanceRejectsBadBatch(t *testing.T) {
	for _, shape := range [][]int{{1, 4}, {3, 4}, {4}} {
		data := make([]float32, shape[0]*elementsOf(shape[1:]))
		if _, err := ApplyGuidance(tensorutil.FromSlice(data, shape...), 7.5); err == nil {
			t.Errorf("Shape %v: erwartet Fehler", shape)
		}
	}
}

func elementsOf(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// numpy.go - RandomState-kompatible Normalverteilung.
//
// Dieses Modul enthaelt:
// - numpySource mit Marsaglia-Polar-Transformation
// - Caching des zweiten Normalwerts wie in randomkit rk_gauss
package rng

import (
	"math"

	"github.com/pdevine/tensor"

	"github.com/latentforge/latentforge/tensorutil"
)

// numpySource reproduces the numpy legacy RandomState normal pipeline:
// MT19937 doubles through the Marsaglia polar method, with the second
// deviate of each pair cached for the following call.
type numpySource struct {
	mt       *mt19937
	gauss    float64
	hasGauss bool
}

func newNumpySource(seed uint64) *numpySource {
	return &numpySource{mt: newMT19937(uint32(seed))}
}

func (s *numpySource) NormalTensor(shape []int, mean, stdev float32) *tensor.Dense {
	data := make([]float32, elements(shape))
	for i := range data {
		data[i] = mean + stdev*float32(s.gaussian())
	}
	return tensorutil.FromSlice(data, shape...)
}

func (s *numpySource) gaussian() float64 {
	if s.hasGauss {
		s.hasGauss = false
		return s.gauss
	}

	var x1, x2, r2 float64
	for {
		x1 = 2.0*s.mt.float64() - 1.0
		x2 = 2.0*s.mt.float64() - 1.0
		r2 = x1*x1 + x2*x2
		if r2 < 1.0 && r2 != 0.0 {
			break
		}
	}

	f := math.Sqrt(-2.0 * math.Log(r2) / r2)
	s.gauss = f * x1
	s.hasGauss = true
	return f * x2
}

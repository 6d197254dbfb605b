// rng.go - Zufallsquellen fuer die Latent-Initialisierung.
//
// Dieses Modul enthaelt:
// - Source Interface fuer normalverteilte Tensoren
// - Kind Enum und Parsing
// - NewSource als Factory fuer die beiden Varianten
//
// Both variants share the same MT19937 uniform core but apply different
// normal transforms, matching the two reference ecosystems the rest of the
// pipeline wants to be interchangeable with: the numpy legacy RandomState
// pipeline (polar method with a cached second deviate) and the torch CPU
// normal_ pipeline (Box-Muller pair fill).
package rng

import (
	"fmt"

	"github.com/pdevine/tensor"
)

// Kind selects which reference distribution a Source reproduces.
type Kind string

const (
	KindNumpy Kind = "numpy"
	KindTorch Kind = "torch"
)

// Kinds returns all supported source kinds.
func Kinds() []Kind {
	return []Kind{KindNumpy, KindTorch}
}

// ParseKind parses a user-supplied kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindNumpy, KindTorch:
		return Kind(s), nil
	case "":
		return KindNumpy, nil
	}
	return "", fmt.Errorf("unknown rng kind %q", s)
}

// Source produces normally distributed tensors. Implementations are seeded
// at construction and deterministic: the same seed and call sequence yields
// the same tensors.
type Source interface {
	// NormalTensor draws a tensor of the given shape with elements from
	// N(mean, stdev²).
	NormalTensor(shape []int, mean, stdev float32) *tensor.Dense
}

// NewSource creates a seeded Source of the given kind.
func NewSource(kind Kind, seed uint64) (Source, error) {
	switch kind {
	case KindNumpy:
		return newNumpySource(seed), nil
	case KindTorch:
		return newTorchSource(seed), nil
	}
	return nil, fmt.Errorf("unknown rng kind %q", kind)
}

func elements(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

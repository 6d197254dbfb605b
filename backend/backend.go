// backend.go - Registrierung der Inferenz-Backends.
//
// Ein Backend stellt die Faehigkeits-Interfaces der Pipeline bereit. Das
// ONNX-Runtime-Backend registriert sich hier via Build-Tag "ort"; ohne
// Backend liefert Open einen Fehler.
package backend

import (
	"errors"

	"github.com/latentforge/latentforge/diffusion"
)

// ErrNoBackend is returned when the binary was built without an inference
// backend.
var ErrNoBackend = errors.New("no inference backend compiled in (rebuild with -tags ort)")

// Factory builds a pipeline from a model directory.
type Factory func(modelDir string) (*diffusion.Pipeline, error)

var factory Factory

// Register installs the active backend factory. Called from backend init
// functions; last registration wins.
func Register(f Factory) {
	factory = f
}

// Open builds the capability pipeline for the given model directory.
func Open(modelDir string) (*diffusion.Pipeline, error) {
	if factory == nil {
		return nil, ErrNoBackend
	}
	return factory(modelDir)
}

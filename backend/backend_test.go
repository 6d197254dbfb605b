// MODUL: backend_test
// ZWECK: Tests fuer die Backend-Registrierung
// INPUT: Fake-Factory
// OUTPUT: Testresultate
// NEBENEFFEKTE: setzt die globale Factory zurueck
// ABHAENGIGKEITEN: testing, diffusion

package backend

import (
	"errors"
	"testing"

	"github.com/latentforge/latentforge/diffusion"
)

func TestOpenWithoutBackend(t *testing.T) {
	prev := factory
	t.Cleanup(func() { factory = prev })

	factory = nil
	if _, err := Open("/tmp/models"); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("Open() error = %v, erwartet ErrNoBackend", err)
	}
}

func TestOpenUsesRegisteredFactory(t *testing.T) {
	prev := factory
	t.Cleanup(func() { factory = prev })

	var gotDir string
	want := &diffusion.Pipeline{}
	Register(func(modelDir string) (*diffusion.Pipeline, error) {
		gotDir = modelDir
		return want, nil
	})

	p, err := Open("/tmp/models")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if p != want {
		t.Error("Open() gibt nicht die Pipeline der Factory zurueck")
	}
	if gotDir != "/tmp/models" {
		t.Errorf("modelDir = %q, erwartet \"/tmp/models\"", gotDir)
	}
}

// MODUL: stepbar_test
// ZWECK: Tests fuer den Schritt-Fortschrittsbalken
// INPUT: Gesetzte Schrittzaehler
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing

package progress

import (
	"strings"
	"testing"
)

func TestStepBarSetClamps(t *testing.T) {
	bar := NewStepBar("Generating", 10)
	bar.Set(15)
	if bar.current != 10 {
		t.Errorf("current = %d, erwartet 10 (geklemmt)", bar.current)
	}
}

func TestStepBarString(t *testing.T) {
	bar := NewStepBar("Generating", 10)
	bar.Set(4)
	out := bar.String()

	if !strings.Contains(out, "4/10") {
		t.Errorf("Ausgabe enthaelt den Zaehler nicht: %q", out)
	}
	if !strings.Contains(out, "40%") {
		t.Errorf("Ausgabe enthaelt den Prozentwert nicht: %q", out)
	}
	if strings.Count(out, "█") != 4 {
		t.Errorf("Erwartet 4 gefuellte Zellen: %q", out)
	}
}

func TestStepBarComplete(t *testing.T) {
	bar := NewStepBar("Generating", 5)
	bar.Set(5)
	out := bar.String()
	if !strings.Contains(out, "100%") || !strings.Contains(out, "5/5") {
		t.Errorf("Ausgabe bei Abschluss: %q", out)
	}
}

// MODUL: tensorutil_test
// ZWECK: Tests fuer die Tensor-Hilfsfunktionen
// INPUT: Kleine Float32-Tensoren
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, go-cmp

package tensorutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/x448/float16"
)

func TestFromSliceAndData(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}
	got := FromSlice(data, 2, 3)
	if shape := got.Shape(); shape[0] != 2 || shape[1] != 3 {
		t.Fatalf("Shape = %v, erwartet [2 3]", shape)
	}
	if diff := cmp.Diff(data, Data(got)); diff != "" {
		t.Errorf("Daten weichen ab (-want +got):\n%s", diff)
	}
}

func TestFull(t *testing.T) {
	got := Full(0.5, 2, 2)
	want := []float32{0.5, 0.5, 0.5, 0.5}
	if diff := cmp.Diff(want, Data(got)); diff != "" {
		t.Errorf("Daten weichen ab (-want +got):\n%s", diff)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := FromSlice([]float32{1, 2, 3, 4}, 2, 2)
	clone := Clone(original)
	Data(clone)[0] = 99
	if Data(original)[0] != 1 {
		t.Error("Clone teilt Speicher mit dem Original")
	}
}

func TestScaleLeavesInputUntouched(t *testing.T) {
	in := FromSlice([]float32{1, 2, 3, 4}, 4)
	got := Scale(in, 2)
	if diff := cmp.Diff([]float32{2, 4, 6, 8}, Data(got)); diff != "" {
		t.Errorf("Skalierte Daten weichen ab (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{1, 2, 3, 4}, Data(in)); diff != "" {
		t.Errorf("Eingabe veraendert (-want +got):\n%s", diff)
	}
}

func TestConcatBatchAxis(t *testing.T) {
	a := FromSlice([]float32{1, 2, 3, 4}, 1, 4)
	b := FromSlice([]float32{5, 6, 7, 8}, 1, 4)
	got, err := Concat(0, a, b)
	if err != nil {
		t.Fatalf("Concat() error = %v", err)
	}
	if shape := got.Shape(); shape[0] != 2 || shape[1] != 4 {
		t.Fatalf("Shape = %v, erwartet [2 4]", shape)
	}
	if diff := cmp.Diff([]float32{1, 2, 3, 4, 5, 6, 7, 8}, Data(got)); diff != "" {
		t.Errorf("Daten weichen ab (-want +got):\n%s", diff)
	}
}

func TestConcatSingleClones(t *testing.T) {
	a := FromSlice([]float32{1, 2}, 1, 2)
	got, err := Concat(0, a)
	if err != nil {
		t.Fatalf("Concat() error = %v", err)
	}
	Data(got)[0] = 42
	if Data(a)[0] != 1 {
		t.Error("Einelementiges Concat teilt Speicher mit der Eingabe")
	}
}

func TestConcatEmpty(t *testing.T) {
	if _, err := Concat(0); err == nil {
		t.Error("Erwartet Fehler fuer leere Eingabe")
	}
}

func TestDuplicate(t *testing.T) {
	in := FromSlice([]float32{1, 2, 3, 4}, 1, 2, 2)
	got, err := Duplicate(in)
	if err != nil {
		t.Fatalf("Duplicate() error = %v", err)
	}
	if shape := got.Shape(); shape[0] != 2 {
		t.Fatalf("Batch-Dimension = %d, erwartet 2", shape[0])
	}
	if diff := cmp.Diff([]float32{1, 2, 3, 4, 1, 2, 3, 4}, Data(got)); diff != "" {
		t.Errorf("Daten weichen ab (-want +got):\n%s", diff)
	}
}

func TestChunk(t *testing.T) {
	in := FromSlice([]float32{1, 2, 3, 4, 5, 6, 7, 8}, 4, 2)
	parts, err := Chunk(in, 2)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("Anzahl Teile = %d, erwartet 2", len(parts))
	}
	if diff := cmp.Diff([]float32{1, 2, 3, 4}, Data(parts[0])); diff != "" {
		t.Errorf("Teil 0 weicht ab (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{5, 6, 7, 8}, Data(parts[1])); diff != "" {
		t.Errorf("Teil 1 weicht ab (-want +got):\n%s", diff)
	}
}

func TestChunkRoundTripsDuplicate(t *testing.T) {
	in := FromSlice([]float32{1, 2, 3, 4}, 2, 2)
	doubled, err := Duplicate(in)
	if err != nil {
		t.Fatalf("Duplicate() error = %v", err)
	}
	parts, err := Chunk(doubled, 2)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	for i, part := range parts {
		if diff := cmp.Diff(Data(in), Data(part)); diff != "" {
			t.Errorf("Teil %d weicht ab (-want +got):\n%s", i, diff)
		}
	}
}

func TestChunkRejectsUnevenSplit(t *testing.T) {
	in := FromSlice([]float32{1, 2, 3}, 3, 1)
	if _, err := Chunk(in, 2); err == nil {
		t.Error("Erwartet Fehler bei ungerader Teilung")
	}
	if _, err := Chunk(in, 0); err == nil {
		t.Error("Erwartet Fehler bei n=0")
	}
}

func TestHiddenLayout(t *testing.T) {
	// [1, 2, 3]: one batch entry, two sequence positions, three channels.
	in := FromSlice([]float32{
		1, 2, 3,
		4, 5, 6,
	}, 1, 2, 3)

	got, err := HiddenLayout(in)
	if err != nil {
		t.Fatalf("HiddenLayout() error = %v", err)
	}
	if shape := got.Shape(); shape[0] != 1 || shape[1] != 3 || shape[2] != 1 || shape[3] != 2 {
		t.Fatalf("Shape = %v, erwartet [1 3 1 2]", shape)
	}
	// Channel-major: each channel now holds its values across the sequence.
	want := []float32{1, 4, 2, 5, 3, 6}
	if diff := cmp.Diff(want, Data(got)); diff != "" {
		t.Errorf("Daten weichen ab (-want +got):\n%s", diff)
	}
}

func TestHiddenLayoutRejectsBadRank(t *testing.T) {
	if _, err := HiddenLayout(FromSlice([]float32{1, 2}, 2)); err == nil {
		t.Error("Erwartet Fehler fuer Rang != 3")
	}
}

func TestFromFloat16(t *testing.T) {
	raw := []uint16{
		float16.Fromfloat32(0).Bits(),
		float16.Fromfloat32(1).Bits(),
		float16.Fromfloat32(-2.5).Bits(),
		float16.Fromfloat32(0.5).Bits(),
	}
	got := FromFloat16(raw, 2, 2)
	want := []float32{0, 1, -2.5, 0.5}
	if diff := cmp.Diff(want, Data(got)); diff != "" {
		t.Errorf("Daten weichen ab (-want +got):\n%s", diff)
	}
}

// MODUL: pixel_test
// ZWECK: Tests fuer die Bild-Konvertierungen
// INPUT: Synthetische RGBA-Bilder und Tensoren
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, image, tensorutil

package pixel

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/latentforge/latentforge/tensorutil"
)

func solidImage(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestPrepareImageMultiplesOfEight(t *testing.T) {
	cases := []struct {
		w, h, limit  int
		wantW, wantH int
	}{
		{512, 512, 0, 512, 512},
		{513, 511, 0, 512, 504},
		{100, 60, 0, 96, 56},
		{5, 5, 0, 8, 8},
		{1024, 1024, 512 * 512, 512, 512},
	}
	for _, tt := range cases {
		_, w, h := PrepareImage(solidImage(tt.w, tt.h, color.RGBA{128, 128, 128, 255}), tt.limit)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("PrepareImage(%dx%d, limit %d) = %dx%d, erwartet %dx%d",
				tt.w, tt.h, tt.limit, w, h, tt.wantW, tt.wantH)
		}
		if w%8 != 0 || h%8 != 0 {
			t.Errorf("Dimensionen %dx%d sind keine Vielfachen von 8", w, h)
		}
	}
}

func TestImageToTensorRange(t *testing.T) {
	got := ImageToTensor(solidImage(4, 2, color.RGBA{255, 0, 128, 255}))
	shape := got.Shape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 || shape[2] != 2 || shape[3] != 4 {
		t.Fatalf("Shape = %v, erwartet [1 3 2 4]", shape)
	}

	data := tensorutil.Data(got)
	hw := 2 * 4
	checks := []struct {
		channel int
		want    float32
	}{
		{0, 1.0},               // R=255
		{1, -1.0},              // G=0
		{2, 128.0/127.5 - 1.0}, // B=128
	}
	for _, c := range checks {
		for i := 0; i < hw; i++ {
			v := data[c.channel*hw+i]
			if math.Abs(float64(v-c.want)) > 1e-6 {
				t.Fatalf("Kanal %d, Index %d: %g, erwartet %g", c.channel, i, v, c.want)
			}
		}
	}
}

func TestTensorToImagesRoundTrip(t *testing.T) {
	original := solidImage(8, 8, color.RGBA{200, 100, 50, 255})
	images, err := TensorToImages(ImageToTensor(original))
	if err != nil {
		t.Fatalf("TensorToImages() error = %v", err)
	}
	if len(images) != 1 {
		t.Fatalf("Erwartet 1 Bild, erhalten %d", len(images))
	}

	r, g, b, _ := images[0].At(3, 3).RGBA()
	got := [3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
	want := [3]uint8{200, 100, 50}
	for i := range want {
		diff := int(got[i]) - int(want[i])
		if diff < -1 || diff > 1 {
			t.Errorf("Kanal %d: %d, erwartet %d (+-1)", i, got[i], want[i])
		}
	}
}

func TestTensorToImagesClamps(t *testing.T) {
	data := make([]float32, 3*2*2)
	for i := range data {
		if i < 4 {
			data[i] = 5.0 // far above range
		} else {
			data[i] = -5.0 // far below range
		}
	}
	images, err := TensorToImages(tensorutil.FromSlice(data, 1, 3, 2, 2))
	if err != nil {
		t.Fatalf("TensorToImages() error = %v", err)
	}
	r, g, b, _ := images[0].At(0, 0).RGBA()
	if r>>8 != 255 {
		t.Errorf("R = %d, erwartet 255 (geklemmt)", r>>8)
	}
	if g>>8 != 0 || b>>8 != 0 {
		t.Errorf("G/B = %d/%d, erwartet 0 (geklemmt)", g>>8, b>>8)
	}
}

func TestTensorToImagesBatch(t *testing.T) {
	data := make([]float32, 2*3*2*2)
	images, err := TensorToImages(tensorutil.FromSlice(data, 2, 3, 2, 2))
	if err != nil {
		t.Fatalf("TensorToImages() error = %v", err)
	}
	if len(images) != 2 {
		t.Fatalf("Erwartet 2 Bilder, erhalten %d", len(images))
	}
}

func TestTensorToImagesRejectsBadShape(t *testing.T) {
	if _, err := TensorToImages(tensorutil.FromSlice(make([]float32, 16), 1, 4, 2, 2)); err == nil {
		t.Error("Erwartet Fehler fuer 4 Kanaele")
	}
	if _, err := TensorToImages(tensorutil.FromSlice(make([]float32, 12), 3, 2, 2)); err == nil {
		t.Error("Erwartet Fehler fuer Rang 3")
	}
}

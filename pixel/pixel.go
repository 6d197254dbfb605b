// pixel.go - Bild-Hilfsfunktionen fuer die Diffusions-Pipeline.
//
// Dieses Modul enthaelt:
// - PrepareImage fuer Resize auf Vielfache von 8
// - ImageToTensor Konvertierung nach [-1, 1] NCHW
// - TensorToImages fuer dekodierte Latents
package pixel

import (
	"fmt"
	"image"
	"math"

	"github.com/pdevine/tensor"
	"golang.org/x/image/draw"

	"github.com/latentforge/latentforge/tensorutil"
)

// PrepareImage resizes an image so both dimensions are multiples of 8, with
// an optional pixel cap. Returns the processed image and its dimensions.
func PrepareImage(img image.Image, limitPixels int) (image.Image, int, int) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if limitPixels > 0 && w*h > limitPixels {
		scale := math.Sqrt(float64(limitPixels) / float64(w*h))
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}

	w = (w / 8) * 8
	h = (h / 8) * 8
	if w < 8 {
		w = 8
	}
	if h < 8 {
		h = 8
	}

	resized := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), draw.Over, nil)

	return resized, w, h
}

// ImageToTensor converts an image to a tensor in [-1, 1] range with shape
// [1, 3, H, W].
func ImageToTensor(img image.Image) *tensor.Dense {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	data := make([]float32, 3*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			// RGBA returns 16-bit values
			data[0*h*w+y*w+x] = float32(r>>8)/127.5 - 1.0
			data[1*h*w+y*w+x] = float32(g>>8)/127.5 - 1.0
			data[2*h*w+y*w+x] = float32(b>>8)/127.5 - 1.0
		}
	}

	return tensorutil.FromSlice(data, 1, 3, h, w)
}

// TensorToImages converts a decoded [batch, 3, H, W] tensor in [-1, 1] range
// into one RGBA image per batch entry, clamping out-of-range values.
func TensorToImages(t *tensor.Dense) ([]image.Image, error) {
	shape := t.Shape()
	if len(shape) != 4 || shape[1] != 3 {
		return nil, fmt.Errorf("tensor to images: want shape [batch, 3, h, w], got %v", shape)
	}
	batch, h, w := shape[0], shape[2], shape[3]
	data := tensorutil.Data(t)

	images := make([]image.Image, batch)
	for b := 0; b < batch; b++ {
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		base := b * 3 * h * w
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := img.PixOffset(x, y)
				img.Pix[i+0] = toByte(data[base+0*h*w+y*w+x])
				img.Pix[i+1] = toByte(data[base+1*h*w+y*w+x])
				img.Pix[i+2] = toByte(data[base+2*h*w+y*w+x])
				img.Pix[i+3] = 0xff
			}
		}
		images[b] = img
	}
	return images, nil
}

func toByte(v float32) uint8 {
	scaled := (v + 1.0) * 127.5
	if scaled < 0 {
		scaled = 0
	}
	if scaled > 255 {
		scaled = 255
	}
	return uint8(scaled)
}

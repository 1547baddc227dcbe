package imaging

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestRegion_Validate(t *testing.T) {
	tests := []struct {
		name    string
		r       Region
		wantErr bool
	}{
		{"default", DefaultPlateRegion, false},
		{"full frame", FullFrame, false},
		{"zero width", Region{X: 0.1, Y: 0.1, W: 0, H: 0.5}, true},
		{"negative height", Region{X: 0.1, Y: 0.1, W: 0.5, H: -0.1}, true},
		{"negative x", Region{X: -0.1, Y: 0, W: 0.5, H: 0.5}, true},
		{"past right edge", Region{X: 0.6, Y: 0, W: 0.5, H: 0.5}, true},
		{"past bottom edge", Region{X: 0, Y: 0.7, W: 0.5, H: 0.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegion_Rect(t *testing.T) {
	b := image.Rect(0, 0, 1000, 500)

	got := DefaultPlateRegion.Rect(b)
	want := image.Rect(80, 175, 920, 375)
	if got != want {
		t.Errorf("Rect: got %v, want %v", got, want)
	}

	// Offset bounds, as produced by SubImage.
	off := image.Rect(100, 100, 200, 200)
	got = Region{X: 0.5, Y: 0.5, W: 0.5, H: 0.5}.Rect(off)
	if want := image.Rect(150, 150, 200, 200); got != want {
		t.Errorf("offset Rect: got %v, want %v", got, want)
	}
}

func TestCropRegion(t *testing.T) {
	// Top half red, bottom half blue.
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			c := color.RGBA{255, 0, 0, 255}
			if y >= 50 {
				c = color.RGBA{0, 0, 255, 255}
			}
			img.Set(x, y, c)
		}
	}

	crop, err := CropRegion(img, Region{X: 0.25, Y: 0.5, W: 0.5, H: 0.25})
	if err != nil {
		t.Fatalf("CropRegion failed: %v", err)
	}

	b := crop.Bounds()
	if b.Min != (image.Point{}) {
		t.Errorf("crop should start at origin, got %v", b.Min)
	}
	if b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("dimensions: got %dx%d, want 50x25", b.Dx(), b.Dy())
	}

	r, g, bl, _ := crop.At(10, 10).RGBA()
	if r != 0 || g != 0 || bl>>8 != 255 {
		t.Errorf("crop should contain only blue pixels, got (%d,%d,%d)", r>>8, g>>8, bl>>8)
	}
}

func TestCropRegion_Empty(t *testing.T) {
	img := solidImage(10, 10, color.White)

	_, err := CropRegion(img, Region{X: 0.5, Y: 0.5, W: 0.01, H: 0.01})
	if !errors.Is(err, ErrEmptyRegion) {
		t.Errorf("got %v, want ErrEmptyRegion", err)
	}
}

func TestUpscaleToHeight(t *testing.T) {
	img := solidImage(40, 10, color.White)

	up := UpscaleToHeight(img, 40)
	if b := up.Bounds(); b.Dx() != 160 || b.Dy() != 40 {
		t.Errorf("upscaled: got %dx%d, want 160x40", b.Dx(), b.Dy())
	}

	same := UpscaleToHeight(img, 8)
	if same != image.Image(img) {
		t.Error("tall enough image should be returned unchanged")
	}

	if UpscaleToHeight(img, 0) != image.Image(img) {
		t.Error("zero minimum should be a no-op")
	}
}

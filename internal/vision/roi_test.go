package vision

import (
	"image"
	"testing"
)

func TestCenteredROI(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		fracW, fracH float64
		want         image.Rectangle
	}{
		{"640x480 default", 640, 480, 0.2, 0.2, image.Rect(256, 192, 384, 288)},
		{"full frame", 100, 50, 1, 1, image.Rect(0, 0, 100, 50)},
		{"odd sizes", 101, 75, 0.5, 0.5, image.Rect(25, 19, 75, 56)},
		{"tiny frame collapses", 3, 3, 0.2, 0.2, image.Rect(1, 1, 1, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CenteredROI(tt.w, tt.h, tt.fracW, tt.fracH)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCenteredROIRejectsBadFractions(t *testing.T) {
	for _, f := range []float64{0, -0.1, 1.5} {
		if _, err := CenteredROI(640, 480, f, 0.2); err == nil {
			t.Errorf("fraction %v: expected error", f)
		}
	}
}

func TestCrop(t *testing.T) {
	img := fill(10, 10, rgbRed)
	sub, ok := Crop(img, image.Rect(2, 2, 6, 5))
	if !ok {
		t.Fatal("expected non-empty crop")
	}
	if got := sub.Bounds(); got.Dx() != 4 || got.Dy() != 3 {
		t.Errorf("crop size: got %dx%d, want 4x3", got.Dx(), got.Dy())
	}
}

func TestCropEmpty(t *testing.T) {
	img := fill(10, 10, rgbRed)
	if _, ok := Crop(img, image.Rect(5, 5, 5, 5)); ok {
		t.Error("zero-area roi should not crop")
	}
	if _, ok := Crop(img, image.Rect(20, 20, 30, 30)); ok {
		t.Error("roi outside the frame should not crop")
	}
}

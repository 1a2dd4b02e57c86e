package vision

import (
	"fmt"
	"image"
)

// Default ROI size as a fraction of the frame.
const (
	DefaultROIWidth  = 0.2
	DefaultROIHeight = 0.2
)

// CenteredROI returns a rectangle of fracW x fracH of the frame, centered.
// The result may be empty for tiny frames; callers skip such crops.
func CenteredROI(frameW, frameH int, fracW, fracH float64) (image.Rectangle, error) {
	if fracW <= 0 || fracW > 1 || fracH <= 0 || fracH > 1 {
		return image.Rectangle{}, fmt.Errorf("roi fractions must be in (0, 1], got %vx%v", fracW, fracH)
	}
	if frameW < 0 || frameH < 0 {
		return image.Rectangle{}, fmt.Errorf("invalid frame size %dx%d", frameW, frameH)
	}
	w := int(float64(frameW) * fracW)
	h := int(float64(frameH) * fracH)
	x := (frameW - w) / 2
	y := (frameH - h) / 2
	return image.Rect(x, y, x+w, y+h), nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Crop returns the part of img inside roi. ok is false when the crop has no
// area, either because roi is empty or because it misses the frame.
func Crop(img image.Image, roi image.Rectangle) (image.Image, bool) {
	r := roi.Intersect(img.Bounds())
	if r.Empty() {
		return nil, false
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(r), true
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.Set(x-r.Min.X, y-r.Min.Y, img.At(x, y))
		}
	}
	return dst, true
}

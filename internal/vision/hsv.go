package vision

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// HSV is a color in the 8-bit OpenCV convention: H in 0-179 (degrees / 2),
// S and V in 0-255.
type HSV struct {
	H, S, V uint8
}

// ToHSV converts an 8-bit RGB sample to HSV.
func ToHSV(r, g, b uint8) HSV {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	h, s, v := c.Hsv()

	hue := int(math.Round(h / 2))
	if hue >= 180 {
		hue -= 180
	}
	return HSV{
		H: uint8(hue),
		S: uint8(math.Round(s * 255)),
		V: uint8(math.Round(v * 255)),
	}
}

// Range is an inclusive box in HSV space.
type Range struct {
	Lower HSV
	Upper HSV
}

// Contains reports whether p lies inside the range on all three channels.
func (r Range) Contains(p HSV) bool {
	return p.H >= r.Lower.H && p.H <= r.Upper.H &&
		p.S >= r.Lower.S && p.S <= r.Upper.S &&
		p.V >= r.Lower.V && p.V <= r.Upper.V
}

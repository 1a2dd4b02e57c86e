// Package vision classifies the predominant color of an image region.
// It has no hardware, network or OS dependencies; the classifier is a pure
// function of the image and the range table it was built with.
package vision

// Bucket is one discrete color label.
type Bucket string

// Physical color buckets.
const (
	Red    Bucket = "red"
	Green  Bucket = "green"
	Blue   Bucket = "blue"
	Yellow Bucket = "yellow"
	Orange Bucket = "orange"
	Purple Bucket = "purple"
	White  Bucket = "white"
	Black  Bucket = "black"
	Gray   Bucket = "gray"
)

// Synthetic outcomes that never own an HSV range.
const (
	Unknown              Bucket = "unknown"
	UnknownLowConfidence Bucket = "unknown_low_confidence"
	WhiteBackground      Bucket = "white_background"
)

// Order is the fixed iteration order of the physical buckets. It is also the
// tie-break priority: on equal counts the earlier bucket wins.
var Order = []Bucket{Red, Green, Blue, Yellow, Orange, Purple, White, Black, Gray}

// IsPhysical reports whether b is one of the buckets in Order.
func IsPhysical(b Bucket) bool {
	for _, o := range Order {
		if o == b {
			return true
		}
	}
	return false
}

// PixelCount maps each physical bucket to the number of matching samples.
type PixelCount map[Bucket]int

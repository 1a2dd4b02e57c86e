package vision

import "image"

// Default decision thresholds.
const (
	DefaultWhiteCoverage = 0.5
	DefaultNoiseFloor    = 0.01
)

// ClassifierConfig parameterizes the decision rule.
type ClassifierConfig struct {
	Ranges RangeTable
	// WhiteCoverage is the fraction of the area white must exceed, with no
	// other bucket matching at all, for the region to count as empty belt.
	WhiteCoverage float64
	// NoiseFloor is the fraction of the area the best non-white bucket must
	// reach to be trusted.
	NoiseFloor float64
}

// DefaultClassifierConfig returns the default ranges and thresholds.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		Ranges:        DefaultRanges(),
		WhiteCoverage: DefaultWhiteCoverage,
		NoiseFloor:    DefaultNoiseFloor,
	}
}

// Result is the outcome of classifying one region.
type Result struct {
	Label  Bucket
	Counts PixelCount
	Area   int
}

// Classifier assigns a single bucket to an image region.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a classifier with the given configuration.
func NewClassifier(cfg ClassifierConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify counts, per bucket, the samples falling inside any of the
// bucket's ranges and picks the predominant non-white bucket. White is only
// reported as WhiteBackground, when it covers the region and nothing else
// matches. An empty region yields Unknown.
func (c *Classifier) Classify(img image.Image) Result {
	counts := c.count(img)
	b := img.Bounds()
	area := b.Dx() * b.Dy()

	res := Result{Label: Unknown, Counts: counts, Area: area}
	if area <= 0 {
		return res
	}

	best := Unknown
	bestCount := 0
	for _, bucket := range Order {
		if bucket == White {
			continue
		}
		if counts[bucket] > bestCount {
			bestCount = counts[bucket]
			best = bucket
		}
	}

	fArea := float64(area)
	switch {
	case bestCount == 0 && float64(counts[White]) > c.cfg.WhiteCoverage*fArea:
		res.Label = WhiteBackground
	case float64(bestCount) < c.cfg.NoiseFloor*fArea:
		res.Label = UnknownLowConfidence
	default:
		res.Label = best
	}
	return res
}

func (c *Classifier) count(img image.Image) PixelCount {
	counts := make(PixelCount, len(Order))
	for _, bucket := range Order {
		counts[bucket] = 0
	}

	visit := func(r, g, b uint8) {
		p := ToHSV(r, g, b)
		for _, bucket := range Order {
			if c.cfg.Ranges.Match(bucket, p) {
				counts[bucket]++
			}
		}
	}

	bounds := img.Bounds()
	switch m := img.(type) {
	case *image.RGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			visitRow(m.Pix[m.PixOffset(bounds.Min.X, y):m.PixOffset(bounds.Max.X, y)], visit)
		}
	case *image.NRGBA:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			visitRow(m.Pix[m.PixOffset(bounds.Min.X, y):m.PixOffset(bounds.Max.X, y)], visit)
		}
	default:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				visit(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			}
		}
	}
	return counts
}

// visitRow walks a row of 4-byte RGBA samples, ignoring alpha.
func visitRow(row []uint8, visit func(r, g, b uint8)) {
	for i := 0; i+4 <= len(row); i += 4 {
		visit(row[i], row[i+1], row[i+2])
	}
}

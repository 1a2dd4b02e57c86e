package vision

import (
	"encoding/json"
	"fmt"
	"io"
)

// maxHue is the largest hue value in the 8-bit convention.
const maxHue = 179

// RangeTable maps each physical bucket to its HSV ranges. A bucket may own
// several disjoint ranges (red wraps around hue 0). The zero value matches
// nothing. Tables are immutable once built.
type RangeTable struct {
	ranges map[Bucket][]Range
}

// NewRangeTable validates and copies the given ranges into a table.
// Buckets missing from the map own no ranges and never match.
func NewRangeTable(ranges map[Bucket][]Range) (RangeTable, error) {
	t := RangeTable{ranges: make(map[Bucket][]Range, len(ranges))}
	for b, rs := range ranges {
		if !IsPhysical(b) {
			return RangeTable{}, fmt.Errorf("range table: unknown bucket %q", b)
		}
		for i, r := range rs {
			if err := validateRange(r); err != nil {
				return RangeTable{}, fmt.Errorf("range table: %s[%d]: %w", b, i, err)
			}
		}
		t.ranges[b] = append([]Range(nil), rs...)
	}
	return t, nil
}

func validateRange(r Range) error {
	if r.Upper.H > maxHue {
		return fmt.Errorf("upper hue %d exceeds %d", r.Upper.H, maxHue)
	}
	if r.Lower.H > r.Upper.H || r.Lower.S > r.Upper.S || r.Lower.V > r.Upper.V {
		return fmt.Errorf("lower bound %v above upper bound %v", r.Lower, r.Upper)
	}
	return nil
}

// Ranges returns a copy of the ranges owned by b.
func (t RangeTable) Ranges(b Bucket) []Range {
	return append([]Range(nil), t.ranges[b]...)
}

// Match reports whether p falls inside any range owned by b.
func (t RangeTable) Match(b Bucket, p HSV) bool {
	for _, r := range t.ranges[b] {
		if r.Contains(p) {
			return true
		}
	}
	return false
}

// DefaultRanges returns the bottle-cap ranges tuned for the conveyor camera.
func DefaultRanges() RangeTable {
	t, err := NewRangeTable(map[Bucket][]Range{
		Red: {
			{Lower: HSV{0, 100, 100}, Upper: HSV{10, 255, 255}},
			{Lower: HSV{170, 100, 100}, Upper: HSV{179, 255, 255}},
		},
		Green:  {{Lower: HSV{40, 40, 40}, Upper: HSV{80, 255, 255}}},
		Blue:   {{Lower: HSV{100, 100, 100}, Upper: HSV{130, 255, 255}}},
		Yellow: {{Lower: HSV{20, 100, 100}, Upper: HSV{35, 255, 255}}},
		Orange: {{Lower: HSV{10, 100, 100}, Upper: HSV{25, 255, 255}}},
		Purple: {{Lower: HSV{130, 50, 50}, Upper: HSV{160, 255, 255}}},
		White:  {{Lower: HSV{0, 0, 180}, Upper: HSV{179, 40, 255}}},
		Black:  {{Lower: HSV{0, 0, 0}, Upper: HSV{179, 50, 50}}},
		Gray:   {{Lower: HSV{0, 0, 50}, Upper: HSV{179, 50, 180}}},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// rangeJSON is the on-disk form of a single range: [h, s, v] triples.
type rangeJSON struct {
	Lower [3]int `json:"lower"`
	Upper [3]int `json:"upper"`
}

// LoadRangeTable decodes a JSON range table of the form
//
//	{"red": [{"lower": [0,100,100], "upper": [10,255,255]}], ...}
//
// The result replaces the default table entirely.
func LoadRangeTable(r io.Reader) (RangeTable, error) {
	var raw map[string][]rangeJSON
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return RangeTable{}, fmt.Errorf("decode range table: %w", err)
	}

	ranges := make(map[Bucket][]Range, len(raw))
	for name, rs := range raw {
		b := Bucket(name)
		if !IsPhysical(b) {
			return RangeTable{}, fmt.Errorf("range table: unknown bucket %q", name)
		}
		ranges[b] = nil
		for i, rj := range rs {
			lower, err := toHSV(rj.Lower)
			if err != nil {
				return RangeTable{}, fmt.Errorf("range table: %s[%d].lower: %w", name, i, err)
			}
			upper, err := toHSV(rj.Upper)
			if err != nil {
				return RangeTable{}, fmt.Errorf("range table: %s[%d].upper: %w", name, i, err)
			}
			ranges[b] = append(ranges[b], Range{Lower: lower, Upper: upper})
		}
	}
	return NewRangeTable(ranges)
}

func toHSV(v [3]int) (HSV, error) {
	for _, c := range v {
		if c < 0 || c > 255 {
			return HSV{}, fmt.Errorf("component %d out of range 0-255", c)
		}
	}
	return HSV{H: uint8(v[0]), S: uint8(v[1]), V: uint8(v[2])}, nil
}

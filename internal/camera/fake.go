package camera

import (
	"fmt"
	"image"
	"sync"

	"github.com/sweeney/color-sorter/internal/vision"
)

// FakeSource replays a fixed list of frames and then reports ErrNoFrame.
type FakeSource struct {
	mu     sync.Mutex
	width  int
	height int
	frames []image.Image
	pos    int
	closed bool
}

// NewFakeSource creates a source reporting the given size.
func NewFakeSource(width, height int, frames ...image.Image) *FakeSource {
	return &FakeSource{width: width, height: height, frames: frames}
}

func (f *FakeSource) Size() (int, int) {
	return f.width, f.height
}

func (f *FakeSource) Read() (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pos >= len(f.frames) {
		return nil, fmt.Errorf("%w: fake exhausted after %d frames", ErrNoFrame, len(f.frames))
	}
	img := f.frames[f.pos]
	f.pos++
	return img, nil
}

func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *FakeSource) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeOverlay records every label shown. It requests quit once QuitAfter
// frames were shown, if QuitAfter is positive.
type FakeOverlay struct {
	mu        sync.Mutex
	QuitAfter int
	labels    []vision.Bucket
	rois      []image.Rectangle
	closed    bool
}

func (f *FakeOverlay) Show(_ image.Image, roi image.Rectangle, label vision.Bucket) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.labels = append(f.labels, label)
	f.rois = append(f.rois, roi)
	return f.QuitAfter > 0 && len(f.labels) >= f.QuitAfter
}

func (f *FakeOverlay) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Labels returns the labels shown so far.
func (f *FakeOverlay) Labels() []vision.Bucket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vision.Bucket(nil), f.labels...)
}

// ROIs returns the regions shown so far.
func (f *FakeOverlay) ROIs() []image.Rectangle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]image.Rectangle(nil), f.rois...)
}

// Closed reports whether Close was called.
func (f *FakeOverlay) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Solid returns a width×height frame filled with c.
func Solid(width, height int, c [3]uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c[0], c[1], c[2], 0xff
	}
	return img
}

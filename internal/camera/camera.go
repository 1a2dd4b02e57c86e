// Package camera provides the video frame source and the debug overlay.
// The OpenCV-backed implementations need the opencv build tag; without it
// they report that OpenCV support is not compiled in.
package camera

import (
	"errors"
	"image"

	"go.uber.org/zap"

	"github.com/sweeney/color-sorter/internal/vision"
)

// ErrNoFrame is returned when the device delivers no frame.
var ErrNoFrame = errors.New("camera: no frame")

// Source delivers video frames.
type Source interface {
	// Size returns the frame dimensions in pixels.
	Size() (width, height int)
	Read() (image.Image, error)
	Close() error
}

// Overlay displays a frame with the region of interest and the current label.
// Show reports true when the operator asked to quit.
type Overlay interface {
	Show(frame image.Image, roi image.Rectangle, label vision.Bucket) (quit bool)
	Close() error
}

// NopOverlay displays nothing and never quits.
type NopOverlay struct{}

func (NopOverlay) Show(image.Image, image.Rectangle, vision.Bucket) bool { return false }

func (NopOverlay) Close() error { return nil }

// Caption is the text drawn above the region of interest.
func Caption(label vision.Bucket) string {
	return "Detected: " + string(label)
}

// frameWarner logs the first of a run of frame conversion failures. A
// successful conversion ends the run.
type frameWarner struct {
	logger  *zap.SugaredLogger
	failing bool
}

func (w *frameWarner) observe(err error) {
	switch {
	case err == nil:
		w.failing = false
	case !w.failing:
		w.failing = true
		w.logger.Warnw("overlay cannot convert frame", "error", err)
	}
}

//go:build !opencv

package camera

import (
	"errors"
	"image"

	"go.uber.org/zap"

	"github.com/sweeney/color-sorter/internal/vision"
)

var errNoOpenCV = errors.New("camera: built without OpenCV support (rebuild with -tags opencv)")

// Webcam is not available without the opencv build tag.
type Webcam struct{}

// OpenWebcam returns an error without the opencv build tag.
func OpenWebcam(int) (*Webcam, error) {
	return nil, errNoOpenCV
}

func (w *Webcam) Size() (int, int) { return 0, 0 }

func (w *Webcam) Read() (image.Image, error) { return nil, errNoOpenCV }

func (w *Webcam) Close() error { return nil }

// Window is not available without the opencv build tag.
type Window struct{}

// NewWindow returns an error without the opencv build tag.
func NewWindow(string, *zap.SugaredLogger) (*Window, error) {
	return nil, errNoOpenCV
}

func (w *Window) Show(image.Image, image.Rectangle, vision.Bucket) bool { return false }

func (w *Window) Close() error { return nil }

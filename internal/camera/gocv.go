//go:build opencv

package camera

import (
	"fmt"
	"image"
	"image/color"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/sweeney/color-sorter/internal/vision"
)

// Webcam reads frames from a V4L/DirectShow capture device through OpenCV.
type Webcam struct {
	device int
	cap    *gocv.VideoCapture
	mat    gocv.Mat
	width  int
	height int
}

// OpenWebcam opens capture device id.
func OpenWebcam(device int) (*Webcam, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", device, err)
	}
	w := &Webcam{device: device, cap: vc, mat: gocv.NewMat()}
	w.width = int(vc.Get(gocv.VideoCaptureFrameWidth))
	w.height = int(vc.Get(gocv.VideoCaptureFrameHeight))
	if w.width <= 0 || w.height <= 0 {
		// Some drivers only report the size once a frame arrived.
		if ok := vc.Read(&w.mat); ok && !w.mat.Empty() {
			w.width, w.height = w.mat.Cols(), w.mat.Rows()
		}
	}
	return w, nil
}

func (w *Webcam) Size() (int, int) {
	return w.width, w.height
}

// Read grabs the next frame. The returned image is a copy and stays valid
// after the next Read.
func (w *Webcam) Read() (image.Image, error) {
	if ok := w.cap.Read(&w.mat); !ok || w.mat.Empty() {
		return nil, fmt.Errorf("%w: device %d", ErrNoFrame, w.device)
	}
	img, err := w.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

func (w *Webcam) Close() error {
	w.mat.Close()
	return w.cap.Close()
}

var roiColor = color.RGBA{0, 255, 0, 0}

// Window shows the annotated frame and the cropped region in two HighGUI
// windows. Pressing q requests quit.
type Window struct {
	frame *gocv.Window
	roi   *gocv.Window
	warn  frameWarner
}

// NewWindow opens the overlay windows.
func NewWindow(title string, logger *zap.SugaredLogger) (*Window, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Window{
		frame: gocv.NewWindow(title),
		roi:   gocv.NewWindow(title + " ROI"),
		warn:  frameWarner{logger: logger},
	}, nil
}

func (w *Window) Show(frame image.Image, roi image.Rectangle, label vision.Bucket) bool {
	mat, err := gocv.ImageToMatRGB(frame)
	w.warn.observe(err)
	if err != nil {
		return false
	}
	defer mat.Close()

	if !roi.Empty() {
		region := mat.Region(roi)
		w.roi.IMShow(region)
		region.Close()
	}

	gocv.Rectangle(&mat, roi, roiColor, 2)
	gocv.PutText(&mat, Caption(label), image.Pt(roi.Min.X, roi.Min.Y-10), gocv.FontHersheySimplex, 0.6, roiColor, 2)
	w.frame.IMShow(mat)

	return w.frame.WaitKey(1)&0xFF == 'q'
}

func (w *Window) Close() error {
	if err := w.roi.Close(); err != nil {
		return err
	}
	return w.frame.Close()
}

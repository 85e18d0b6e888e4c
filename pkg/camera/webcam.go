package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-smile/internal/log"
)

var (
	// ErrNotActive is returned by Frame before Open or after Close.
	ErrNotActive = errors.New("camera not active")

	// ErrNoFrame is returned when the device delivers no image.
	ErrNoFrame = errors.New("camera returned no frame")
)

// Webcam captures JPEG frames from a local capture device with OpenCV.
// The capture handle is the single shared camera resource; Open on an active
// webcam does nothing, so the stream is never acquired twice.
type Webcam struct {
	mu      sync.Mutex
	cfg     Config
	capture *gocv.VideoCapture
	frame   gocv.Mat
	width   int
	height  int
	logger  *slog.Logger

	// OnFrame, if set, receives every captured frame (e.g. for a preview).
	OnFrame func(jpeg []byte)
}

// NewWebcam creates a webcam that opens lazily.
func NewWebcam(cfg Config) *Webcam {
	return &Webcam{
		cfg:    cfg,
		logger: log.With("component", "camera"),
	}
}

// Open acquires the capture device and applies the resolution constraints.
func (w *Webcam) Open(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture != nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if errs := w.cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera config: %v", errs)
	}

	capture, err := gocv.OpenVideoCapture(w.cfg.Device)
	if err != nil {
		return fmt.Errorf("open device %s: %w", w.cfg.Device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open device %s: not available", w.cfg.Device)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(w.cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(w.cfg.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(w.cfg.Framerate))

	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))
	if !w.cfg.Accepts(width, height) {
		capture.Close()
		return fmt.Errorf("device %s negotiated %dx%d outside %dx%d..%dx%d",
			w.cfg.Device, width, height, w.cfg.MinWidth, w.cfg.MinHeight, w.cfg.MaxWidth, w.cfg.MaxHeight)
	}

	w.capture = capture
	w.frame = gocv.NewMat()
	w.width = width
	w.height = height

	w.logger.Info("camera started", "device", w.cfg.Device, "width", width, "height", height)
	return nil
}

// Frame reads the next frame and encodes it as JPEG.
func (w *Webcam) Frame(ctx context.Context) ([]byte, error) {
	w.mu.Lock()
	if w.capture == nil {
		w.mu.Unlock()
		return nil, ErrNotActive
	}

	if ok := w.capture.Read(&w.frame); !ok || w.frame.Empty() {
		w.mu.Unlock()
		return nil, ErrNoFrame
	}
	if w.cfg.Mirror {
		gocv.Flip(w.frame, &w.frame, 1)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, w.frame, []int{gocv.IMWriteJpegQuality, w.cfg.Quality})
	onFrame := w.OnFrame
	w.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	jpeg := append([]byte(nil), buf.GetBytes()...)
	if onFrame != nil {
		onFrame(jpeg)
	}
	return jpeg, nil
}

// Close stops the stream and releases the device.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.capture == nil {
		return nil
	}
	err := w.capture.Close()
	w.frame.Close()
	w.capture = nil
	w.logger.Info("camera stopped", "device", w.cfg.Device)
	return err
}

// Active reports whether the device is held.
func (w *Webcam) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.capture != nil
}

// Size returns the negotiated frame size, or zeros when inactive.
func (w *Webcam) Size() (width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.capture == nil {
		return 0, 0
	}
	return w.width, w.height
}

// Apply stores a new config. It takes effect the next time the camera opens;
// callers restart the session to apply it to a live stream.
func (w *Webcam) Apply(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera config: %v", errs)
	}
	w.mu.Lock()
	w.cfg = cfg
	w.mu.Unlock()
	return nil
}

// Config returns the stored config.
func (w *Webcam) Config() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg
}

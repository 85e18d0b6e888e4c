package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YuNetDetector uses OpenCV's FaceDetectorYN for face detection
type YuNetDetector struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex // Protects inference
}

// NewYuNet creates a new YuNet face detector using GoCV's built-in FaceDetectorYN
func NewYuNet(cfg Config) (*YuNetDetector, error) {
	if _, err := os.Stat(cfg.FaceModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.FaceModelPath)
	}

	// Initial size is replaced per frame.
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.FaceModelPath,
		"",                                        // No config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight), // Initial input size
		float32(cfg.ConfidenceThresh),             // Score threshold
		0.3,                                       // NMS threshold
		5000,                                      // Top K
		int(gocv.NetBackendDefault),               // Backend
		int(gocv.NetTargetCPU),                    // Target
	)

	return &YuNetDetector{
		detector: detector,
		config:   cfg,
	}, nil
}

// Detect finds faces in the JPEG image
func (d *YuNetDetector) Detect(jpeg []byte) ([]Detection, error) {
	img, err := decode(jpeg)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	return d.DetectMat(img), nil
}

// DetectMat finds faces in a decoded frame. The frame is downscaled so its
// longest side matches InputWidth; results are normalized to the frame.
func (d *YuNetDetector) DetectMat(img gocv.Mat) []Detection {
	d.mu.Lock()
	defer d.mu.Unlock()

	src := img
	longest := max(img.Cols(), img.Rows())
	if d.config.InputWidth > 0 && longest > d.config.InputWidth {
		scale := float64(d.config.InputWidth) / float64(longest)
		small := gocv.NewMat()
		defer small.Close()
		gocv.Resize(img, &small, image.Pt(0, 0), scale, scale, gocv.InterpolationArea)
		src = small
	}

	imgW := float64(src.Cols())
	imgH := float64(src.Rows())

	d.detector.SetInputSize(image.Pt(src.Cols(), src.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	d.detector.Detect(src, &faces)

	var detections []Detection
	for r := 0; r < faces.Rows(); r++ {
		// YuNet output format (15 columns):
		// 0-3: x, y, w, h (bounding box in pixels)
		// 4-13: 5 facial landmarks (x,y pairs)
		// 14: face score
		x := float64(faces.GetFloatAt(r, 0))
		y := float64(faces.GetFloatAt(r, 1))
		w := float64(faces.GetFloatAt(r, 2))
		h := float64(faces.GetFloatAt(r, 3))
		score := float64(faces.GetFloatAt(r, 14))

		detections = append(detections, Detection{
			X:          x / imgW,
			Y:          y / imgH,
			W:          w / imgW,
			H:          h / imgH,
			Confidence: score,
		})
	}

	return detections
}

// Close releases the detector resources
func (d *YuNetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}

func decode(jpeg []byte) (gocv.Mat, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return img, fmt.Errorf("decode image: %w", err)
	}
	if img.Empty() {
		img.Close()
		return img, fmt.Errorf("empty image")
	}
	return img, nil
}

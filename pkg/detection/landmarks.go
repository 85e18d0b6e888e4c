package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-smile/pkg/expression"
)

// LandmarkNet regresses the 68-point face layout from a face crop. The model
// takes a square RGB input scaled to [0,1] and outputs 136 values: x,y pairs
// normalized to the crop.
type LandmarkNet struct {
	net     gocv.Net
	size    int
	padding float64
	mu      sync.Mutex // Protects inference
}

// NewLandmarkNet loads the landmark model from cfg.LandmarkModelPath.
func NewLandmarkNet(cfg Config) (*LandmarkNet, error) {
	if _, err := os.Stat(cfg.LandmarkModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.LandmarkModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.LandmarkModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("load landmark model %s", cfg.LandmarkModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	size := cfg.LandmarkInput
	if size <= 0 {
		size = 112
	}
	return &LandmarkNet{net: net, size: size, padding: cfg.CropPadding}, nil
}

// Landmarks returns the 68 points of the face inside box, in frame pixels.
func (n *LandmarkNet) Landmarks(img gocv.Mat, box image.Rectangle) ([]expression.Point, error) {
	crop := CropBox(box, n.padding, image.Rect(0, 0, img.Cols(), img.Rows()))
	if crop.Empty() {
		return nil, fmt.Errorf("face box %v outside frame", box)
	}

	region := img.Region(crop)
	defer region.Close()

	blob := gocv.BlobFromImage(region, 1.0/255.0, image.Pt(n.size, n.size),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	n.mu.Lock()
	n.net.SetInput(blob, "")
	out := n.net.Forward("")
	n.mu.Unlock()
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read landmark output: %w", err)
	}
	return ScalePoints(data, crop)
}

// Close releases the network.
func (n *LandmarkNet) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.net.Close()
}

// CropBox grows box by padding on each side, squares it around its center
// and clips it to bounds.
func CropBox(box image.Rectangle, padding float64, bounds image.Rectangle) image.Rectangle {
	side := max(box.Dx(), box.Dy())
	side += int(float64(side) * padding * 2)
	cx := box.Min.X + box.Dx()/2
	cy := box.Min.Y + box.Dy()/2
	sq := image.Rect(cx-side/2, cy-side/2, cx-side/2+side, cy-side/2+side)
	return sq.Intersect(bounds)
}

// ScalePoints maps crop-normalized x,y pairs to frame pixels.
func ScalePoints(data []float32, crop image.Rectangle) ([]expression.Point, error) {
	if len(data) < expression.Face68Points*2 {
		return nil, fmt.Errorf("%w: %d values, want %d", ErrBadOutput, len(data), expression.Face68Points*2)
	}
	w := float64(crop.Dx())
	h := float64(crop.Dy())
	pts := make([]expression.Point, expression.Face68Points)
	for i := range pts {
		pts[i] = expression.Point{
			X: float64(crop.Min.X) + float64(data[2*i])*w,
			Y: float64(crop.Min.Y) + float64(data[2*i+1])*h,
		}
	}
	return pts, nil
}

// Package expression scores a facial expression on a smile-to-frown scale.
//
// The pipeline is Extract (mouth geometry) → Classify (score adjustment) →
// Smoother (running score) → MessageFor (display message). Every step except
// the Smoother is a pure function.
package expression

import "fmt"

// Point is a 2D landmark position in frame pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Mouth contour indices (20-point mouth layout).
const (
	MouthLeftCorner  = 0
	MouthRightCorner = 6
	MouthTopLip      = 14
	MouthBottomLip   = 18
	MouthPoints      = 20
)

// Face68MouthOffset is where the mouth contour starts in the 68-point layout.
const Face68MouthOffset = 48

// Face68Points is the number of points in the full face layout.
const Face68Points = 68

// MouthLandmarks holds the four mouth points the scorer consumes.
type MouthLandmarks struct {
	TopLip      Point `json:"top_lip"`
	BottomLip   Point `json:"bottom_lip"`
	LeftCorner  Point `json:"left_corner"`
	RightCorner Point `json:"right_corner"`
}

// FromMouthContour picks the scored points out of a 20-point mouth contour.
func FromMouthContour(mouth []Point) (MouthLandmarks, error) {
	if len(mouth) < MouthPoints {
		return MouthLandmarks{}, fmt.Errorf("mouth contour: got %d points, want %d", len(mouth), MouthPoints)
	}
	return MouthLandmarks{
		TopLip:      mouth[MouthTopLip],
		BottomLip:   mouth[MouthBottomLip],
		LeftCorner:  mouth[MouthLeftCorner],
		RightCorner: mouth[MouthRightCorner],
	}, nil
}

// FromFace68 picks the scored points out of a full 68-point face layout.
func FromFace68(face []Point) (MouthLandmarks, error) {
	if len(face) < Face68Points {
		return MouthLandmarks{}, fmt.Errorf("face landmarks: got %d points, want %d", len(face), Face68Points)
	}
	return FromMouthContour(face[Face68MouthOffset : Face68MouthOffset+MouthPoints])
}

// Scale maps the landmarks into another coordinate frame, e.g. from model
// input pixels to display pixels.
func (m MouthLandmarks) Scale(sx, sy float64) MouthLandmarks {
	scale := func(p Point) Point { return Point{X: p.X * sx, Y: p.Y * sy} }
	return MouthLandmarks{
		TopLip:      scale(m.TopLip),
		BottomLip:   scale(m.BottomLip),
		LeftCorner:  scale(m.LeftCorner),
		RightCorner: scale(m.RightCorner),
	}
}

package expression

import (
	"fmt"
	"math"
)

// Features are the geometric ratios derived from the mouth landmarks.
type Features struct {
	// MouthRatio is mouth width over mouth height.
	MouthRatio float64 `json:"mouth_ratio"`

	// LipCurve is the vertical offset of the lip-center midpoint from the
	// corner midpoint, normalized by mouth height. Positive means the corners
	// sit above the lip center (a smile, since y grows downward).
	LipCurve float64 `json:"lip_curve"`

	// LipThickness is mouth height over mouth width.
	LipThickness float64 `json:"lip_thickness"`
}

// Extract computes Features from the landmarks.
func Extract(m MouthLandmarks) (Features, error) {
	for _, p := range []Point{m.TopLip, m.BottomLip, m.LeftCorner, m.RightCorner} {
		if !finite(p.X) || !finite(p.Y) {
			return Features{}, fmt.Errorf("%w: non-finite landmark (%v, %v)", ErrInvalidGeometry, p.X, p.Y)
		}
	}

	height := math.Abs(m.BottomLip.Y - m.TopLip.Y)
	width := math.Abs(m.RightCorner.X - m.LeftCorner.X)
	if height == 0 {
		return Features{}, fmt.Errorf("%w: zero mouth height", ErrInvalidGeometry)
	}
	if width == 0 {
		return Features{}, fmt.Errorf("%w: zero mouth width", ErrInvalidGeometry)
	}

	lipCenterY := (m.TopLip.Y + m.BottomLip.Y) / 2
	cornerY := (m.LeftCorner.Y + m.RightCorner.Y) / 2

	return Features{
		MouthRatio:   width / height,
		LipCurve:     (lipCenterY - cornerY) / height,
		LipThickness: height / width,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

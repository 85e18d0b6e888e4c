package smile

import (
	"context"
	"fmt"
	"os"

	"github.com/teslashibe/go-smile/pkg/expression"
	"github.com/teslashibe/go-smile/pkg/session"
)

// Analysis is the one-shot score of a still image.
type Analysis struct {
	File   string             `json:"file"`
	Found  bool               `json:"found"`
	Result *expression.Result `json:"result,omitempty"`
}

// AnalyzeFile scores the face in the image at path with a fresh smoother, so
// the result is a single blend from the baseline.
func AnalyzeFile(ctx context.Context, p session.LandmarkProvider, path string) (Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Analysis{}, err
	}
	a, err := AnalyzeImage(ctx, p, data)
	a.File = path
	return a, err
}

// AnalyzeImage scores the face in an encoded image. The provider must
// already be loaded.
func AnalyzeImage(ctx context.Context, p session.LandmarkProvider, image []byte) (Analysis, error) {
	face, err := p.Detect(ctx, image)
	if err != nil {
		return Analysis{}, fmt.Errorf("detect: %w", err)
	}
	if face == nil {
		return Analysis{Found: false}, nil
	}

	res, err := expression.Analyze(expression.NewSmoother(), *face)
	if err != nil {
		return Analysis{Found: true}, err
	}
	return Analysis{Found: true, Result: &res}, nil
}

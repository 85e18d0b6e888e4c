package detection

import (
	"context"
	"log/slog"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-smile/internal/log"
	"github.com/teslashibe/go-smile/pkg/expression"
)

// Provider finds the best face with YuNet and regresses its mouth landmarks
// with LandmarkNet. It satisfies session.LandmarkProvider.
type Provider struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	faces *YuNetDetector
	marks *LandmarkNet
}

// NewProvider creates a provider. Models are loaded by Load.
func NewProvider(cfg Config) *Provider {
	return &Provider{
		cfg:    cfg,
		logger: log.With("component", "detection"),
	}
}

// Load loads both networks, downloading missing models when ModelBaseURL is
// set. Loading twice is a no-op.
func (p *Provider) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.faces != nil {
		return nil
	}

	if p.cfg.ModelBaseURL != "" {
		if err := EnsureModels(ctx, p.cfg.ModelBaseURL, p.cfg.FaceModelPath, p.cfg.LandmarkModelPath); err != nil {
			return err
		}
	}

	faces, err := NewYuNet(p.cfg)
	if err != nil {
		return err
	}
	marks, err := NewLandmarkNet(p.cfg)
	if err != nil {
		faces.Close()
		return err
	}

	p.faces, p.marks = faces, marks
	p.logger.Info("models loaded",
		"face_model", p.cfg.FaceModelPath,
		"landmark_model", p.cfg.LandmarkModelPath,
		"input", p.cfg.InputWidth)
	return nil
}

// Detect returns the mouth landmarks of the best face in the JPEG frame, or
// nil when no face clears the confidence threshold.
func (p *Provider) Detect(_ context.Context, frame []byte) (*expression.MouthLandmarks, error) {
	p.mu.Lock()
	faces, marks := p.faces, p.marks
	p.mu.Unlock()

	if faces == nil {
		return nil, ErrNotLoaded
	}

	img, err := decode(frame)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	return p.detectMat(faces, marks, img)
}

func (p *Provider) detectMat(faces *YuNetDetector, marks *LandmarkNet, img gocv.Mat) (*expression.MouthLandmarks, error) {
	var kept []Detection
	for _, d := range faces.DetectMat(img) {
		if d.Confidence >= p.cfg.ConfidenceThresh {
			kept = append(kept, d)
		}
	}
	best := SelectBest(kept)
	if best == nil {
		return nil, nil
	}

	pts, err := marks.Landmarks(img, best.Rect(img.Cols(), img.Rows()))
	if err != nil {
		return nil, err
	}
	m, err := expression.FromFace68(pts)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Close releases both networks.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.faces != nil {
		p.faces.Close()
		p.faces = nil
	}
	if p.marks != nil {
		p.marks.Close()
		p.marks = nil
	}
	return nil
}

package expression

// Result is the outcome of scoring a single set of landmarks.
type Result struct {
	Features      Features   `json:"features"`
	Adjustment    Adjustment `json:"adjustment"`
	Instantaneous float64    `json:"instantaneous"`
	Running       float64    `json:"running"`
	Score         int        `json:"score"`
	Message       MessageID  `json:"message"`
}

// Analyze runs the whole pipeline for one frame and advances the smoother.
// On ErrInvalidGeometry the smoother is left untouched.
func Analyze(s *Smoother, m MouthLandmarks) (Result, error) {
	f, err := Extract(m)
	if err != nil {
		return Result{}, err
	}
	adj := Classify(f)
	running := s.Update(adj)
	score := Round(running)
	return Result{
		Features:      f,
		Adjustment:    adj,
		Instantaneous: Instantaneous(adj),
		Running:       running,
		Score:         score,
		Message:       MessageFor(score),
	}, nil
}

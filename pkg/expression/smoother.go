package expression

import (
	"math"
	"sync"
)

// Score bounds and blending.
const (
	Baseline  = 80.0
	MinScore  = 60.0
	MaxScore  = 95.0
	Smoothing = 0.5 // weight of the new instantaneous score
)

// Smoother keeps the running score across detection cycles. It is a
// first-order EMA stepped once per cycle, not per unit of wall-clock time.
type Smoother struct {
	mu      sync.RWMutex
	running float64
	cycles  int
}

// NewSmoother creates a smoother at the baseline score.
func NewSmoother() *Smoother {
	return &Smoother{running: Baseline}
}

// Instantaneous returns the clamped score for a single frame.
func Instantaneous(adj Adjustment) float64 {
	return clamp(Baseline+float64(adj), MinScore, MaxScore)
}

// Update blends the adjustment into the running score and returns it.
// The blend of two in-band values stays in band, so the final clamp only
// absorbs floating-point error.
func (s *Smoother) Update(adj Adjustment) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = s.running*(1-Smoothing) + Instantaneous(adj)*Smoothing
	s.running = clamp(s.running, MinScore, MaxScore)
	s.cycles++
	return s.running
}

// Score returns the current running score.
func (s *Smoother) Score() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Rounded returns the running score rounded to the nearest integer.
func (s *Smoother) Rounded() int {
	return Round(s.Score())
}

// Cycles returns how many updates have been applied.
func (s *Smoother) Cycles() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycles
}

// Reset returns the smoother to the baseline.
func (s *Smoother) Reset() {
	s.mu.Lock()
	s.running = Baseline
	s.cycles = 0
	s.mu.Unlock()
}

// Round rounds half away from zero, the way the score display does.
func Round(score float64) int {
	return int(math.Round(score))
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

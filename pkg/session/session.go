package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/teslashibe/go-smile/internal/log"
	"github.com/teslashibe/go-smile/pkg/expression"
)

// Session drives the detection loop for one camera.
//
// Start, Stop, Retry, Reset and Snapshot are safe to call from any goroutine.
// Listener methods are invoked from the loop goroutine and must not call
// Stop, Retry or Reset synchronously.
type Session struct {
	cfg      Config
	frames   FrameSource
	provider LandmarkProvider
	listener Listener
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	phase   Phase
	lastErr error
	current *run
}

// run is one Start..Stop span of the loop. Each run has its own flag so a
// loop goroutine left over from a previous run can never resume.
type run struct {
	id       string
	smoother *expression.Smoother

	mu       sync.Mutex // serializes emits against halt
	active   atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newRun() *run {
	r := &run{
		id:       uuid.NewString(),
		smoother: expression.NewSmoother(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	r.active.Store(true)
	return r
}

// halt clears the run flag. Once it returns no further listener events fire.
func (r *run) halt() {
	r.mu.Lock()
	r.active.Store(false)
	r.mu.Unlock()
	r.stopOnce.Do(func() { close(r.stop) })
}

// emit calls fn only while the run is active.
func (r *run) emit(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active.Load() {
		fn()
	}
}

// New creates an idle session.
func New(cfg Config, frames FrameSource, provider LandmarkProvider, listener Listener) *Session {
	if listener == nil {
		listener = nopListener{}
	}
	return &Session{
		cfg:      cfg,
		frames:   frames,
		provider: provider,
		listener: listener,
		logger:   log.With("component", "session"),
		state:    StateIdle,
	}
}

// SetLogger replaces the session logger.
func (s *Session) SetLogger(l *slog.Logger) {
	s.logger = l
}

// Start initializes the provider and camera and launches the loop. ctx bounds
// the lifetime of the loop, not just the call.
//
// If the camera is already active, initialization is skipped. Initialization
// failures leave the session in Error and are returned wrapped in
// ErrInitialization; there is no automatic retry.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.current != nil && s.current.active.Load() {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotIdle, state)
	}
	s.state = StateInitializing
	s.phase = PhaseNone
	s.lastErr = nil
	s.mu.Unlock()
	s.notifyState(StateInitializing, nil)

	if s.frames.Active() {
		s.logger.Info("camera already active, skipping initialization")
	} else if err := s.initialize(ctx); err != nil {
		s.mu.Lock()
		// A Stop during initialization already moved the session to Idle.
		stopped := s.state != StateInitializing
		if !stopped {
			s.state = StateError
			s.lastErr = err
		}
		s.mu.Unlock()
		s.logger.Error("initialization failed", "error", err)
		if !stopped {
			s.notifyState(StateError, err)
		}
		return fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	s.mu.Lock()
	if s.state != StateInitializing {
		// Stopped while initializing.
		s.mu.Unlock()
		return nil
	}
	r := newRun()
	s.current = r
	s.state = StateRunning
	s.mu.Unlock()

	s.logger.Info("detection started", "session", r.id, "frame_rate", s.cfg.FrameRate)
	s.notifyState(StateRunning, nil)

	go s.loop(ctx, r)
	return nil
}

func (s *Session) initialize(ctx context.Context) error {
	s.enterPhase(PhaseLoadingModels)
	s.logger.Info("loading landmark models")
	if err := s.provider.Load(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	s.enterPhase(PhaseStartingCamera)
	s.logger.Info("starting camera")
	if err := s.frames.Open(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrCamera, err)
	}
	return nil
}

// enterPhase records an initialization step unless the session has been
// stopped meanwhile.
func (s *Session) enterPhase(p Phase) {
	s.mu.Lock()
	if s.state != StateInitializing {
		s.mu.Unlock()
		return
	}
	s.phase = p
	s.mu.Unlock()

	if pl, ok := s.listener.(PhaseListener); ok {
		pl.OnPhase(p)
	}
}

// Stop clears the run flag. An in-flight detection completes but its result
// is discarded. Stop does not release the camera.
func (s *Session) Stop() {
	s.mu.Lock()
	r := s.current
	changed := s.state != StateIdle
	s.state = StateIdle
	s.mu.Unlock()

	if r != nil {
		r.halt()
	}
	if changed {
		s.logger.Info("detection stopped")
		s.notifyState(StateIdle, nil)
	}
}

// Reset stops the session and clears the last error, returning it to Idle.
func (s *Session) Reset() {
	s.Stop()
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

// Retry stops the loop, releases the camera, waits RestartDelay and starts a
// fresh session with a new running score.
func (s *Session) Retry(ctx context.Context) error {
	s.Reset()
	if err := s.frames.Close(); err != nil {
		s.logger.Warn("release camera", "error", err)
	}

	if s.cfg.RestartDelay > 0 {
		timer := time.NewTimer(s.cfg.RestartDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return s.Start(ctx)
}

// Done is closed when the current loop goroutine exits.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.current.done
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current state and score.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:        s.state,
		RunningScore: expression.Baseline,
	}
	if s.current != nil {
		snap.ID = s.current.id
		snap.RunningScore = s.current.smoother.Score()
		snap.Cycles = s.current.smoother.Cycles()
	}
	snap.Score = expression.Round(snap.RunningScore)
	snap.Message = expression.MessageFor(snap.Score)
	if s.state == StateInitializing {
		snap.Phase = s.phase
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
		snap.Err = s.lastErr
	}
	return snap
}

func (s *Session) loop(ctx context.Context, r *run) {
	defer close(r.done)

	var pacer *rate.Limiter
	if s.cfg.FrameRate > 0 {
		pacer = rate.NewLimiter(rate.Limit(s.cfg.FrameRate), 1)
	}
	backoff := retry.NewConstant(s.cfg.ErrorBackoff)

	for r.active.Load() {
		if pacer != nil {
			if err := pacer.Wait(ctx); err != nil {
				s.shutdown(r)
				return
			}
		}
		if ctx.Err() != nil {
			s.shutdown(r)
			return
		}

		err := s.cycle(ctx, r)
		if err == nil {
			continue
		}
		if !r.active.Load() {
			return
		}
		if ctx.Err() != nil {
			s.shutdown(r)
			return
		}

		s.logger.Warn("detection cycle failed", "session", r.id, "error", err)
		s.setRunState(r, StateError, err)
		r.emit(func() { s.listener.OnStatus(StatusDetectionError) })

		delay, _ := backoff.Next()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.shutdown(r)
			return
		case <-r.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		s.setRunState(r, StateRunning, nil)
	}
}

// cycle runs one frame through the pipeline. Provider panics are reported as
// cycle errors.
func (s *Session) cycle(ctx context.Context, r *run) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrDetectionCycle, p)
		}
	}()

	frame, err := s.frames.Frame(ctx)
	if err != nil {
		return fmt.Errorf("%w: frame: %w", ErrDetectionCycle, err)
	}

	face, err := s.provider.Detect(ctx, frame)
	if !r.active.Load() {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: detect: %w", ErrDetectionCycle, err)
	}

	if face == nil {
		r.emit(func() { s.listener.OnStatus(StatusNoFaceDetected) })
		return nil
	}

	res, err := expression.Analyze(r.smoother, *face)
	if errors.Is(err, expression.ErrInvalidGeometry) {
		s.logger.Debug("skipping frame", "reason", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDetectionCycle, err)
	}

	s.logger.Debug("expression scored",
		"mouth_ratio", res.Features.MouthRatio,
		"lip_curve", res.Features.LipCurve,
		"lip_thickness", res.Features.LipThickness,
		"adjustment", int(res.Adjustment),
		"score", res.Score)

	r.emit(func() {
		s.listener.OnScoreUpdate(res.Score)
		s.listener.OnMessageUpdate(res.Message)
	})
	return nil
}

// setRunState moves between Running and Error while r is the current run.
// Once Stop has moved the session to Idle the loop can no longer change it.
func (s *Session) setRunState(r *run, state State, err error) {
	s.mu.Lock()
	if s.current != r || !r.active.Load() || (s.state != StateRunning && s.state != StateError) {
		s.mu.Unlock()
		return
	}
	s.state = state
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()
	r.emit(func() { s.notifyState(state, err) })
}

// shutdown ends r after its context was cancelled.
func (s *Session) shutdown(r *run) {
	r.halt()
	s.mu.Lock()
	if s.current == r {
		s.state = StateIdle
	}
	s.mu.Unlock()
	s.logger.Info("detection loop exited", "session", r.id)
}

func (s *Session) notifyState(state State, err error) {
	if sl, ok := s.listener.(StateListener); ok {
		sl.OnStateChange(state, err)
	}
}

type nopListener struct{}

func (nopListener) OnScoreUpdate(int)                    {}
func (nopListener) OnMessageUpdate(expression.MessageID) {}
func (nopListener) OnStatus(Status)                      {}

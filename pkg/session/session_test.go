package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-smile/pkg/expression"
)

// smile classifies as +15 (ratio 4, curve 1).
var smile = &expression.MouthLandmarks{
	TopLip:      expression.Point{X: 50, Y: 100},
	BottomLip:   expression.Point{X: 50, Y: 110},
	LeftCorner:  expression.Point{X: 30, Y: 95},
	RightCorner: expression.Point{X: 70, Y: 95},
}

// grimace classifies as -20 (ratio 1.2, curve -0.25).
var grimace = &expression.MouthLandmarks{
	TopLip:      expression.Point{X: 50, Y: 100},
	BottomLip:   expression.Point{X: 50, Y: 120},
	LeftCorner:  expression.Point{X: 38, Y: 115},
	RightCorner: expression.Point{X: 62, Y: 115},
}

type fakeFrames struct {
	mu      sync.Mutex
	active  bool
	openErr error
	opens   int
	closes  int
}

func (f *fakeFrames) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.openErr != nil {
		return f.openErr
	}
	f.active = true
	return nil
}

func (f *fakeFrames) Frame(ctx context.Context) ([]byte, error) {
	return []byte("frame"), nil
}

func (f *fakeFrames) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.active = false
	return nil
}

func (f *fakeFrames) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

type detectResult struct {
	face  *expression.MouthLandmarks
	err   error
	panic bool
}

// fakeProvider blocks each Detect until the test sends a result.
type fakeProvider struct {
	mu      sync.Mutex
	loadErr error
	loads   int
	results chan detectResult
	started chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		results: make(chan detectResult),
		started: make(chan struct{}, 100),
	}
}

func (p *fakeProvider) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
	return p.loadErr
}

func (p *fakeProvider) Detect(ctx context.Context, frame []byte) (*expression.MouthLandmarks, error) {
	select {
	case p.started <- struct{}{}:
	default:
	}
	select {
	case r := <-p.results:
		if r.panic {
			panic("provider exploded")
		}
		return r.face, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *fakeProvider) Loads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads
}

type event struct {
	kind    string
	score   int
	message expression.MessageID
	status  Status
}

type recorder struct {
	events chan event

	mu     sync.Mutex
	states []State
}

func newRecorder() *recorder {
	return &recorder{events: make(chan event, 100)}
}

func (r *recorder) OnScoreUpdate(score int) {
	r.events <- event{kind: "score", score: score}
}

func (r *recorder) OnMessageUpdate(m expression.MessageID) {
	r.events <- event{kind: "message", message: m}
}

func (r *recorder) OnStatus(s Status) {
	r.events <- event{kind: "status", status: s}
}

func (r *recorder) OnStateChange(s State, err error) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) States() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case e := <-r.events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return event{}
	}
}

func (r *recorder) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case e := <-r.events:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(d):
	}
}

func testConfig() Config {
	return Config{
		FrameRate:    0,
		ErrorBackoff: 200 * time.Millisecond,
		RestartDelay: 10 * time.Millisecond,
	}
}

func send(t *testing.T, p *fakeProvider, r detectResult) {
	t.Helper()
	select {
	case p.results <- r:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Detect call")
	}
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit")
	}
}

func startSession(t *testing.T) (*Session, *fakeFrames, *fakeProvider, *recorder) {
	t.Helper()
	frames := &fakeFrames{}
	provider := newFakeProvider()
	rec := newRecorder()
	s := New(testConfig(), frames, provider, rec)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		s.Stop()
	})
	require.NoError(t, s.Start(ctx))
	return s, frames, provider, rec
}

func TestSession_ScoresFrames(t *testing.T) {
	s, frames, provider, rec := startSession(t)

	assert.Equal(t, StateRunning, s.State())
	assert.Equal(t, 1, provider.Loads())
	assert.True(t, frames.Active())

	send(t, provider, detectResult{face: smile})
	e := rec.next(t)
	require.Equal(t, "score", e.kind)
	assert.Equal(t, 88, e.score)
	e = rec.next(t)
	require.Equal(t, "message", e.kind)
	assert.Equal(t, expression.MessageSlightSmile, e.message)

	snap := s.Snapshot()
	assert.Equal(t, 87.5, snap.RunningScore)
	assert.Equal(t, 88, snap.Score)
	assert.Equal(t, 1, snap.Cycles)
	assert.NotEmpty(t, snap.ID)
}

func TestSession_FrownSequence(t *testing.T) {
	_, _, provider, rec := startSession(t)

	expected := []int{70, 65, 63}
	for _, want := range expected {
		send(t, provider, detectResult{face: grimace})
		e := rec.next(t)
		require.Equal(t, "score", e.kind)
		assert.Equal(t, want, e.score)
		rec.next(t)
	}
}

func TestSession_NoFace(t *testing.T) {
	s, _, provider, rec := startSession(t)

	send(t, provider, detectResult{})
	e := rec.next(t)
	require.Equal(t, "status", e.kind)
	assert.Equal(t, StatusNoFaceDetected, e.status)

	snap := s.Snapshot()
	assert.Equal(t, expression.Baseline, snap.RunningScore)
	assert.Equal(t, 0, snap.Cycles)
	assert.Equal(t, StateRunning, snap.State)
}

func TestSession_InvalidGeometrySkipsCycle(t *testing.T) {
	s, _, provider, rec := startSession(t)

	send(t, provider, detectResult{face: &expression.MouthLandmarks{}})
	send(t, provider, detectResult{face: smile})

	// The degenerate frame produced no event and did not move the score.
	e := rec.next(t)
	require.Equal(t, "score", e.kind)
	assert.Equal(t, 88, e.score)
	assert.Equal(t, 1, s.Snapshot().Cycles)
}

func TestSession_DetectionErrorBacksOff(t *testing.T) {
	s, _, provider, rec := startSession(t)

	sentAt := time.Now()
	send(t, provider, detectResult{err: errors.New("model crashed")})
	e := rec.next(t)
	require.Equal(t, "status", e.kind)
	assert.Equal(t, StatusDetectionError, e.status)
	assert.Equal(t, StateError, s.State())
	assert.Contains(t, s.Snapshot().LastError, "model crashed")

	send(t, provider, detectResult{face: smile})
	assert.GreaterOrEqual(t, time.Since(sentAt), testConfig().ErrorBackoff)

	e = rec.next(t)
	require.Equal(t, "score", e.kind)
	assert.Equal(t, 88, e.score)
	assert.Equal(t, StateRunning, s.State())
}

func TestSession_ProviderPanicIsCycleError(t *testing.T) {
	s, _, provider, rec := startSession(t)

	send(t, provider, detectResult{panic: true})
	e := rec.next(t)
	require.Equal(t, "status", e.kind)
	assert.Equal(t, StatusDetectionError, e.status)
	assert.Contains(t, s.Snapshot().LastError, "panic")

	send(t, provider, detectResult{face: smile})
	e = rec.next(t)
	assert.Equal(t, "score", e.kind)
}

func TestSession_StopDiscardsInFlightResult(t *testing.T) {
	s, _, provider, rec := startSession(t)

	select {
	case <-provider.started:
	case <-time.After(2 * time.Second):
		t.Fatal("detect never started")
	}

	s.Stop()
	assert.Equal(t, StateIdle, s.State())

	// The in-flight call still resolves, but nothing is emitted.
	send(t, provider, detectResult{face: smile})
	waitDone(t, s)
	rec.expectNone(t, 50*time.Millisecond)
	assert.Equal(t, 0, s.Snapshot().Cycles)
}

func TestSession_StopDuringBackoff(t *testing.T) {
	s, _, provider, rec := startSession(t)

	send(t, provider, detectResult{err: errors.New("boom")})
	rec.next(t)

	s.Stop()
	waitDone(t, s)
	rec.expectNone(t, 50*time.Millisecond)
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_ContextCancelEndsLoop(t *testing.T) {
	frames := &fakeFrames{}
	provider := newFakeProvider()
	s := New(testConfig(), frames, provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	waitDone(t, s)
	assert.Equal(t, StateIdle, s.State())
}

func TestSession_StartTwice(t *testing.T) {
	s, _, _, _ := startSession(t)
	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestSession_InitializationFailure(t *testing.T) {
	frames := &fakeFrames{}
	provider := newFakeProvider()
	provider.loadErr = errors.New("model download failed")
	rec := newRecorder()
	s := New(testConfig(), frames, provider, rec)

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrInitialization)
	assert.ErrorIs(t, err, ErrModelLoad)
	assert.Contains(t, err.Error(), "model download failed")
	assert.Equal(t, StateError, s.State())
	assert.Equal(t, 0, frames.opens)

	// No automatic retry: a second Start is refused until Reset.
	assert.ErrorIs(t, s.Start(context.Background()), ErrNotIdle)

	s.Reset()
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.Snapshot().LastError)
	assert.Equal(t, []State{StateInitializing, StateError, StateIdle}, rec.States())
}

func TestSession_CameraFailure(t *testing.T) {
	frames := &fakeFrames{openErr: errors.New("permission denied")}
	s := New(testConfig(), frames, newFakeProvider(), nil)

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrInitialization)
	assert.ErrorIs(t, err, ErrCamera)
	snap := s.Snapshot()
	assert.Contains(t, snap.LastError, "permission denied")
	assert.ErrorIs(t, snap.Err, ErrCamera)
}

func TestSession_ActiveCameraSkipsInitialization(t *testing.T) {
	frames := &fakeFrames{active: true}
	provider := newFakeProvider()
	s := New(testConfig(), frames, provider, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	assert.Equal(t, 0, provider.Loads())
	assert.Equal(t, 0, frames.opens)
	assert.Equal(t, StateRunning, s.State())
}

// phaseLog records initialization phases along with the snapshot seen at
// each one.
type phaseLog struct {
	nopListener
	s *Session

	mu     sync.Mutex
	phases []Phase
	seen   []Phase
}

func (l *phaseLog) OnPhase(p Phase) {
	snap := l.s.Snapshot()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phases = append(l.phases, p)
	l.seen = append(l.seen, snap.Phase)
}

func TestSession_InitializationPhases(t *testing.T) {
	tests := []struct {
		name    string
		loadErr error
		openErr error
		want    []Phase
	}{
		{"success", nil, nil, []Phase{PhaseLoadingModels, PhaseStartingCamera}},
		{"model failure", errors.New("missing"), nil, []Phase{PhaseLoadingModels}},
		{"camera failure", nil, errors.New("busy"), []Phase{PhaseLoadingModels, PhaseStartingCamera}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := newFakeProvider()
			provider.loadErr = tc.loadErr
			l := &phaseLog{}
			s := New(testConfig(), &fakeFrames{openErr: tc.openErr}, provider, l)
			l.s = s

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			err := s.Start(ctx)
			defer s.Stop()
			if tc.loadErr == nil && tc.openErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInitialization)
			}

			assert.Equal(t, tc.want, l.phases)
			assert.Equal(t, tc.want, l.seen)
			assert.Equal(t, PhaseNone, s.Snapshot().Phase)
		})
	}
}

// gatedProvider blocks Load until the test releases it.
type gatedProvider struct {
	entered chan struct{}
	release chan error
}

func (p *gatedProvider) Load(ctx context.Context) error {
	p.entered <- struct{}{}
	return <-p.release
}

func (p *gatedProvider) Detect(ctx context.Context, frame []byte) (*expression.MouthLandmarks, error) {
	return nil, nil
}

func TestSession_StopDuringFailedInitialization(t *testing.T) {
	provider := &gatedProvider{entered: make(chan struct{}), release: make(chan error)}
	rec := newRecorder()
	s := New(testConfig(), &fakeFrames{}, provider, rec)

	errc := make(chan error, 1)
	go func() { errc <- s.Start(context.Background()) }()

	select {
	case <-provider.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("Load was not called")
	}
	s.Stop()
	provider.release <- errors.New("model download failed")

	require.ErrorIs(t, <-errc, ErrInitialization)
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, s.Snapshot().LastError)
	assert.Equal(t, []State{StateInitializing, StateIdle}, rec.States())
}

// failingProvider fails every detection immediately.
type failingProvider struct{}

func (failingProvider) Load(ctx context.Context) error { return nil }

func (failingProvider) Detect(ctx context.Context, frame []byte) (*expression.MouthLandmarks, error) {
	return nil, errors.New("model crashed")
}

// slowStatus keeps the loop busy in OnStatus between a failed cycle and its
// backoff.
type slowStatus struct{ nopListener }

func (slowStatus) OnStatus(Status) { time.Sleep(2 * time.Millisecond) }

func TestSession_StopDuringFailingCycles(t *testing.T) {
	cfg := testConfig()
	cfg.ErrorBackoff = time.Microsecond
	s := New(cfg, &fakeFrames{active: true}, failingProvider{}, slowStatus{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 25; i++ {
		require.NoError(t, s.Start(ctx), "start %d", i)
		time.Sleep(time.Millisecond)
		s.Stop()
		waitDone(t, s)
		require.Equal(t, StateIdle, s.State(), "state after stop %d", i)
	}
}

// instantProvider returns the same face on every call.
type instantProvider struct {
	mu    sync.Mutex
	face  *expression.MouthLandmarks
	loads int
}

func (p *instantProvider) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
	return nil
}

func (p *instantProvider) Detect(ctx context.Context, frame []byte) (*expression.MouthLandmarks, error) {
	return p.face, nil
}

// scoreLog records scores without ever blocking the loop.
type scoreLog struct {
	mu     sync.Mutex
	scores []int
}

func (l *scoreLog) OnScoreUpdate(score int) {
	l.mu.Lock()
	l.scores = append(l.scores, score)
	l.mu.Unlock()
}

func (l *scoreLog) OnMessageUpdate(expression.MessageID) {}
func (l *scoreLog) OnStatus(Status)                      {}

func (l *scoreLog) Scores() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.scores...)
}

func TestSession_RetryRestartsFresh(t *testing.T) {
	frames := &fakeFrames{}
	provider := &instantProvider{face: smile}
	scores := &scoreLog{}
	cfg := testConfig()
	cfg.FrameRate = 200
	s := New(cfg, frames, provider, scores)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	// A held smile converges on the top of the band.
	require.Eventually(t, func() bool {
		got := scores.Scores()
		return len(got) > 0 && got[len(got)-1] == 95
	}, 2*time.Second, 5*time.Millisecond)
	before := s.Snapshot()
	mark := len(scores.Scores())

	require.NoError(t, s.Retry(ctx))
	assert.Equal(t, StateRunning, s.State())
	assert.NotEqual(t, before.ID, s.Snapshot().ID)
	assert.Equal(t, 1, frames.closes)
	assert.Equal(t, 2, frames.opens)
	assert.Equal(t, 2, provider.loads)

	// The restarted session blends from the baseline again.
	require.Eventually(t, func() bool {
		for _, score := range scores.Scores()[mark:] {
			if score == 88 {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSession_SnapshotBeforeStart(t *testing.T) {
	s := New(DefaultConfig(), &fakeFrames{}, newFakeProvider(), nil)
	snap := s.Snapshot()

	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 80, snap.Score)
	assert.Equal(t, expression.MessageNeutral, snap.Message)
	select {
	case <-s.Done():
	default:
		t.Error("Done should be closed when no loop has run")
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ErrorBackoff = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.FrameRate = -1
	assert.Error(t, cfg.Validate())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "error", StateError.String())
	assert.Equal(t, "no_face_detected", StatusNoFaceDetected.String())
	assert.Equal(t, "detection_error", StatusDetectionError.String())
}

func TestState_TextRoundTrip(t *testing.T) {
	for _, st := range []State{StateIdle, StateInitializing, StateRunning, StateError} {
		text, err := st.MarshalText()
		require.NoError(t, err)
		var got State
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, st, got)
	}

	var st State
	assert.Error(t, st.UnmarshalText([]byte("sleeping")))

	var status Status
	require.NoError(t, status.UnmarshalText([]byte("detection_error")))
	assert.Equal(t, StatusDetectionError, status)

	var phase Phase
	require.NoError(t, phase.UnmarshalText([]byte("starting_camera")))
	assert.Equal(t, PhaseStartingCamera, phase)
	assert.Error(t, phase.UnmarshalText([]byte("warming_up")))
}

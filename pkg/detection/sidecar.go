package detection

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/teslashibe/go-smile/pkg/expression"
)

// Sidecar asks an external landmark service for mouth points over a unix
// socket. One msgpack request and one msgpack response per connection.
type Sidecar struct {
	socketPath string
	timeout    time.Duration
	dialer     net.Dialer
}

// SidecarRequest is sent to the landmark service
type SidecarRequest struct {
	JPEG []byte `msgpack:"jpeg"`
}

// SidecarFace is one face reported by the service. Points holds x,y pairs in
// frame pixels: 136 values for the 68-point layout or 40 for the 20-point
// mouth contour.
type SidecarFace struct {
	Confidence float32   `msgpack:"c"`
	Points     []float32 `msgpack:"p"`
}

// SidecarResponse is received from the landmark service
type SidecarResponse struct {
	Faces       []SidecarFace `msgpack:"faces"`
	InferenceMs float32       `msgpack:"inference_ms"`
	Error       string        `msgpack:"error,omitempty"`
}

// NewSidecar creates a client for the service listening on socketPath.
func NewSidecar(socketPath string, timeout time.Duration) *Sidecar {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Sidecar{
		socketPath: socketPath,
		timeout:    timeout,
		dialer:     net.Dialer{Timeout: timeout},
	}
}

// Load waits for the service socket to accept connections.
func (s *Sidecar) Load(ctx context.Context) error {
	b := retry.WithMaxRetries(5, retry.NewConstant(s.timeout))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		conn, err := s.dialer.DialContext(ctx, "unix", s.socketPath)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("connect to landmark service: %w", err))
		}
		return conn.Close()
	})
}

// Detect sends the frame to the service and converts the most confident face.
func (s *Sidecar) Detect(ctx context.Context, frame []byte) (*expression.MouthLandmarks, error) {
	resp, err := s.roundTrip(ctx, SidecarRequest{JPEG: frame})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("landmark service: %s", resp.Error)
	}
	if len(resp.Faces) == 0 {
		return nil, nil
	}

	best := resp.Faces[0]
	for _, f := range resp.Faces[1:] {
		if f.Confidence > best.Confidence {
			best = f
		}
	}
	m, err := mouthFromFlat(best.Points)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Sidecar) roundTrip(ctx context.Context, req SidecarRequest) (*SidecarResponse, error) {
	conn, err := s.dialer.DialContext(ctx, "unix", s.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to landmark service: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	if err := msgpack.NewEncoder(conn).Encode(&req); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp SidecarResponse
	if err := msgpack.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

func mouthFromFlat(values []float32) (expression.MouthLandmarks, error) {
	if len(values)%2 != 0 {
		return expression.MouthLandmarks{}, fmt.Errorf("%w: odd coordinate count %d", ErrBadOutput, len(values))
	}
	pts := make([]expression.Point, len(values)/2)
	for i := range pts {
		pts[i] = expression.Point{X: float64(values[2*i]), Y: float64(values[2*i+1])}
	}
	switch len(pts) {
	case expression.Face68Points:
		return expression.FromFace68(pts)
	case expression.MouthPoints:
		return expression.FromMouthContour(pts)
	default:
		return expression.MouthLandmarks{}, fmt.Errorf("%w: %d points", ErrBadOutput, len(pts))
	}
}

package detection

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/teslashibe/go-smile/pkg/expression"
)

// serveSidecar answers every connection with resp and records request frames.
func serveSidecar(t *testing.T, resp SidecarResponse) (string, <-chan []byte) {
	t.Helper()

	// Unix socket paths are length limited, keep them short.
	dir, err := os.MkdirTemp("", "smile")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "lm.sock")

	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	frames := make(chan []byte, 10)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			var req SidecarRequest
			if err := msgpack.NewDecoder(conn).Decode(&req); err == nil {
				frames <- req.JPEG
				msgpack.NewEncoder(conn).Encode(&resp)
			}
			conn.Close()
		}
	}()
	return path, frames
}

func flat68(corners, lips [2]float32) []float32 {
	v := make([]float32, expression.Face68Points*2)
	set := func(i int, x, y float32) { v[2*i], v[2*i+1] = x, y }
	set(48, 100, corners[0])
	set(54, 160, corners[1])
	set(62, 130, lips[0])
	set(66, 130, lips[1])
	return v
}

func TestSidecar_Detect(t *testing.T) {
	resp := SidecarResponse{Faces: []SidecarFace{
		{Confidence: 0.6, Points: flat68([2]float32{1, 1}, [2]float32{1, 1})},
		{Confidence: 0.9, Points: flat68([2]float32{200, 200}, [2]float32{190, 220})},
	}}
	path, frames := serveSidecar(t, resp)

	s := NewSidecar(path, time.Second)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	m, err := s.Detect(context.Background(), []byte("frame"))
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if m == nil {
		t.Fatal("Detect: expected a face")
	}
	if m.TopLip.Y != 190 || m.BottomLip.Y != 220 {
		t.Errorf("Detect: picked the wrong face, got %+v", m)
	}

	select {
	case f := <-frames:
		if string(f) != "frame" {
			t.Errorf("service got frame %q", f)
		}
	case <-time.After(time.Second):
		t.Error("service never received the frame")
	}
}

func TestSidecar_MouthContour(t *testing.T) {
	pts := make([]float32, expression.MouthPoints*2)
	pts[2*expression.MouthLeftCorner] = 10
	pts[2*expression.MouthRightCorner] = 70
	pts[2*expression.MouthTopLip+1] = 40
	pts[2*expression.MouthBottomLip+1] = 60
	path, _ := serveSidecar(t, SidecarResponse{Faces: []SidecarFace{{Confidence: 1, Points: pts}}})

	m, err := NewSidecar(path, time.Second).Detect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if m.LeftCorner.X != 10 || m.RightCorner.X != 70 || m.BottomLip.Y != 60 {
		t.Errorf("Detect: got %+v", m)
	}
}

func TestSidecar_NoFace(t *testing.T) {
	path, _ := serveSidecar(t, SidecarResponse{})

	m, err := NewSidecar(path, time.Second).Detect(context.Background(), nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if m != nil {
		t.Errorf("Detect: expected no face, got %+v", m)
	}
}

func TestSidecar_Errors(t *testing.T) {
	path, _ := serveSidecar(t, SidecarResponse{Error: "model crashed"})
	if _, err := NewSidecar(path, time.Second).Detect(context.Background(), nil); err == nil {
		t.Error("expected service error")
	}

	path, _ = serveSidecar(t, SidecarResponse{Faces: []SidecarFace{{Points: []float32{1, 2, 3, 4}}}})
	_, err := NewSidecar(path, time.Second).Detect(context.Background(), nil)
	if !errors.Is(err, ErrBadOutput) {
		t.Errorf("expected ErrBadOutput, got %v", err)
	}
}

func TestMouthFromFlat(t *testing.T) {
	face := make([]float32, 2*expression.Face68Points)
	for i := range face {
		face[i] = float32(i)
	}

	tests := []struct {
		name    string
		values  []float32
		wantErr bool
	}{
		{"face68", face, false},
		{"mouth20", face[:2*expression.MouthPoints], false},
		{"trailing value", append(append([]float32(nil), face...), 1), true},
		{"odd mouth", face[:2*expression.MouthPoints+1], true},
		{"empty", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := mouthFromFlat(tc.values)
			if tc.wantErr && !errors.Is(err, ErrBadOutput) {
				t.Errorf("mouthFromFlat(%d values): expected ErrBadOutput, got %v", len(tc.values), err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("mouthFromFlat(%d values): %v", len(tc.values), err)
			}
		})
	}
}

func TestSidecar_LoadUnavailable(t *testing.T) {
	s := NewSidecar("/nonexistent/lm.sock", 10*time.Millisecond)
	if err := s.Load(context.Background()); err == nil {
		t.Error("expected error for missing socket")
	}
}

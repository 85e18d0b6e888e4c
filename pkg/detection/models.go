package detection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/teslashibe/go-smile/internal/httpc"
	"github.com/teslashibe/go-smile/internal/log"
)

// Fetcher downloads model files that are missing on disk.
type Fetcher struct {
	BaseURL string        // Files are fetched from BaseURL/<file name>
	Client  *http.Client  // Defaults to httpc.Client
	Retries uint64        // Extra attempts on temporary failures
	Backoff time.Duration // Base of the fibonacci backoff
	Logger  *slog.Logger
}

// EnsureModels downloads each missing path from baseURL.
func EnsureModels(ctx context.Context, baseURL string, paths ...string) error {
	f := &Fetcher{BaseURL: baseURL, Retries: 3, Backoff: 500 * time.Millisecond}
	return f.Ensure(ctx, paths...)
}

// Ensure downloads each missing path. Existing files are left alone.
func (f *Fetcher) Ensure(ctx context.Context, paths ...string) error {
	logger := f.Logger
	if logger == nil {
		logger = log.With("component", "models")
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if f.BaseURL == "" {
			return fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}

		url := strings.TrimRight(f.BaseURL, "/") + "/" + filepath.Base(path)
		logger.Info("downloading model", "url", url, "path", path)

		base := f.Backoff
		if base <= 0 {
			base = 500 * time.Millisecond
		}
		b := retry.WithMaxRetries(f.Retries, retry.NewFibonacci(base))
		err := retry.Do(ctx, b, func(ctx context.Context) error {
			err := f.download(ctx, url, path)
			if isTemporary(err) {
				logger.Warn("model download failed, retrying", "url", url, "error", err)
				return retry.RetryableError(err)
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("download %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

func (f *Fetcher) download(ctx context.Context, url, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := httpc.Fetch(ctx, f.Client, url, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func isTemporary(err error) bool {
	if err == nil {
		return false
	}
	var se *httpc.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ne net.Error
	return errors.As(err, &ne)
}

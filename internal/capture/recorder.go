package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/nao1215/socialmark/internal/model"
)

// Recorder appends every observed event to a JSON lines stream that
// Replayer can read back. It implements observer.Handler.
//
// Observe reads the event body, so a Recorder must be subscribed before
// any handler that hands the body to another goroutine.
type Recorder struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer []io.Closer
	logger *slog.Logger
	count  int
}

// NewRecorder creates a Recorder writing to w. The caller owns w.
func NewRecorder(w io.Writer, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{enc: json.NewEncoder(w), logger: logger}
}

// CreateRecorder creates the file at path and returns a Recorder writing
// to it, gzip compressed when the name ends in ".gz". Close flushes and
// closes the file.
func CreateRecorder(path string, logger *slog.Logger) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // path is given by the user
	if err != nil {
		return nil, fmt.Errorf("failed to create record file: %w", err)
	}

	if !strings.HasSuffix(path, ".gz") {
		r := NewRecorder(f, logger)
		r.closer = []io.Closer{f}
		return r, nil
	}

	zw := gzip.NewWriter(f)
	r := NewRecorder(zw, logger)
	r.closer = []io.Closer{zw, f}
	return r, nil
}

// Observe implements observer.Handler.
func (r *Recorder) Observe(_ context.Context, _ model.Topic, ev *model.Event) {
	we, err := NewWireEvent(ev)
	if err != nil {
		r.logger.Warn("couldn't record event", "event_id", ev.ID, "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.enc.Encode(we); err != nil {
		r.logger.Warn("couldn't record event", "event_id", ev.ID, "error", err)
		return
	}
	r.count++
}

// Count returns the number of events recorded.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close flushes and closes the underlying file, if the Recorder owns one.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, c := range r.closer {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closer = nil
	return firstErr
}

package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// maxLineSize bounds a single JSON line in a replay file.
const maxLineSize = 16 * 1024 * 1024

// ReplayResult summarizes one replayed file.
type ReplayResult struct {
	// Published is the number of events delivered to the publisher.
	Published int

	// Skipped is the number of lines that could not be turned into events.
	Skipped int
}

// Replayer reads JSON lines files of wire events and publishes them.
type Replayer struct {
	publisher Publisher
	now       func() time.Time
	logger    *slog.Logger
}

// ReplayOption configures a Replayer.
type ReplayOption func(*Replayer)

// WithReplayLogger sets a custom logger for the replayer.
func WithReplayLogger(logger *slog.Logger) ReplayOption {
	return func(r *Replayer) {
		r.logger = logger
	}
}

// NewReplayer creates a Replayer publishing to publisher.
func NewReplayer(publisher Publisher, opts ...ReplayOption) *Replayer {
	r := &Replayer{
		publisher: publisher,
		now:       time.Now,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ReplayFile publishes every event in the file at path. Files whose name
// ends in ".gz" are gunzipped.
func (r *Replayer) ReplayFile(ctx context.Context, path string) (ReplayResult, error) {
	f, err := os.Open(path) //nolint:gosec // path is given by the user
	if err != nil {
		return ReplayResult{}, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return ReplayResult{}, fmt.Errorf("failed to open gzip replay file: %w", err)
		}
		defer zr.Close()
		reader = zr
	}

	return r.Replay(ctx, reader)
}

// Replay publishes every event read from rd, one JSON object per line.
// Blank lines are ignored; malformed lines are logged and skipped.
// Replay stops early when ctx is cancelled.
func (r *Replayer) Replay(ctx context.Context, rd io.Reader) (ReplayResult, error) {
	var result ReplayResult

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return result, err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var we WireEvent
		if err := json.Unmarshal([]byte(line), &we); err != nil {
			result.Skipped++
			r.logger.Warn("skipping malformed replay line", "line", lineNo, "error", err)
			continue
		}

		ev, err := we.ToEvent(r.now())
		if err != nil {
			result.Skipped++
			r.logger.Warn("skipping invalid replay event", "line", lineNo, "error", err)
			continue
		}

		r.publisher.Publish(ctx, ev.Topic, ev)
		result.Published++
	}

	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("failed to read replay input: %w", err)
	}

	return result, nil
}

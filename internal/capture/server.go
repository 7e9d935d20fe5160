package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"github.com/nao1215/socialmark/internal/model"
)

// DefaultMaxBodySize is the default upper bound of an upload, after
// decompression.
const DefaultMaxBodySize int64 = 4 * 1024 * 1024

// Publisher delivers events to subscribed handlers. *observer.Hub
// implements it.
type Publisher interface {
	Publish(ctx context.Context, topic model.Topic, ev *model.Event) int
}

// Server accepts captured transactions over HTTP and publishes them.
//
// Routes:
//
//	POST /v1/events  one WireEvent or a JSON array of them
//	GET  /healthz    liveness probe
type Server struct {
	publisher   Publisher
	maxBodySize int64
	now         func() time.Time
	logger      *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets a custom logger for the server.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxBodySize sets the maximum accepted upload size in bytes.
func WithMaxBodySize(size int64) ServerOption {
	return func(s *Server) {
		if size > 0 {
			s.maxBodySize = size
		}
	}
}

// WithClock sets the time source for events without observed_at.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

// NewServer creates a Server publishing to publisher.
func NewServer(publisher Publisher, opts ...ServerOption) *Server {
	s := &Server{
		publisher:   publisher,
		maxBodySize: DefaultMaxBodySize,
		now:         time.Now,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Handler returns the HTTP handler serving the capture routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/events", s.handleEvents)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// acceptedResponse is the body returned for accepted uploads.
type acceptedResponse struct {
	Accepted int      `json:"accepted"`
	IDs      []string `json:"ids"`
}

// errorResponse is the body returned for rejected uploads.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)
	defer r.Body.Close()

	data, err := s.readBody(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || errors.Is(err, errBodyTooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload too large"})
			return
		}
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	batch, err := DecodeBatch(data)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	// Validate the whole batch before publishing any of it.
	now := s.now()
	events := make([]*model.Event, 0, len(batch))
	for i, we := range batch {
		ev, err := we.ToEvent(now)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("event %d: %v", i, err)})
			return
		}
		events = append(events, ev)
	}

	ids := make([]string, 0, len(events))
	for _, ev := range events {
		n := s.publisher.Publish(r.Context(), ev.Topic, ev)
		s.logger.Debug("captured event published",
			"event_id", ev.ID,
			"topic", string(ev.Topic),
			"url", ev.URL,
			"handlers", n,
		)
		ids = append(ids, ev.ID)
	}

	s.writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: len(ids), IDs: ids})
}

// errBodyTooLarge is returned when a decompressed upload exceeds the limit.
var errBodyTooLarge = errors.New("decompressed payload too large")

// readBody reads the upload, decompressing gzip content. The size limit
// applies to both the wire size and the decompressed size.
func (s *Server) readBody(r *http.Request) ([]byte, error) {
	var reader io.Reader = r.Body

	if strings.EqualFold(r.Header.Get("Content-Encoding"), "gzip") {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip payload: %w", err)
		}
		defer zr.Close()
		reader = zr
	}

	data, err := io.ReadAll(io.LimitReader(reader, s.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxBodySize {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

// ListenAndServe serves the capture routes on addr until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves the capture routes on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("capture server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down capture server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("capture server failed: %w", err)
	}
}

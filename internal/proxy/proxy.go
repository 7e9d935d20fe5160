package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/socialmark/internal/model"
)

// DefaultMaxBodySize is the default upper bound of a buffered upload.
const DefaultMaxBodySize int64 = 4 * 1024 * 1024

// Publisher delivers events to subscribed handlers. *observer.Hub
// implements it.
type Publisher interface {
	Publish(ctx context.Context, topic model.Topic, ev *model.Event) int
}

// Proxy is an observing forward proxy. It implements http.Handler.
type Proxy struct {
	publisher   Publisher
	dialer      ContextDialer
	transport   http.RoundTripper
	maxBodySize int64
	now         func() time.Time
	logger      *slog.Logger
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithLogger sets a custom logger for the proxy.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Proxy) {
		p.logger = logger
	}
}

// WithDialer routes upstream connections, including CONNECT tunnels,
// through dialer.
func WithDialer(dialer ContextDialer) Option {
	return func(p *Proxy) {
		p.dialer = dialer
	}
}

// WithMaxBodySize sets the maximum upload size buffered per request.
// Larger uploads are rejected with 413.
func WithMaxBodySize(size int64) Option {
	return func(p *Proxy) {
		if size > 0 {
			p.maxBodySize = size
		}
	}
}

// New creates a Proxy publishing to publisher.
func New(publisher Publisher, opts ...Option) *Proxy {
	p := &Proxy{
		publisher:   publisher,
		dialer:      directDialer,
		maxBodySize: DefaultMaxBodySize,
		now:         time.Now,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.transport = &http.Transport{
		Proxy:                 nil,
		DialContext:           p.dialer.DialContext,
		ForceAttemptHTTP2:     false,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	return p
}

// ServeHTTP implements http.Handler.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		p.tunnel(w, r)
		return
	}

	if !r.URL.IsAbs() || r.URL.Scheme != "http" {
		http.Error(w, "socialmark proxy: absolute http URL required", http.StatusBadRequest)
		return
	}

	payload, err := p.readBody(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "socialmark proxy: request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "socialmark proxy: failed to read request body", http.StatusBadRequest)
		return
	}

	ev := p.newEvent(r, payload)
	p.publisher.Publish(r.Context(), model.TopicModifyRequest, ev)

	out, err := http.NewRequestWithContext(r.Context(), r.Method, r.URL.String(), bytes.NewReader(payload))
	if err != nil {
		http.Error(w, "socialmark proxy: invalid request", http.StatusBadRequest)
		return
	}
	out.Header = r.Header.Clone()
	removeHopHeaders(out.Header)
	out.ContentLength = int64(len(payload))
	if len(payload) == 0 {
		out.Body = http.NoBody
	}

	resp, err := p.transport.RoundTrip(out)
	if err != nil {
		p.logger.Warn("upstream request failed", "url", ev.URL, "error", err)
		http.Error(w, "socialmark proxy: upstream request failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	responseEv := *ev
	responseEv.Topic = model.TopicExamineResponse
	p.publisher.Publish(r.Context(), model.TopicExamineResponse, &responseEv)

	header := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			header.Add(k, v)
		}
	}
	removeHopHeaders(header)
	w.WriteHeader(resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.Debug("failed to copy response body", "url", ev.URL, "error", err)
	}
}

// readBody buffers the upload, bounded by maxBodySize.
func (p *Proxy) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer r.Body.Close()
	return io.ReadAll(http.MaxBytesReader(w, r.Body, p.maxBodySize))
}

// newEvent builds the request-phase event for r.
func (p *Proxy) newEvent(r *http.Request, payload []byte) *model.Event {
	ev := &model.Event{
		ID:         uuid.NewString(),
		Topic:      model.TopicModifyRequest,
		Method:     r.Method,
		URL:        r.URL.String(),
		Header:     r.Header.Clone(),
		Charset:    charsetOf(r.Header.Get("Content-Type")),
		ObservedAt: p.now(),
	}
	if len(payload) > 0 {
		ev.Body = bytes.NewReader(payload)
	}
	return ev
}

// charsetOf returns the charset parameter of a Content-Type value.
func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// hopHeaders are removed when forwarding in either direction.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(h http.Header) {
	for _, f := range h.Values("Connection") {
		for _, name := range strings.Split(f, ",") {
			if name = strings.TrimSpace(name); name != "" {
				h.Del(name)
			}
		}
	}
	for _, name := range hopHeaders {
		h.Del(name)
	}
}

// tunnel relays a CONNECT request opaquely.
func (p *Proxy) tunnel(w http.ResponseWriter, r *http.Request) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "socialmark proxy: tunneling not supported", http.StatusInternalServerError)
		return
	}

	upstream, err := p.dialer.DialContext(r.Context(), "tcp", r.Host)
	if err != nil {
		p.logger.Warn("tunnel dial failed", "host", r.Host, "error", err)
		http.Error(w, "socialmark proxy: upstream dial failed", http.StatusBadGateway)
		return
	}

	client, buf, err := hj.Hijack()
	if err != nil {
		_ = upstream.Close()
		p.logger.Warn("tunnel hijack failed", "host", r.Host, "error", err)
		return
	}

	if _, err := io.WriteString(client, "HTTP/1.1 200 Connection Established\r\n\r\n"); err != nil {
		_ = upstream.Close()
		_ = client.Close()
		return
	}

	// Bytes the client sent before the tunnel was established.
	if n := buf.Reader.Buffered(); n > 0 {
		pending, _ := buf.Reader.Peek(n)
		if _, err := upstream.Write(pending); err != nil {
			_ = upstream.Close()
			_ = client.Close()
			return
		}
	}

	p.logger.Debug("tunnel established", "host", r.Host)
	relay(client, upstream)
}

// relay copies in both directions until either side closes.
func relay(a, b net.Conn) {
	var wg sync.WaitGroup
	wg.Add(2)

	cp := func(dst, src net.Conn) {
		defer wg.Done()
		_, _ = io.Copy(dst, src)
		if cw, ok := dst.(interface{ CloseWrite() error }); ok {
			_ = cw.CloseWrite()
		} else {
			_ = dst.Close()
		}
	}

	go cp(a, b)
	go cp(b, a)
	wg.Wait()

	_ = a.Close()
	_ = b.Close()
}

// ListenAndServe serves the proxy on addr until ctx is cancelled.
func (p *Proxy) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           p,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		p.logger.Info("proxy listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down proxy: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("proxy failed: %w", err)
	}
}

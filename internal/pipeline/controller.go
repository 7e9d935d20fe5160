package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/nao1215/socialmark/internal/annotation"
	"github.com/nao1215/socialmark/internal/body"
	"github.com/nao1215/socialmark/internal/model"
	"github.com/nao1215/socialmark/internal/observer"
	"github.com/nao1215/socialmark/internal/signature"
)

// ErrPanic is returned by Process when a step panicked.
var ErrPanic = errors.New("invocation panicked")

// Stats counts invocation outcomes since the controller was created.
type Stats struct {
	// Observed is the number of response-phase events received.
	Observed int64

	// Unmatched is the number of events whose URL was not watched.
	Unmatched int64

	// Annotated is the number of invocations that completed the merge.
	Annotated int64

	// Failed is the number of invocations that ended with a failure.
	Failed int64
}

// Controller connects the observer hub to the share pipeline.
// Request-phase events are observed but never annotated; each
// response-phase event runs the pipeline on its own goroutine.
type Controller struct {
	hub        *observer.Hub
	pipeline   *Pipeline
	dispatcher *Dispatcher
	logger     *slog.Logger

	// dumpRequests logs request-phase bodies at debug level.
	dumpRequests bool

	// mu guards stopped. Observe holds the read lock while dispatching so
	// Stop never waits on the dispatcher while an invocation is being added.
	mu      sync.RWMutex
	stopped bool

	observed  atomic.Int64
	unmatched atomic.Int64
	annotated atomic.Int64
	failed    atomic.Int64
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets a custom logger for the controller.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent invocations.
func WithConcurrency(n int) ControllerOption {
	return func(c *Controller) {
		c.dispatcher = NewDispatcher(n)
	}
}

// WithDumpRequests logs the decoded body of request-phase events at
// debug level. Credentials in the body are redacted by the log handler.
func WithDumpRequests(dump bool) ControllerOption {
	return func(c *Controller) {
		c.dumpRequests = dump
	}
}

// NewController creates a Controller running the share pipeline for table
// and merger on events from hub. Call Start to subscribe.
func NewController(hub *observer.Hub, table *signature.Table, merger *annotation.Merger, opts ...ControllerOption) *Controller {
	c := &Controller{
		hub:    hub,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.dispatcher == nil {
		c.dispatcher = NewDispatcher(DefaultConcurrency)
	}
	c.pipeline = NewSharePipeline(table, merger, WithLogger(c.logger))

	return c
}

// Start subscribes the controller to both transaction phases.
func (c *Controller) Start() {
	c.mu.Lock()
	c.stopped = false
	c.mu.Unlock()

	c.hub.Subscribe(model.TopicModifyRequest, c)
	c.hub.Subscribe(model.TopicExamineResponse, c)
	c.logger.Debug("controller subscribed",
		"concurrency", c.dispatcher.Concurrency(),
		"dump_requests", c.dumpRequests,
	)
}

// Stop unsubscribes the controller and waits for in-flight invocations.
// Events delivered after Stop by a publish already in progress are dropped.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()

	c.hub.Unsubscribe(model.TopicModifyRequest, c)
	c.hub.Unsubscribe(model.TopicExamineResponse, c)
	c.Wait()
}

// Wait blocks until every dispatched invocation has finished.
func (c *Controller) Wait() {
	c.dispatcher.Wait()
}

// Stats returns a snapshot of the invocation counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Observed:  c.observed.Load(),
		Unmatched: c.unmatched.Load(),
		Annotated: c.annotated.Load(),
		Failed:    c.failed.Load(),
	}
}

// Observe implements observer.Handler. It never blocks on the pipeline
// itself, only on the dispatcher's concurrency limit.
func (c *Controller) Observe(ctx context.Context, topic model.Topic, ev *model.Event) {
	switch topic {
	case model.TopicModifyRequest:
		if c.dumpRequests {
			c.dump(ctx, topic, ev)
		}
	case model.TopicExamineResponse:
		c.mu.RLock()
		defer c.mu.RUnlock()
		if c.stopped {
			c.logger.Debug("controller stopped, dropping event", "event_id", ev.ID)
			return
		}
		c.observed.Add(1)
		c.dispatcher.Go(ctx, func(ctx context.Context) {
			_, _ = c.Process(ctx, ev) //nolint:errcheck // outcome is logged by Process
		})
	default:
		c.logger.Debug("ignoring unknown topic", "topic", string(topic))
	}
}

// Process runs the share pipeline for ev synchronously and logs the outcome
// by category. It returns the invocation state and the step error.
// A panic inside a step is recovered and returned as ErrPanic.
func (c *Controller) Process(ctx context.Context, ev *model.Event) (inv *Invocation, err error) {
	inv = NewInvocation(ev)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			c.logger.Error("invocation panicked",
				"event_id", ev.ID,
				"url", ev.URL,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			c.failed.Add(1)
		}
	}()

	err = c.pipeline.Execute(ctx, inv)
	c.report(inv, err)
	return inv, err
}

// report logs the outcome of an invocation and updates the counters.
func (c *Controller) report(inv *Invocation, err error) {
	ev := inv.Event

	switch {
	case err == nil:
		c.annotated.Add(1)
		c.logger.Info("share recorded",
			"event_id", ev.ID,
			"service", inv.Service.Name,
			"url", inv.SharedURL,
			"saved_to", []string(inv.SavedTo),
		)
		return
	case errors.Is(err, ErrNoMatch):
		c.unmatched.Add(1)
		c.logger.Debug("url not watched", "event_id", ev.ID, "url", ev.URL)
		return
	}

	c.failed.Add(1)

	switch {
	case errors.Is(err, body.ErrParse):
		c.logger.Warn("couldn't parse share request body",
			"event_id", ev.ID,
			"service", inv.Service.Name,
			"url", ev.URL,
			"error", err,
		)
	case errors.Is(err, signature.ErrExtraction):
		c.logger.Warn("couldn't extract shared url",
			"event_id", ev.ID,
			"service", inv.Service.Name,
			"url", ev.URL,
			"body_kind", inv.Body.Kind.String(),
			"error", err,
		)
	case errors.Is(err, annotation.ErrAnnotation):
		c.logger.Error("couldn't annotate shared url",
			"event_id", ev.ID,
			"service", inv.Service.Name,
			"url", inv.SharedURL,
			"error", err,
		)
	default:
		c.logger.Error("share invocation failed",
			"event_id", ev.ID,
			"url", ev.URL,
			"error", err,
		)
	}
}

// dump logs a request-phase event with its decoded body.
func (c *Controller) dump(ctx context.Context, topic model.Topic, ev *model.Event) {
	if !c.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	text := body.ReadText(ev.Body, ev.Charset)
	decoded, err := body.ParsePostData(text)

	attrs := []any{
		"topic", string(topic),
		"event_id", ev.ID,
		"method", ev.Method,
		"url", ev.URL,
		"size", len(text),
	}
	if err != nil {
		attrs = append(attrs, "parse_error", err)
	} else {
		attrs = append(attrs, bodyAttr(decoded))
	}

	c.logger.DebugContext(ctx, "request observed", attrs...)
}

// bodyAttr renders a decoded body as an attribute group keyed by field name,
// so the log handler can redact credential fields individually.
func bodyAttr(b model.DecodedBody) slog.Attr {
	var fields map[string]any

	switch b.Kind {
	case model.BodyForm:
		fields = make(map[string]any, len(b.Form))
		for k, v := range b.Form {
			fields[k] = v
		}
	case model.BodyJSON:
		obj, ok := b.JSON.(map[string]any)
		if !ok {
			return slog.Any("body", b.JSON)
		}
		fields = obj
	default:
		return slog.Group("body")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	return slog.Group("body", attrs...)
}

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/socialmark/internal/annotation"
	"github.com/nao1215/socialmark/internal/body"
	"github.com/nao1215/socialmark/internal/model"
	"github.com/nao1215/socialmark/internal/observer"
	"github.com/nao1215/socialmark/internal/signature"
)

// spyStore counts every store access.
type spyStore struct {
	*annotation.MemoryStore

	mu    sync.Mutex
	calls int
}

func newSpyStore() *spyStore {
	return &spyStore{MemoryStore: annotation.NewMemoryStore()}
}

func (s *spyStore) touch() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *spyStore) accesses() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *spyStore) Get(ctx context.Context, u string) (string, bool, error) {
	s.touch()
	return s.MemoryStore.Get(ctx, u)
}

func (s *spyStore) Set(ctx context.Context, u, value string) error {
	s.touch()
	return s.MemoryStore.Set(ctx, u, value)
}

func (s *spyStore) EnsureHistoryEntry(ctx context.Context, u string, visit time.Time) error {
	s.touch()
	return s.MemoryStore.EnsureHistoryEntry(ctx, u, visit)
}

// newTestController builds a started controller over a spy store.
func newTestController(t *testing.T, opts ...ControllerOption) (*Controller, *observer.Hub, *spyStore) {
	t.Helper()

	hub := observer.NewHub()
	store := newSpyStore()
	merger := annotation.NewMerger(store, annotation.WithSerializedWrites())
	c := NewController(hub, signature.Default(), merger, opts...)
	c.Start()
	t.Cleanup(c.Stop)

	return c, hub, store
}

// stored returns the saved-to list stored for u.
func stored(t *testing.T, store annotation.Store, u string) model.SavedTo {
	t.Helper()

	value, ok, err := store.Get(context.Background(), u)
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	if !ok {
		return nil
	}
	savedTo, err := annotation.DecodeSavedTo(value)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	return savedTo
}

// TestControllerEndToEnd tests complete share flows through the hub.
func TestControllerEndToEnd(t *testing.T) {
	t.Parallel()

	t.Run("twitter intent form body", func(t *testing.T) {
		t.Parallel()

		c, hub, store := newTestController(t)
		ev := &model.Event{
			ID:     "tw-1",
			Method: "POST",
			URL:    "https://twitter.com/intent/tweet?original_referer=x",
			Body:   bytes.NewReader([]byte("url=https%3A%2F%2Fexample.com%2Fpage&text=hello+world")),
		}

		hub.Publish(context.Background(), model.TopicExamineResponse, ev)
		c.Wait()

		if got := stored(t, store.MemoryStore, "https://example.com/page"); !reflect.DeepEqual(got, model.SavedTo{"twitter"}) {
			t.Errorf("expected [twitter], got %v", got)
		}
		if s := c.Stats(); s.Observed != 1 || s.Annotated != 1 || s.Failed != 0 {
			t.Errorf("unexpected stats %+v", s)
		}
	})

	t.Run("facebook share dialog", func(t *testing.T) {
		t.Parallel()

		c, hub, store := newTestController(t)
		props := url.QueryEscape(`{"object":"https://example.com/fb"}`)
		ev := &model.Event{
			URL:  "https://www.facebook.com/v2.3/dialog/share/submit",
			Body: strings.NewReader("Content-Type: application/x-www-form-urlencoded\r\nContent-Length: 10\r\n\r\nshare_action_properties=" + props),
		}

		hub.Publish(context.Background(), model.TopicExamineResponse, ev)
		c.Wait()

		if got := stored(t, store.MemoryStore, "https://example.com/fb"); !reflect.DeepEqual(got, model.SavedTo{"facebook"}) {
			t.Errorf("expected [facebook], got %v", got)
		}
	})

	t.Run("pocket json body then twitter keeps order", func(t *testing.T) {
		t.Parallel()

		c, _, store := newTestController(t)
		ctx := context.Background()

		pocket := &model.Event{
			URL:  "https://api.getpocket.com/v3/firefox/save",
			Body: strings.NewReader("Content-Type: application/json\r\n\r\n{\"url\":\"https://example.com/p\"}"),
		}
		if _, err := c.Process(ctx, pocket); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		twitter := &model.Event{
			URL:  "https://twitter.com/intent/tweet",
			Body: strings.NewReader("url=https%3A%2F%2Fexample.com%2Fp"),
		}
		inv, err := c.Process(ctx, twitter)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := model.SavedTo{"pocket", "twitter"}
		if !reflect.DeepEqual(inv.SavedTo, want) {
			t.Errorf("expected %v, got %v", want, inv.SavedTo)
		}
		if got := stored(t, store.MemoryStore, "https://example.com/p"); !reflect.DeepEqual(got, want) {
			t.Errorf("expected stored %v, got %v", want, got)
		}
	})
}

// TestControllerFailures tests that failures end invocations without mutation.
func TestControllerFailures(t *testing.T) {
	t.Parallel()

	t.Run("unmatched url never touches the store", func(t *testing.T) {
		t.Parallel()

		c, hub, store := newTestController(t)
		ev := &model.Event{
			URL:  "https://example.com/form",
			Body: strings.NewReader("url=https%3A%2F%2Fexample.com"),
		}

		hub.Publish(context.Background(), model.TopicExamineResponse, ev)
		c.Wait()

		if store.accesses() != 0 {
			t.Errorf("expected no store access, got %d", store.accesses())
		}
		if s := c.Stats(); s.Unmatched != 1 || s.Failed != 0 {
			t.Errorf("unexpected stats %+v", s)
		}
	})

	t.Run("extraction failure performs no mutation", func(t *testing.T) {
		t.Parallel()

		c, _, store := newTestController(t)
		ev := &model.Event{
			URL:  "https://twitter.com/intent/tweet",
			Body: strings.NewReader("text=no+url+here"),
		}

		_, err := c.Process(context.Background(), ev)
		if !errors.Is(err, signature.ErrExtraction) {
			t.Errorf("expected ErrExtraction, got %v", err)
		}
		if store.accesses() != 0 {
			t.Errorf("expected no store access, got %d", store.accesses())
		}
		if c.Stats().Failed != 1 {
			t.Errorf("expected one failure, got %+v", c.Stats())
		}
	})

	t.Run("relative url is an extraction failure", func(t *testing.T) {
		t.Parallel()

		c, _, store := newTestController(t)
		ev := &model.Event{
			URL:  "https://twitter.com/intent/tweet",
			Body: strings.NewReader("url=%2Fonly%2Fa%2Fpath"),
		}

		if _, err := c.Process(context.Background(), ev); !errors.Is(err, signature.ErrExtraction) {
			t.Errorf("expected ErrExtraction, got %v", err)
		}
		if store.accesses() != 0 {
			t.Errorf("expected no store access, got %d", store.accesses())
		}
	})

	t.Run("invalid json is a parse failure", func(t *testing.T) {
		t.Parallel()

		c, _, store := newTestController(t)
		ev := &model.Event{
			URL:  "https://api.getpocket.com/v3/firefox/save",
			Body: strings.NewReader("Content-Type: application/json\r\n\r\n{broken"),
		}

		if _, err := c.Process(context.Background(), ev); !errors.Is(err, body.ErrParse) {
			t.Errorf("expected ErrParse, got %v", err)
		}
		if store.accesses() != 0 {
			t.Errorf("expected no store access, got %d", store.accesses())
		}
	})

	t.Run("request phase is never annotated", func(t *testing.T) {
		t.Parallel()

		c, hub, store := newTestController(t, WithDumpRequests(true))
		ev := &model.Event{
			URL:  "https://twitter.com/intent/tweet",
			Body: strings.NewReader("url=https%3A%2F%2Fexample.com"),
		}

		hub.Publish(context.Background(), model.TopicModifyRequest, ev)
		c.Wait()

		if store.accesses() != 0 {
			t.Errorf("expected no store access, got %d", store.accesses())
		}
		if c.Stats().Observed != 0 {
			t.Errorf("expected request phase not to count, got %+v", c.Stats())
		}
	})
}

// panicStep always panics.
type panicStep struct{}

func (panicStep) Do(context.Context, *Invocation) error { panic("boom") }
func (panicStep) Name() string                          { return "panic" }

// TestControllerRecoversPanics tests that a panicking step is contained.
func TestControllerRecoversPanics(t *testing.T) {
	t.Parallel()

	c, _, _ := newTestController(t)
	c.pipeline = New()
	c.pipeline.AddStep(panicStep{})

	_, err := c.Process(context.Background(), &model.Event{URL: "https://twitter.com/intent/tweet"})
	if !errors.Is(err, ErrPanic) {
		t.Errorf("expected ErrPanic, got %v", err)
	}
	if c.Stats().Failed != 1 {
		t.Errorf("expected one failure, got %+v", c.Stats())
	}
}

// TestControllerLifecycle tests subscription on Start and removal on Stop.
func TestControllerLifecycle(t *testing.T) {
	t.Parallel()

	hub := observer.NewHub()
	c := NewController(hub, signature.Default(), annotation.NewMerger(annotation.NewMemoryStore()), WithConcurrency(3))

	c.Start()
	if hub.Subscribers(model.TopicModifyRequest) != 1 || hub.Subscribers(model.TopicExamineResponse) != 1 {
		t.Error("expected controller to subscribe to both topics")
	}

	c.Stop()
	if hub.Subscribers(model.TopicModifyRequest) != 0 || hub.Subscribers(model.TopicExamineResponse) != 0 {
		t.Error("expected controller to unsubscribe from both topics")
	}
	if c.dispatcher.Concurrency() != 3 {
		t.Errorf("expected concurrency 3, got %d", c.dispatcher.Concurrency())
	}
}

// TestControllerDropsEventsAfterStop tests that an event delivered to a
// stopped controller is neither counted nor dispatched.
func TestControllerDropsEventsAfterStop(t *testing.T) {
	t.Parallel()

	hub := observer.NewHub()
	store := newSpyStore()
	c := NewController(hub, signature.Default(), annotation.NewMerger(store))
	c.Start()
	c.Stop()

	// A publisher that snapshotted its handlers before Stop still calls Observe.
	c.Observe(context.Background(), model.TopicExamineResponse, &model.Event{
		ID:   "late-1",
		URL:  "https://twitter.com/intent/tweet",
		Body: bytes.NewReader([]byte("url=https%3A%2F%2Fexample.com%2Flate")),
	})
	c.Wait()

	if s := c.Stats(); s.Observed != 0 || s.Annotated != 0 {
		t.Errorf("expected no invocation after stop, got %+v", s)
	}
	if n := store.accesses(); n != 0 {
		t.Errorf("expected no store access after stop, got %d", n)
	}

	c.Start()
	t.Cleanup(c.Stop)
	c.Observe(context.Background(), model.TopicExamineResponse, &model.Event{
		ID:   "late-2",
		URL:  "https://twitter.com/intent/tweet",
		Body: bytes.NewReader([]byte("url=https%3A%2F%2Fexample.com%2Flate")),
	})
	c.Wait()

	if s := c.Stats(); s.Observed != 1 || s.Annotated != 1 {
		t.Errorf("expected restarted controller to annotate, got %+v", s)
	}
}

// TestDumpRequest tests the request-phase debug dump.
func TestDumpRequest(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	hub := observer.NewHub()
	c := NewController(hub, signature.Default(), annotation.NewMerger(annotation.NewMemoryStore()),
		WithControllerLogger(logger),
		WithDumpRequests(true),
	)
	c.Start()
	defer c.Stop()

	reader := strings.NewReader("url=https%3A%2F%2Fexample.com&text=hi")
	hub.Publish(context.Background(), model.TopicModifyRequest, &model.Event{
		ID:   "req-1",
		URL:  "https://twitter.com/intent/tweet",
		Body: reader,
	})

	out := buf.String()
	if !strings.Contains(out, "request observed") || !strings.Contains(out, "body.url=https://example.com") {
		t.Errorf("expected dumped body, got %q", out)
	}

	// The dump rewinds the body so the response phase can read it again.
	if pos, _ := reader.Seek(0, 1); pos != 0 {
		t.Errorf("expected body to be rewound, got offset %d", pos)
	}
}

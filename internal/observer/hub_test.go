package observer

import (
	"context"
	"sync"
	"testing"

	"github.com/nao1215/socialmark/internal/model"
)

// recorder is a Handler that remembers the events it saw.
type recorder struct {
	mu     sync.Mutex
	topics []model.Topic
	urls   []string
}

func (r *recorder) Observe(_ context.Context, topic model.Topic, ev *model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	r.urls = append(r.urls, ev.URL)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.urls)
}

// panicker is a Handler that always panics.
type panicker struct{}

func (*panicker) Observe(context.Context, model.Topic, *model.Event) {
	panic("boom")
}

// TestHub tests subscription management and delivery.
func TestHub(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ev := &model.Event{URL: "https://twitter.com/intent/tweet"}

	t.Run("delivers only to the published topic", func(t *testing.T) {
		t.Parallel()

		hub := NewHub()
		req, resp := &recorder{}, &recorder{}
		hub.Subscribe(model.TopicModifyRequest, req)
		hub.Subscribe(model.TopicExamineResponse, resp)

		if n := hub.Publish(ctx, model.TopicExamineResponse, ev); n != 1 {
			t.Errorf("expected 1 handler notified, got %d", n)
		}
		if req.count() != 0 {
			t.Error("request handler must not see response events")
		}
		if resp.count() != 1 || resp.topics[0] != model.TopicExamineResponse {
			t.Errorf("unexpected deliveries: %v", resp.topics)
		}
	})

	t.Run("duplicate subscribe is ignored", func(t *testing.T) {
		t.Parallel()

		hub := NewHub()
		r := &recorder{}
		hub.Subscribe(model.TopicExamineResponse, r)
		hub.Subscribe(model.TopicExamineResponse, r)

		hub.Publish(ctx, model.TopicExamineResponse, ev)
		if r.count() != 1 {
			t.Errorf("expected one delivery, got %d", r.count())
		}
		if hub.Subscribers(model.TopicExamineResponse) != 1 {
			t.Errorf("expected one subscriber, got %d", hub.Subscribers(model.TopicExamineResponse))
		}
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		t.Parallel()

		hub := NewHub()
		r := &recorder{}
		hub.Subscribe(model.TopicExamineResponse, r)

		if !hub.Unsubscribe(model.TopicExamineResponse, r) {
			t.Error("expected handler to be removed")
		}
		if hub.Unsubscribe(model.TopicExamineResponse, r) {
			t.Error("expected second unsubscribe to report false")
		}

		if n := hub.Publish(ctx, model.TopicExamineResponse, ev); n != 0 {
			t.Errorf("expected no handlers, got %d", n)
		}
		if r.count() != 0 {
			t.Error("unsubscribed handler received an event")
		}
	})

	t.Run("panicking handler does not block others", func(t *testing.T) {
		t.Parallel()

		hub := NewHub()
		r := &recorder{}
		hub.Subscribe(model.TopicExamineResponse, &panicker{})
		hub.Subscribe(model.TopicExamineResponse, r)

		if n := hub.Publish(ctx, model.TopicExamineResponse, ev); n != 2 {
			t.Errorf("expected 2 handlers notified, got %d", n)
		}
		if r.count() != 1 {
			t.Error("expected delivery after panicking handler")
		}
	})
}

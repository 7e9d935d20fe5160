package capture

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/nao1215/socialmark/internal/model"
)

// ErrInvalidEvent is returned when a wire event cannot be turned into an event.
var ErrInvalidEvent = errors.New("invalid capture event")

// WireEvent is the JSON representation of one captured transaction.
type WireEvent struct {
	// ID identifies the event. A UUID is assigned when empty.
	ID string `json:"id,omitempty"`

	// Topic is the transaction phase. Empty means the response phase.
	Topic string `json:"topic,omitempty"`

	// Method is the HTTP method of the request.
	Method string `json:"method,omitempty"`

	// URL is the request URL. Required.
	URL string `json:"url"`

	// Charset is the body encoding hint. Empty means UTF-8.
	Charset string `json:"charset,omitempty"`

	// Headers are the request headers.
	Headers map[string][]string `json:"headers,omitempty"`

	// Body is the upload body as text.
	Body string `json:"body,omitempty"`

	// BodyBase64 is the upload body as standard base64. It is mutually
	// exclusive with Body.
	BodyBase64 string `json:"body_base64,omitempty"`

	// ObservedAt is when the client saw the transaction.
	ObservedAt time.Time `json:"observed_at"`
}

// ToEvent validates w and converts it to an event. The body becomes a
// seekable reader positioned at the start.
func (w WireEvent) ToEvent(now time.Time) (*model.Event, error) {
	if w.URL == "" {
		return nil, fmt.Errorf("%w: missing url", ErrInvalidEvent)
	}

	topic := model.Topic(w.Topic)
	if topic == "" {
		topic = model.TopicExamineResponse
	}
	if !topic.Valid() {
		return nil, fmt.Errorf("%w: unknown topic %q", ErrInvalidEvent, w.Topic)
	}

	if w.Body != "" && w.BodyBase64 != "" {
		return nil, fmt.Errorf("%w: body and body_base64 are mutually exclusive", ErrInvalidEvent)
	}

	raw := []byte(w.Body)
	if w.BodyBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(w.BodyBase64)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed body_base64: %w", ErrInvalidEvent, err)
		}
		raw = decoded
	}

	id := w.ID
	if id == "" {
		id = uuid.NewString()
	}

	observedAt := w.ObservedAt
	if observedAt.IsZero() {
		observedAt = now
	}

	ev := &model.Event{
		ID:         id,
		Topic:      topic,
		Method:     w.Method,
		URL:        w.URL,
		Charset:    w.Charset,
		ObservedAt: observedAt,
	}
	if len(w.Headers) > 0 {
		ev.Header = http.Header(w.Headers).Clone()
	}
	if len(raw) > 0 {
		ev.Body = bytes.NewReader(raw)
	}

	return ev, nil
}

// NewWireEvent converts ev to its wire form. A seekable body is read in
// full and rewound to the start; the body is always sent as base64 so
// that non-UTF-8 payloads survive.
func NewWireEvent(ev *model.Event) (WireEvent, error) {
	w := WireEvent{
		ID:         ev.ID,
		Topic:      string(ev.Topic),
		Method:     ev.Method,
		URL:        ev.URL,
		Charset:    ev.Charset,
		Headers:    ev.Header,
		ObservedAt: ev.ObservedAt,
	}

	if ev.Body == nil {
		return w, nil
	}

	seeker, ok := ev.Body.(io.Seeker)
	if !ok {
		// Reading a one-shot stream would take it away from the pipeline.
		return w, nil
	}

	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return w, fmt.Errorf("failed to rewind event body: %w", err)
	}
	raw, err := io.ReadAll(ev.Body)
	if _, seekErr := seeker.Seek(0, io.SeekStart); seekErr != nil && err == nil {
		err = seekErr
	}
	if err != nil {
		return w, fmt.Errorf("failed to read event body: %w", err)
	}

	if len(raw) > 0 {
		w.BodyBase64 = base64.StdEncoding.EncodeToString(raw)
	}
	return w, nil
}

// DecodeBatch parses either a single JSON object or a JSON array of objects.
func DecodeBatch(data []byte) ([]WireEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidEvent)
	}

	if trimmed[0] == '[' {
		var batch []WireEvent
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		}
		return batch, nil
	}

	var single WireEvent
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return []WireEvent{single}, nil
}

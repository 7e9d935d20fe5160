package annotation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"

	"github.com/nao1215/socialmark/internal/model"
)

// Merger appends service names to the saved-to list of URLs.
type Merger struct {
	// store persists the annotations.
	store Store

	// locks serializes writes per URL when non-nil.
	locks *KeyedMutex

	// now returns the timestamp of synthetic history visits.
	now func() time.Time

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets a custom logger for the merger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Merger) {
		m.logger = logger
	}
}

// WithClock sets the time source used for synthetic history visits.
func WithClock(now func() time.Time) Option {
	return func(m *Merger) {
		m.now = now
	}
}

// WithSerializedWrites makes RecordShare hold a per-URL lock across its
// fetch-modify-write sequence, so concurrent shares of one URL are never lost.
func WithSerializedWrites() Option {
	return func(m *Merger) {
		m.locks = NewKeyedMutex()
	}
}

// NewMerger creates a Merger writing to store.
// Without WithSerializedWrites, concurrent calls for the same URL race and
// the last write wins.
func NewMerger(store Store, opts ...Option) *Merger {
	m := &Merger{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Serialized reports whether writes are serialized per URL.
func (m *Merger) Serialized() bool {
	return m.locks != nil
}

// RecordShare adds service to the saved-to list of url and returns the list.
//
// A service that is already listed returns the list unchanged without any
// write. Otherwise a history entry for url is ensured, then the extended list
// replaces the stored value.
func (m *Merger) RecordShare(ctx context.Context, url, service string) (model.SavedTo, error) {
	if m.locks != nil {
		unlock := m.locks.Lock(url)
		defer unlock()
	}

	savedTo, err := m.Lookup(ctx, url)
	if err != nil {
		return nil, err
	}

	if savedTo.Contains(service) {
		m.logger.Debug("url already annotated",
			"url", url,
			"service", service,
		)
		return savedTo, nil
	}

	updated := savedTo.With(service)

	// The store refuses to annotate URLs it has never seen, and the write
	// is attempted even when the history update fails.
	if err := m.store.EnsureHistoryEntry(ctx, url, m.now()); err != nil {
		m.logger.Error("couldn't update history for annotation",
			"url", url,
			"error", err,
		)
	}

	encoded, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode saved-to list: %w", ErrAnnotation, err)
	}

	if err := m.store.Set(ctx, url, string(encoded)); err != nil {
		return nil, fmt.Errorf("%w: failed to write annotation for %s: %w", ErrAnnotation, url, err)
	}

	m.logger.Info("annotated url",
		"url", url,
		"saved_to", []string(updated),
	)

	return updated, nil
}

// Lookup returns the saved-to list of url. A missing annotation is an empty list.
func (m *Merger) Lookup(ctx context.Context, url string) (model.SavedTo, error) {
	value, ok, err := m.store.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read annotation for %s: %w", ErrAnnotation, url, err)
	}
	if !ok || value == "" {
		return model.SavedTo{}, nil
	}
	return DecodeSavedTo(value)
}

// DecodeSavedTo parses a stored annotation value.
func DecodeSavedTo(value string) (model.SavedTo, error) {
	var savedTo model.SavedTo
	if err := json.Unmarshal([]byte(value), &savedTo); err != nil {
		return nil, fmt.Errorf("%w: malformed saved-to list %q: %w", ErrAnnotation, value, err)
	}
	if savedTo == nil {
		savedTo = model.SavedTo{}
	}
	return savedTo, nil
}

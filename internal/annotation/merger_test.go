package annotation

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/socialmark/internal/model"
)

// countingStore wraps MemoryStore and counts calls.
type countingStore struct {
	*MemoryStore

	mu      sync.Mutex
	gets    int
	sets    int
	ensures int
	getErr  error
	setErr  error
	ensErr  error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: NewMemoryStore()}
}

func (s *countingStore) Get(ctx context.Context, url string) (string, bool, error) {
	s.mu.Lock()
	s.gets++
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return "", false, err
	}
	return s.MemoryStore.Get(ctx, url)
}

func (s *countingStore) Set(ctx context.Context, url, value string) error {
	s.mu.Lock()
	s.sets++
	err := s.setErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.Set(ctx, url, value)
}

func (s *countingStore) EnsureHistoryEntry(ctx context.Context, url string, visit time.Time) error {
	s.mu.Lock()
	s.ensures++
	err := s.ensErr
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.EnsureHistoryEntry(ctx, url, visit)
}

// TestRecordShare tests the fetch-decide-write sequence.
func TestRecordShare(t *testing.T) {
	t.Parallel()

	const url = "https://example.com"

	t.Run("first share creates history entry and annotation", func(t *testing.T) {
		t.Parallel()

		store := newCountingStore()
		visit := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		m := NewMerger(store, WithClock(func() time.Time { return visit }))

		got, err := m.RecordShare(context.Background(), url, "pocket")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(got, model.SavedTo{"pocket"}) {
			t.Errorf("expected [pocket], got %v", got)
		}

		value, ok, _ := store.MemoryStore.Get(context.Background(), url)
		if !ok || value != `["pocket"]` {
			t.Errorf("expected stored %q, got %q (ok=%v)", `["pocket"]`, value, ok)
		}

		visits := store.Visits(url)
		if len(visits) != 1 || !visits[0].Equal(visit) {
			t.Errorf("expected single synthetic visit at %v, got %v", visit, visits)
		}
	})

	t.Run("recording the same share twice is idempotent", func(t *testing.T) {
		t.Parallel()

		store := newCountingStore()
		m := NewMerger(store)
		ctx := context.Background()

		first, err := m.RecordShare(ctx, url, "pocket")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := m.RecordShare(ctx, url, "pocket")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !reflect.DeepEqual(first, second) || !reflect.DeepEqual(second, model.SavedTo{"pocket"}) {
			t.Errorf("expected [pocket] twice, got %v and %v", first, second)
		}
		if store.sets != 1 {
			t.Errorf("expected exactly one write, got %d", store.sets)
		}
		if store.ensures != 1 {
			t.Errorf("expected exactly one history update, got %d", store.ensures)
		}
	})

	t.Run("insertion order is preserved", func(t *testing.T) {
		t.Parallel()

		m := NewMerger(NewMemoryStore())
		ctx := context.Background()

		for _, s := range []string{"twitter", "pocket", "twitter", "facebook"} {
			if _, err := m.RecordShare(ctx, url, s); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		got, err := m.Lookup(ctx, url)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := model.SavedTo{"twitter", "pocket", "facebook"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("read error is an annotation failure without write", func(t *testing.T) {
		t.Parallel()

		store := newCountingStore()
		store.getErr = errors.New("disk on fire")
		m := NewMerger(store)

		_, err := m.RecordShare(context.Background(), url, "pocket")
		if !errors.Is(err, ErrAnnotation) {
			t.Errorf("expected ErrAnnotation, got %v", err)
		}
		if store.sets != 0 {
			t.Errorf("expected no write, got %d", store.sets)
		}
	})

	t.Run("write error is an annotation failure", func(t *testing.T) {
		t.Parallel()

		store := newCountingStore()
		store.setErr = errors.New("read-only database")
		m := NewMerger(store)

		_, err := m.RecordShare(context.Background(), url, "pocket")
		if !errors.Is(err, ErrAnnotation) {
			t.Errorf("expected ErrAnnotation, got %v", err)
		}
	})

	t.Run("history failure still attempts the write", func(t *testing.T) {
		t.Parallel()

		store := newCountingStore()
		store.ensErr = errors.New("history unavailable")
		m := NewMerger(store)

		_, err := m.RecordShare(context.Background(), url, "pocket")
		if store.sets != 1 {
			t.Errorf("expected write attempt, got %d", store.sets)
		}
		// MemoryStore refuses URLs without history, like the real store.
		if !errors.Is(err, ErrAnnotation) || !errors.Is(err, ErrNoHistoryEntry) {
			t.Errorf("expected wrapped ErrNoHistoryEntry, got %v", err)
		}
	})

	t.Run("malformed stored value is not overwritten", func(t *testing.T) {
		t.Parallel()

		store := newCountingStore()
		ctx := context.Background()
		_ = store.MemoryStore.EnsureHistoryEntry(ctx, url, time.Now())
		_ = store.MemoryStore.Set(ctx, url, "not json")
		m := NewMerger(store)

		_, err := m.RecordShare(ctx, url, "pocket")
		if !errors.Is(err, ErrAnnotation) {
			t.Errorf("expected ErrAnnotation, got %v", err)
		}
		if store.sets != 0 {
			t.Errorf("expected no write, got %d", store.sets)
		}
	})
}

// barrierStore holds the first reader until a second one arrives or a
// timeout passes, forcing concurrent invocations to interleave.
type barrierStore struct {
	*MemoryStore

	mu      sync.Mutex
	arrived int
	all     chan struct{}
	wait    time.Duration
}

func newBarrierStore(wait time.Duration) *barrierStore {
	return &barrierStore{
		MemoryStore: NewMemoryStore(),
		all:         make(chan struct{}),
		wait:        wait,
	}
}

func (s *barrierStore) Get(ctx context.Context, url string) (string, bool, error) {
	value, ok, err := s.MemoryStore.Get(ctx, url)

	s.mu.Lock()
	s.arrived++
	if s.arrived == 2 {
		close(s.all)
	}
	s.mu.Unlock()

	select {
	case <-s.all:
	case <-time.After(s.wait):
	}
	return value, ok, err
}

// TestRecordShareConcurrency tests the fetch-modify-write race and its fix.
func TestRecordShareConcurrency(t *testing.T) {
	t.Parallel()

	const url = "https://example.com/race"

	run := func(m *Merger) {
		var wg sync.WaitGroup
		for _, service := range []string{"pocket", "twitter"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = m.RecordShare(context.Background(), url, service)
			}()
		}
		wg.Wait()
	}

	t.Run("unserialized concurrent shares lose one update", func(t *testing.T) {
		t.Parallel()

		store := newBarrierStore(5 * time.Second)
		m := NewMerger(store)
		run(m)

		got, err := m.Lookup(context.Background(), url)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("expected last-write-wins to keep a single service, got %v", got)
		}
	})

	t.Run("serialized concurrent shares keep both updates", func(t *testing.T) {
		t.Parallel()

		store := newBarrierStore(50 * time.Millisecond)
		m := NewMerger(store, WithSerializedWrites())
		run(m)

		got, err := m.Lookup(context.Background(), url)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || !got.Contains("pocket") || !got.Contains("twitter") {
			t.Errorf("expected both services, got %v", got)
		}
		if !m.Serialized() {
			t.Error("expected Serialized to report true")
		}
	})
}

// TestDecodeSavedTo tests parsing of stored values.
func TestDecodeSavedTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   string
		want    model.SavedTo
		wantErr bool
	}{
		{name: "list", value: `["pocket","twitter"]`, want: model.SavedTo{"pocket", "twitter"}},
		{name: "empty list", value: `[]`, want: model.SavedTo{}},
		{name: "null", value: `null`, want: model.SavedTo{}},
		{name: "object", value: `{"a":1}`, wantErr: true},
		{name: "garbage", value: `pocket`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := DecodeSavedTo(tt.value)
			if tt.wantErr {
				if !errors.Is(err, ErrAnnotation) {
					t.Errorf("expected ErrAnnotation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

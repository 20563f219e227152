package store

import (
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEvent(detectedAt time.Time) *Event {
	return &Event{
		ID:             uuid.New().String(),
		Source:         "mock",
		DetectedAt:     detectedAt,
		FrameIndex:     42,
		ChangedPercent: 1.25,
		Regions: []image.Rectangle{
			image.Rect(10, 20, 110, 220),
			image.Rect(300, 0, 340, 40),
		},
	}
}

func TestEventRepository_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Events()

	want := newTestEvent(time.Now().UTC().Truncate(time.Second))
	if err := repo.Create(want); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(want.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}

	if got.Source != want.Source {
		t.Errorf("Source = %q, want %q", got.Source, want.Source)
	}
	if got.FrameIndex != want.FrameIndex {
		t.Errorf("FrameIndex = %d, want %d", got.FrameIndex, want.FrameIndex)
	}
	if got.ChangedPercent != want.ChangedPercent {
		t.Errorf("ChangedPercent = %f, want %f", got.ChangedPercent, want.ChangedPercent)
	}
	if len(got.Regions) != len(want.Regions) {
		t.Fatalf("Regions = %d, want %d", len(got.Regions), len(want.Regions))
	}
	for i := range want.Regions {
		if got.Regions[i] != want.Regions[i] {
			t.Errorf("Regions[%d] = %v, want %v", i, got.Regions[i], want.Regions[i])
		}
	}
}

func TestEventRepository_GetByID_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Events().GetByID("no-such-id")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestEventRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Events()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		e := newTestEvent(base.Add(time.Duration(i) * time.Minute))
		if err := repo.Create(e); err != nil {
			t.Fatalf("Create() %d error = %v", i, err)
		}
	}

	events, err := repo.List(3)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("List(3) returned %d events", len(events))
	}

	// Newest first.
	for i := 1; i < len(events); i++ {
		if events[i].DetectedAt.After(events[i-1].DetectedAt) {
			t.Errorf("events not sorted newest first: %v after %v",
				events[i].DetectedAt, events[i-1].DetectedAt)
		}
	}

	all, err := repo.List(0)
	if err != nil {
		t.Fatalf("List(0) error = %v", err)
	}
	if len(all) != 5 {
		t.Errorf("List(0) returned %d events, want 5", len(all))
	}
}

func TestEventRepository_CountSince(t *testing.T) {
	s := newTestStore(t)
	repo := s.Events()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 4; i++ {
		e := newTestEvent(base.Add(time.Duration(i) * time.Hour))
		if err := repo.Create(e); err != nil {
			t.Fatalf("Create() %d error = %v", i, err)
		}
	}

	n, err := repo.CountSince(base.Add(90 * time.Minute))
	if err != nil {
		t.Fatalf("CountSince() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountSince() = %d, want 2", n)
	}
}

func TestEventRepository_DeleteOlderThan(t *testing.T) {
	s := newTestStore(t)
	repo := s.Events()

	base := time.Now().UTC().Truncate(time.Second)
	old := newTestEvent(base.Add(-48 * time.Hour))
	recent := newTestEvent(base)

	if err := repo.Create(old); err != nil {
		t.Fatalf("Create(old) error = %v", err)
	}
	if err := repo.Create(recent); err != nil {
		t.Fatalf("Create(recent) error = %v", err)
	}

	deleted, err := repo.DeleteOlderThan(base.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("DeleteOlderThan() = %d, want 1", deleted)
	}

	if _, err := repo.GetByID(old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old event still present, GetByID error = %v", err)
	}
	if _, err := repo.GetByID(recent.ID); err != nil {
		t.Errorf("recent event lost: %v", err)
	}

	// Regions of the deleted event must be gone too (cascade).
	var n int
	if err := s.DB().QueryRow(
		"SELECT COUNT(*) FROM event_regions WHERE event_id = ?", old.ID,
	).Scan(&n); err != nil {
		t.Fatalf("count regions: %v", err)
	}
	if n != 0 {
		t.Errorf("cascade delete left %d regions behind", n)
	}
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/brightfish/bluecanary/pkg/storage"
)

const (
	testUUID  = "5b8c58e9-b2ac-4ae4-9381-dcd4524dd7e7"
	otherUUID = "0d6e1c4e-7f1a-4c33-8b5d-2f0c9a7e1b42"
)

var backup = storage.Series{UUID: testUUID, Counter: "nightly-backup"}

func event(series storage.Series, status int, at time.Time) storage.Event {
	return storage.Event{
		APIVersion: "v1",
		UUID:       series.UUID,
		Counter:    series.Counter,
		StatusCode: status,
		ReceivedAt: at,
	}
}

func TestMemoryStorage_WriteAndList(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		if err := store.Write(ctx, event(backup, i, now.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	results, err := store.List(ctx, storage.Query{Series: backup})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(results))
	}

	// newest first
	for i, want := range []int{2, 1, 0} {
		if results[i].StatusCode != want {
			t.Errorf("Event %d: expected status %d, got %d", i, want, results[i].StatusCode)
		}
	}
}

func TestMemoryStorage_ListFilters(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	other := storage.Series{UUID: otherUUID, Counter: "nightly-backup"}
	sameApp := storage.Series{UUID: testUUID, Counter: "weekly-report"}

	writes := []storage.Event{
		event(backup, 0, now.Add(-2*time.Hour)),
		event(backup, 4, now.Add(-30*time.Minute)),
		event(backup, 1, now),
		event(other, 7, now),
		event(sameApp, 7, now),
	}
	for _, e := range writes {
		if err := store.Write(ctx, e); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	tests := []struct {
		name  string
		query storage.Query
		want  int
	}{
		{"series only", storage.Query{Series: backup}, 3},
		{"other uuid", storage.Query{Series: other}, 1},
		{"time range", storage.Query{Series: backup, Start: now.Add(-time.Hour)}, 2},
		{"end bound", storage.Query{Series: backup, End: now.Add(-time.Hour)}, 1},
		{"min status", storage.Query{Series: backup, MinStatus: 3}, 1},
		{"limit", storage.Query{Series: backup, Limit: 2}, 2},
		{"unknown series", storage.Query{Series: storage.Series{UUID: otherUUID, Counter: "missing"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.List(ctx, tt.query)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(results) != tt.want {
				t.Errorf("Expected %d events, got %d", tt.want, len(results))
			}
		})
	}
}

func TestMemoryStorage_Delete(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()
	now := time.Now()

	store.Write(ctx, event(backup, 0, now.Add(-48*time.Hour)))
	store.Write(ctx, event(backup, 1, now))

	if err := store.Delete(ctx, now.Add(-24*time.Hour)); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	results, err := store.List(ctx, storage.Query{Series: backup})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(results) != 1 || results[0].StatusCode != 1 {
		t.Errorf("Expected only the recent event to remain, got %+v", results)
	}
}

func TestMemoryStorage_Stats(t *testing.T) {
	store := New()
	defer store.Close()

	ctx := context.Background()

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEvents != 0 {
		t.Errorf("Expected 0 events, got %d", stats.TotalEvents)
	}

	now := time.Now()
	store.Write(ctx, event(backup, 0, now.Add(-time.Minute)))
	store.Write(ctx, event(backup, 0, now))
	store.Write(ctx, event(storage.Series{UUID: otherUUID, Counter: "nightly-backup"}, 0, now))

	stats, err = store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEvents != 3 {
		t.Errorf("Expected 3 events, got %d", stats.TotalEvents)
	}
	if stats.TotalSeries != 2 {
		t.Errorf("Expected 2 series, got %d", stats.TotalSeries)
	}
	if !stats.OldestEvent.Equal(now.Add(-time.Minute)) {
		t.Errorf("Unexpected oldest event %v", stats.OldestEvent)
	}
	if !stats.NewestEvent.Equal(now) {
		t.Errorf("Unexpected newest event %v", stats.NewestEvent)
	}
}

func TestMemoryStorage_CancelledContext(t *testing.T) {
	store := New()
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Write(ctx, event(backup, 0, time.Now())); err == nil {
		t.Error("Expected Write to fail with cancelled context")
	}
	if _, err := store.List(ctx, storage.Query{Series: backup}); err == nil {
		t.Error("Expected List to fail with cancelled context")
	}
}

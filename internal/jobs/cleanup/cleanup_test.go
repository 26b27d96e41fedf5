package cleanup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	pgrepo "github.com/dneufang33/mira-sora-visions/internal/repo/postgres"
)

type audioRow struct {
	rec       pgrepo.StaleAudioRecord
	createdAt time.Time
	failed    bool
}

type fakeAudioStore struct {
	rows   []*audioRow
	calls  int
	cutoff time.Time
	err    error
}

func (f *fakeAudioStore) FailStale(_ context.Context, cutoff time.Time, limit int) ([]pgrepo.StaleAudioRecord, error) {
	f.calls++
	f.cutoff = cutoff
	if f.err != nil {
		return nil, f.err
	}
	var out []pgrepo.StaleAudioRecord
	for _, row := range f.rows {
		if len(out) == limit {
			break
		}
		if !row.failed && row.createdAt.Before(cutoff) {
			row.failed = true
			out = append(out, row.rec)
		}
	}
	return out, nil
}

type fakeStorage struct {
	deleted []string
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func TestRunFailsAudioOlderThanRetention(t *testing.T) {
	now := time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeAudioStore{rows: []*audioRow{
		{rec: pgrepo.StaleAudioRecord{ID: "old", ObjectKey: "audio/old.mp3"}, createdAt: now.Add(-time.Hour)},
		{rec: pgrepo.StaleAudioRecord{ID: "bare"}, createdAt: now.Add(-time.Hour)},
		{rec: pgrepo.StaleAudioRecord{ID: "fresh", ObjectKey: "audio/fresh.mp3"}, createdAt: now.Add(-time.Minute)},
	}}
	storage := &fakeStorage{}

	job := New(store, storage, 30*time.Minute, nil, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}
	if !store.rows[0].failed || !store.rows[1].failed || store.rows[2].failed {
		t.Fatalf("unexpected failed set")
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != "audio/old.mp3" {
		t.Fatalf("unexpected deletions: %v", storage.deleted)
	}
	if !store.cutoff.Equal(now.Add(-30 * time.Minute)) {
		t.Fatalf("unexpected cutoff: %s", store.cutoff)
	}
}

func TestRunDrainsInBatches(t *testing.T) {
	now := time.Now()
	store := &fakeAudioStore{}
	for i := 0; i < batchSize+5; i++ {
		store.rows = append(store.rows, &audioRow{
			rec:       pgrepo.StaleAudioRecord{ID: fmt.Sprintf("a%d", i)},
			createdAt: now.Add(-2 * time.Hour),
		})
	}

	job := New(store, nil, time.Hour, nil, nil)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("unexpected batch count: %d", store.calls)
	}
	for _, row := range store.rows {
		if !row.failed {
			t.Fatalf("row %s left in processing", row.rec.ID)
		}
	}
}

func TestRunReturnsStoreError(t *testing.T) {
	boom := errors.New("db down")
	job := New(&fakeAudioStore{err: boom}, nil, 0, nil, nil)
	if err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunWithoutStoreIsNoop(t *testing.T) {
	if err := New(nil, nil, 0, nil, nil).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

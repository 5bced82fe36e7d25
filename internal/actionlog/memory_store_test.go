package actionlog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func sampleRecord(id string, trigger Trigger, ok bool, outcome string, createdAt int64) *Record {
	return &Record{
		ID:         id,
		ActionType: "REBALANCE",
		Trigger:    trigger,
		OK:         ok,
		Outcome:    outcome,
		CreatedAt:  createdAt,
	}
}

func TestMemoryStoreAppendAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := sampleRecord("r1", TriggerEvent, true, OutcomeRebalanced, 1700000000)
	if err := store.Append(ctx, record); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Outcome != OutcomeRebalanced || got.Trigger != TriggerEvent {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Records are append-only; mutating the returned copy must not leak back.
	got.Outcome = "tampered"
	again, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again.Outcome != OutcomeRebalanced {
		t.Fatal("store returned a shared pointer")
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("got %v, want ErrRecordNotFound", err)
	}
}

func TestMemoryStoreRejectsDuplicateAndInvalid(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := sampleRecord("r1", TriggerEvent, true, OutcomeRebalanced, 1700000000)
	if err := store.Append(ctx, record); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Append(ctx, record); !errors.Is(err, ErrRecordConflict) {
		t.Fatalf("duplicate: got %v, want ErrRecordConflict", err)
	}
	if err := store.Append(ctx, nil); err == nil {
		t.Fatal("nil record must fail")
	}
	if err := store.Append(ctx, &Record{}); err == nil {
		t.Fatal("record without id must fail")
	}
}

func TestMemoryStoreListFiltersAndOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seed := []*Record{
		sampleRecord("r1", TriggerEvent, true, OutcomeRebalanced, 100),
		sampleRecord("r2", TriggerEvent, true, OutcomeNoAction, 200),
		sampleRecord("r3", TriggerOracle, false, OutcomeFailed, 300),
		sampleRecord("r4", TriggerManual, true, OutcomeRebalanced, 400),
	}
	for _, record := range seed {
		if err := store.Append(ctx, record); err != nil {
			t.Fatalf("append %s: %v", record.ID, err)
		}
	}

	records, err := store.List(ctx, BuildListOptions(nil))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records %d, want 4", len(records))
	}
	// Default order: newest first.
	if records[0].ID != "r4" || records[3].ID != "r1" {
		t.Fatalf("unexpected order: %s ... %s", records[0].ID, records[3].ID)
	}

	records, err = store.List(ctx, BuildListOptions([]ListOption{WithTriggers(TriggerEvent)}))
	if err != nil {
		t.Fatalf("list by trigger: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("trigger filter returned %d, want 2", len(records))
	}

	failed := false
	records, err = store.List(ctx, BuildListOptions([]ListOption{WithOutcome(failed)}))
	if err != nil {
		t.Fatalf("list by outcome: %v", err)
	}
	if len(records) != 1 || records[0].ID != "r3" {
		t.Fatalf("outcome filter: %+v", records)
	}

	records, err = store.List(ctx, BuildListOptions([]ListOption{
		WithCreatedSince(time.Unix(250, 0)),
		WithOrder(SortByCreatedAsc),
	}))
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(records) != 2 || records[0].ID != "r3" {
		t.Fatalf("since filter: %+v", records)
	}

	records, err = store.List(ctx, BuildListOptions([]ListOption{WithLimit(1)}))
	if err != nil {
		t.Fatalf("list limit: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("limit returned %d, want 1", len(records))
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	seed := []*Record{
		sampleRecord("r1", TriggerEvent, true, OutcomeRebalanced, 100),
		sampleRecord("r2", TriggerEvent, true, OutcomeNoAction, 200),
		sampleRecord("r3", TriggerOracle, false, OutcomeFailed, 300),
	}
	for _, record := range seed {
		if err := store.Append(ctx, record); err != nil {
			t.Fatalf("append %s: %v", record.ID, err)
		}
	}

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Succeeded != 1 || stats.NoAction != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.OldestAt != 100 || stats.NewestAt != 300 || stats.LastFailed != 300 {
		t.Fatalf("unexpected timestamps: %+v", stats)
	}

	empty := NewMemoryStore()
	stats, err = empty.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("empty stats: %v", err)
	}
	if stats.Total != 0 || stats.OldestAt != 0 || stats.NewestAt != 0 {
		t.Fatalf("empty store stats: %+v", stats)
	}
}

func TestMemoryStoreListServesAuditWindows(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		record := sampleRecord(fmt.Sprintf("r%03d", i), TriggerEvent, true, OutcomeNoAction, int64(1000+i))
		if err := store.Append(ctx, record); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	// An audit page larger than the old 100-row window returns everything.
	records, err := store.List(ctx, BuildListOptions([]ListOption{WithLimit(500)}))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 120 {
		t.Fatalf("records %d, want 120", len(records))
	}

	// Requests past the cap are clamped, not rejected.
	opts := BuildListOptions([]ListOption{WithLimit(MaxListLimit + 1)})
	if opts.Limit != MaxListLimit {
		t.Fatalf("limit %d, want %d", opts.Limit, MaxListLimit)
	}

	// Stats stay exact regardless of any listing window.
	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 120 || stats.NoAction != 120 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

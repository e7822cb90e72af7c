package engine

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/learnware/session-gateway/internal/models"
)

var errSyncDown = errors.New("answer log down")

func newTestAnswerStore(fp *fakePlatform) *AnswerStore {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAnswerStore(42, "learner-1", fp, logger)
}

func TestAnswerStore_SetAndGet(t *testing.T) {
	fp := &fakePlatform{}
	store := newTestAnswerStore(fp)

	store.Set(1, json.RawMessage(`"a"`), 5)
	store.WaitForSyncs()

	answer, ok := store.Get(1)
	if !ok {
		t.Fatal("answer not found")
	}
	if string(answer.Value) != `"a"` {
		t.Errorf("unexpected value %s", answer.Value)
	}
	if !store.Answered(1) || store.Answered(2) {
		t.Error("Answered marks wrong")
	}
	if store.Len() != 1 {
		t.Errorf("expected 1 answer, got %d", store.Len())
	}

	fp.mu.Lock()
	defer fp.mu.Unlock()
	if len(fp.syncCalls) != 1 {
		t.Fatalf("expected 1 sync call, got %d", len(fp.syncCalls))
	}
	if fp.syncCalls[0].SyncID == "" {
		t.Error("sync call missing sync ID")
	}
	if fp.syncCalls[0].ElapsedSeconds != 5 {
		t.Errorf("elapsed not forwarded: %d", fp.syncCalls[0].ElapsedSeconds)
	}
}

func TestAnswerStore_LastWriteWins(t *testing.T) {
	fp := &fakePlatform{}
	store := newTestAnswerStore(fp)

	store.Set(1, json.RawMessage(`"a"`), 0)
	store.Set(1, json.RawMessage(`"b"`), 0)
	store.WaitForSyncs()

	answer, _ := store.Get(1)
	if string(answer.Value) != `"b"` {
		t.Errorf("expected last write to win locally, got %s", answer.Value)
	}

	snapshot := store.Snapshot()
	if len(snapshot) != 1 || string(snapshot[0].Value) != `"b"` {
		t.Errorf("snapshot should hold the latest value: %+v", snapshot)
	}
}

func TestAnswerStore_AllSynced(t *testing.T) {
	fp := &fakePlatform{syncErr: errSyncDown}
	store := newTestAnswerStore(fp)

	store.Set(1, json.RawMessage(`"a"`), 0)
	store.WaitForSyncs()

	if store.AllSynced() {
		t.Error("failed sync should leave the store out of sync")
	}

	// The local write is untouched by the sync failure
	if !store.Answered(1) {
		t.Error("local answer lost on sync failure")
	}

	fp.mu.Lock()
	fp.syncErr = nil
	fp.mu.Unlock()

	store.Set(1, json.RawMessage(`"b"`), 0)
	store.WaitForSyncs()

	if !store.AllSynced() {
		t.Error("store should be synced after a successful write")
	}
}

func TestAnswerStore_SnapshotSortedAndImmutable(t *testing.T) {
	fp := &fakePlatform{}
	store := newTestAnswerStore(fp)

	store.Set(3, json.RawMessage(`"c"`), 0)
	store.Set(1, json.RawMessage(`"a"`), 0)
	store.Set(2, json.RawMessage(`"b"`), 0)
	store.WaitForSyncs()

	snapshot := store.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 answers, got %d", len(snapshot))
	}
	for i, want := range []uint{1, 2, 3} {
		if snapshot[i].QuestionID != want {
			t.Fatalf("snapshot not sorted: %+v", snapshot)
		}
	}

	// Mutating the snapshot must not leak into the store
	snapshot[0].Value[1] = 'z'
	answer, _ := store.Get(1)
	if string(answer.Value) != `"a"` {
		t.Errorf("snapshot mutation leaked into store: %s", answer.Value)
	}
}

func TestAnswerStore_Restore(t *testing.T) {
	fp := &fakePlatform{}
	store := newTestAnswerStore(fp)

	store.Restore([]models.Answer{
		{QuestionID: 1, Value: json.RawMessage(`"a"`)},
		{QuestionID: 3, Value: json.RawMessage(`"c"`)},
	})

	if store.Len() != 2 {
		t.Fatalf("expected 2 restored answers, got %d", store.Len())
	}
	if !store.AllSynced() {
		t.Error("restored answers should count as synced")
	}
	if answer, ok := store.Get(3); !ok || string(answer.Value) != `"c"` {
		t.Errorf("restored answer wrong: %+v", answer)
	}
}

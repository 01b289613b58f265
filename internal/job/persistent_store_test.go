package job

import (
	"errors"
	"os"
	"testing"

	"github.com/DelxAbde/panel-pal-translate/internal/db"
)

func newTestPersistentStore(t *testing.T) (*PersistentStore, *db.Store) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "badger-test-*")
	if err != nil {
		t.Fatalf("create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	dbStore, err := db.NewStore(tmpDir)
	if err != nil {
		t.Fatalf("create db store: %v", err)
	}
	t.Cleanup(func() { dbStore.Close() })

	return NewPersistentStore(dbStore), dbStore
}

func TestPersistentStore_AddAndGet(t *testing.T) {
	store, _ := newTestPersistentStore(t)
	j := newTestJob()

	if err := store.Add(j); err != nil {
		t.Fatalf("add job: %v", err)
	}

	got, err := store.Get(j.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if got.ID != j.ID {
		t.Errorf("expected %s, got %s", j.ID, got.ID)
	}
	if string(got.ImageData) != "png-bytes" {
		t.Errorf("expected image blob, got %q", got.ImageData)
	}

	cur, err := store.Current()
	if err != nil || cur.ID != j.ID {
		t.Errorf("expected current %s, got %v (%v)", j.ID, cur, err)
	}
}

func TestPersistentStore_GetNotFound(t *testing.T) {
	store, _ := newTestPersistentStore(t)

	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Fail("missing", ReasonUnknown, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPersistentStore_CompleteStoresResult(t *testing.T) {
	store, _ := newTestPersistentStore(t)
	j := newTestJob()
	store.Add(j)

	if _, err := store.ApplyEvent(Event{JobID: j.ID, Stage: StageTranslation, StageProgress: 30}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := store.Complete(j.ID, Result{OriginalText: "こんにちは", TranslatedText: "Hello", ResultData: []byte("result")}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := store.Get(j.ID)
	if got.Status != StatusCompleted || got.Progress != 100 {
		t.Errorf("expected completed at 100, got %s at %d", got.Status, got.Progress)
	}
	if got.OriginalText != "こんにちは" {
		t.Errorf("expected original text, got %q", got.OriginalText)
	}
	if string(got.ResultData) != "result" {
		t.Errorf("expected result blob, got %q", got.ResultData)
	}

	completed := store.ListCompleted()
	if len(completed) != 1 {
		t.Errorf("expected 1 completed job, got %d", len(completed))
	}
}

func TestPersistentStore_CancelRejectsLateCompletion(t *testing.T) {
	store, dbStore := newTestPersistentStore(t)
	j := newTestJob()
	store.Add(j)
	store.ApplyEvent(Event{JobID: j.ID, Stage: StageExtraction})

	if _, err := store.Cancel(j.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := store.Complete(j.ID, Result{TranslatedText: "late", ResultData: []byte("r")}); !errors.Is(err, ErrNotProcessing) {
		t.Errorf("expected ErrNotProcessing, got %v", err)
	}

	got, _ := store.Get(j.ID)
	if got.Status != StatusFailed || got.FailureReason != ReasonCancelledByUser {
		t.Errorf("expected cancelled failure, got %s/%s", got.Status, got.FailureReason)
	}
	if _, err := dbStore.Get(SystemNamespace, resultPrefix+j.ID); err == nil {
		t.Error("expected rejected result blob to be removed")
	}
	if _, err := store.Current(); !errors.Is(err, ErrNotFound) {
		t.Error("expected current pointer cleared")
	}
}

func TestPersistentStore_RecoverInterrupted(t *testing.T) {
	store, _ := newTestPersistentStore(t)
	pending := newTestJob()
	running := newTestJob()
	done := newTestJob()
	store.Add(pending)
	store.Add(running)
	store.Add(done)
	store.ApplyEvent(Event{JobID: running.ID, Stage: StageExtraction})
	store.ApplyEvent(Event{JobID: done.ID, Stage: StageExtraction})
	store.Complete(done.ID, Result{TranslatedText: "ok"})

	ids, err := store.RecoverInterrupted()
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("expected 2 recovered jobs, got %d", len(ids))
	}

	for _, id := range []string{pending.ID, running.ID} {
		got, _ := store.Get(id)
		if got.Status != StatusFailed || got.Error != InterruptedMessage {
			t.Errorf("expected %s failed as interrupted, got %s %q", id, got.Status, got.Error)
		}
	}

	p, r, c, f := store.Stats()
	if p != 0 || r != 0 || c != 1 || f != 2 {
		t.Errorf("unexpected stats: %d %d %d %d", p, r, c, f)
	}
}

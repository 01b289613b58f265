package job

import (
	"errors"
	"sync"
	"testing"
)

func testSettings() Settings {
	return Settings{
		SourceLanguage:   "ja",
		TargetLanguage:   "en",
		Font:             "Comic Sans MS, cursive",
		FontSize:         14,
		TranslationStyle: "bubble_replace",
	}
}

func newTestJob() *Job {
	return New(testSettings(), []byte("png-bytes"), "image/png")
}

func TestNewJob(t *testing.T) {
	j := newTestJob()

	if j.ID == "" {
		t.Error("expected job ID")
	}
	if j.Status != StatusPending {
		t.Errorf("expected pending, got %s", j.Status)
	}
	if j.Progress != 0 {
		t.Errorf("expected 0 progress, got %d", j.Progress)
	}
	if j.SourceLanguage != "ja" || j.TargetLanguage != "en" {
		t.Errorf("unexpected languages: %s -> %s", j.SourceLanguage, j.TargetLanguage)
	}
	if j.FontSize != 14 {
		t.Errorf("expected font size 14, got %d", j.FontSize)
	}
	if j.CreatedAt.IsZero() {
		t.Error("expected created_at")
	}
}

func TestOverallProgress(t *testing.T) {
	cases := []struct {
		stage Stage
		in    int
		want  int
	}{
		{StageExtraction, 0, 0},
		{StageExtraction, 100, 50},
		{StageExtraction, 150, 50},
		{StageTranslation, 10, 55},
		{StageTranslation, 30, 65},
		{StageTranslation, 100, 99},
		{StageTranslation, -5, 50},
	}
	for _, c := range cases {
		if got := OverallProgress(c.stage, c.in); got != c.want {
			t.Errorf("OverallProgress(%s, %d): expected %d, got %d", c.stage, c.in, c.want, got)
		}
	}
}

func TestStore_AddAndGet(t *testing.T) {
	store := NewStore()
	j := newTestJob()

	if err := store.Add(j); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := store.Get(j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != j.ID {
		t.Errorf("expected %s, got %s", j.ID, got.ID)
	}
	if string(got.ImageData) != "png-bytes" {
		t.Errorf("expected image data, got %q", got.ImageData)
	}

	if err := store.Add(j); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}

func TestStore_GetNotFound(t *testing.T) {
	store := NewStore()

	_, err := store.Get("nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_GetReturnsCopy(t *testing.T) {
	store := NewStore()
	j := newTestJob()
	store.Add(j)

	got, _ := store.Get(j.ID)
	got.Status = StatusCompleted

	again, _ := store.Get(j.ID)
	if again.Status != StatusPending {
		t.Errorf("expected stored job unchanged, got %s", again.Status)
	}
}

func TestStore_Current(t *testing.T) {
	store := NewStore()
	if _, err := store.Current(); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no current job, got %v", err)
	}

	j1 := newTestJob()
	j2 := newTestJob()
	store.Add(j1)
	store.Add(j2)

	cur, err := store.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur.ID != j2.ID {
		t.Errorf("expected %s, got %s", j2.ID, cur.ID)
	}
}

func TestStore_ApplyEventStartsAndIsMonotonic(t *testing.T) {
	store := NewStore()
	j := newTestJob()
	store.Add(j)

	got, err := store.ApplyEvent(Event{JobID: j.ID, Stage: StageExtraction, StageProgress: 0, Message: "Detecting text"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Status != StatusProcessing {
		t.Errorf("expected processing, got %s", got.Status)
	}

	store.ApplyEvent(Event{JobID: j.ID, Stage: StageTranslation, StageProgress: 30})
	got, _ = store.ApplyEvent(Event{JobID: j.ID, Stage: StageExtraction, StageProgress: 100, Message: "late"})

	if got.Progress != 65 {
		t.Errorf("expected progress to stay at 65, got %d", got.Progress)
	}
	if got.Stage != StageTranslation {
		t.Errorf("expected stage to stay translation, got %s", got.Stage)
	}
	if got.ProgressMessage == "late" {
		t.Error("expected stale stage message to be ignored")
	}
}

func TestStore_CompleteRequiresProcessing(t *testing.T) {
	store := NewStore()
	j := newTestJob()
	store.Add(j)

	if _, err := store.Complete(j.ID, Result{TranslatedText: "hi"}); !errors.Is(err, ErrNotProcessing) {
		t.Errorf("expected ErrNotProcessing for pending job, got %v", err)
	}

	store.ApplyEvent(Event{JobID: j.ID, Stage: StageExtraction})
	got, err := store.Complete(j.ID, Result{OriginalText: "こんにちは", TranslatedText: "Hello", ResultData: []byte("img")})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != StatusCompleted || got.Progress != 100 {
		t.Errorf("expected completed at 100, got %s at %d", got.Status, got.Progress)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at")
	}

	if _, err := store.Fail(j.ID, ReasonUnknown, "boom"); !errors.Is(err, ErrNotProcessing) {
		t.Errorf("expected terminal job to reject failure, got %v", err)
	}
	if _, err := store.ApplyEvent(Event{JobID: j.ID, Stage: StageTranslation}); !errors.Is(err, ErrNotProcessing) {
		t.Errorf("expected terminal job to reject progress, got %v", err)
	}
}

func TestStore_CancelWinsOverLateCompletion(t *testing.T) {
	store := NewStore()
	j := newTestJob()
	store.Add(j)
	store.ApplyEvent(Event{JobID: j.ID, Stage: StageTranslation, StageProgress: 30})

	cancelled, err := store.Cancel(j.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.FailureReason != ReasonCancelledByUser {
		t.Errorf("expected cancelled_by_user, got %s", cancelled.FailureReason)
	}

	if _, err := store.Complete(j.ID, Result{TranslatedText: "late"}); !errors.Is(err, ErrNotProcessing) {
		t.Errorf("expected late completion to be rejected, got %v", err)
	}

	got, _ := store.Get(j.ID)
	if got.Status != StatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.TranslatedText != "" {
		t.Errorf("expected no translated text, got %q", got.TranslatedText)
	}
	if _, err := store.Current(); !errors.Is(err, ErrNotFound) {
		t.Error("expected current pointer cleared")
	}
	if _, err := store.Cancel(j.ID); !errors.Is(err, ErrTerminal) {
		t.Errorf("expected ErrTerminal on second cancel, got %v", err)
	}
}

func TestStore_CancelPending(t *testing.T) {
	store := NewStore()
	j := newTestJob()
	store.Add(j)

	got, err := store.Cancel(j.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != StatusFailed || got.Error != CancelledMessage {
		t.Errorf("expected cancelled failure, got %s %q", got.Status, got.Error)
	}
}

func TestStore_CancelRaceWithCompletion(t *testing.T) {
	for i := 0; i < 50; i++ {
		store := NewStore()
		j := newTestJob()
		store.Add(j)
		store.ApplyEvent(Event{JobID: j.ID, Stage: StageExtraction})

		var wg sync.WaitGroup
		var cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, cancelErr = store.Cancel(j.ID)
		}()
		go func() {
			defer wg.Done()
			store.Complete(j.ID, Result{TranslatedText: "done"})
		}()
		wg.Wait()

		got, _ := store.Get(j.ID)
		if cancelErr == nil && got.Status != StatusFailed {
			t.Fatalf("cancel succeeded but job is %s", got.Status)
		}
		if cancelErr != nil && got.Status != StatusCompleted {
			t.Fatalf("cancel rejected but job is %s", got.Status)
		}
	}
}

func TestStore_ListAndCompleted(t *testing.T) {
	store := NewStore()
	j1 := newTestJob()
	j2 := newTestJob()
	j3 := newTestJob()
	store.Add(j1)
	store.Add(j2)
	store.Add(j3)

	store.ApplyEvent(Event{JobID: j1.ID, Stage: StageExtraction})
	store.Complete(j1.ID, Result{TranslatedText: "a"})
	store.ApplyEvent(Event{JobID: j3.ID, Stage: StageExtraction})
	store.Complete(j3.ID, Result{TranslatedText: "c"})

	jobs, total := store.List(10, 0, "")
	if total != 3 {
		t.Errorf("expected 3 total, got %d", total)
	}
	if jobs[0].ID != j3.ID {
		t.Errorf("expected newest first, got %s", jobs[0].ID)
	}

	_, total = store.List(10, 0, "completed")
	if total != 2 {
		t.Errorf("expected 2 completed, got %d", total)
	}

	page, total := store.List(1, 1, "")
	if total != 3 || len(page) != 1 || page[0].ID != j2.ID {
		t.Errorf("unexpected page: total=%d len=%d", total, len(page))
	}

	completed := store.ListCompleted()
	if len(completed) != 2 || completed[0].ID != j1.ID {
		t.Errorf("expected completed jobs in creation order, got %d", len(completed))
	}

	pending, processing, done, failed := store.Stats()
	if pending != 1 || processing != 0 || done != 2 || failed != 0 {
		t.Errorf("unexpected stats: %d %d %d %d", pending, processing, done, failed)
	}
}

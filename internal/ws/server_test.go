package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/DelxAbde/panel-pal-translate/internal/events"
	"github.com/DelxAbde/panel-pal-translate/internal/job"
)

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[string]*job.Job
}

func (f *fakeJobs) GetJob(id string) (*job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	if !ok {
		return nil, job.ErrNotFound
	}
	return j.Clone(), nil
}

func newTestServer(t *testing.T, jobs *fakeJobs, hub *events.Hub) string {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/ws/jobs/{id}", NewServer(jobs, hub, nil).HandleJob)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHandleJob_NotFound(t *testing.T) {
	url := newTestServer(t, &fakeJobs{jobs: map[string]*job.Job{}}, events.NewHub(0))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, url+"/ws/jobs/missing", nil)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 response, got %v", resp)
	}
}

func TestHandleJob_TerminalJobSendsSnapshotAndCloses(t *testing.T) {
	j := job.New(job.Settings{SourceLanguage: "ja", TargetLanguage: "en"}, nil, "image/png")
	j.Status = job.StatusCompleted
	j.Progress = 100
	url := newTestServer(t, &fakeJobs{jobs: map[string]*job.Job{j.ID: j}}, events.NewHub(0))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url+"/ws/jobs/"+j.ID, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var ev job.Event
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if ev.Type != job.EventCompleted || ev.Progress != 100 {
		t.Errorf("expected completed snapshot, got %s at %d", ev.Type, ev.Progress)
	}

	_, _, err = conn.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
		t.Errorf("expected normal closure, got %v", err)
	}
}

func TestHandleJob_StreamsUntilTerminal(t *testing.T) {
	j := job.New(job.Settings{SourceLanguage: "ja", TargetLanguage: "en"}, nil, "image/png")
	j.Status = job.StatusProcessing
	j.Progress = 50
	hub := events.NewHub(0)
	url := newTestServer(t, &fakeJobs{jobs: map[string]*job.Job{j.ID: j}}, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url+"/ws/jobs/"+j.ID, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	var snapshot job.Event
	if err := wsjson.Read(ctx, conn, &snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Progress != 50 {
		t.Errorf("expected snapshot at 50, got %d", snapshot.Progress)
	}

	// The server subscribed before sending the snapshot.
	hub.Publish(job.Event{Type: job.EventProgress, JobID: j.ID, Progress: 40})
	hub.Publish(job.Event{Type: job.EventProgress, JobID: "other", Progress: 70})
	hub.Publish(job.Event{Type: job.EventProgress, JobID: j.ID, Progress: 65, Message: "Translating"})
	hub.Publish(job.Event{Type: job.EventCompleted, JobID: j.ID, Status: job.StatusCompleted, Progress: 100})

	var got []job.Event
	for {
		var ev job.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.Fatalf("expected normal closure, got %v", err)
			}
			break
		}
		got = append(got, ev)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 events after snapshot, got %d: %+v", len(got), got)
	}
	if got[0].Progress != 65 || got[0].Message != "Translating" {
		t.Errorf("unexpected progress event: %+v", got[0])
	}
	if got[1].Type != job.EventCompleted {
		t.Errorf("expected completed event, got %s", got[1].Type)
	}
	if got[0].Seq == 0 || got[1].Seq <= got[0].Seq {
		t.Errorf("expected increasing sequence numbers, got %d and %d", got[0].Seq, got[1].Seq)
	}
}

func readUntilClosed(t *testing.T, ctx context.Context, conn *websocket.Conn) []job.Event {
	t.Helper()
	var got []job.Event
	for {
		var ev job.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.Fatalf("expected normal closure, got %v", err)
			}
			return got
		}
		got = append(got, ev)
	}
}

func TestHandleJob_ResumesFromSequence(t *testing.T) {
	j := job.New(job.Settings{SourceLanguage: "ja", TargetLanguage: "en"}, nil, "image/png")
	j.Status = job.StatusProcessing
	j.Progress = 60
	hub := events.NewHub(0)
	url := newTestServer(t, &fakeJobs{jobs: map[string]*job.Job{j.ID: j}}, hub)

	seen := hub.Publish(job.Event{Type: job.EventProgress, JobID: j.ID, Progress: 10})
	hub.Publish(job.Event{Type: job.EventProgress, JobID: j.ID, Progress: 40})
	hub.Publish(job.Event{Type: job.EventProgress, JobID: "other", Progress: 90})
	hub.Publish(job.Event{Type: job.EventProgress, JobID: j.ID, Progress: 60})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url+"/ws/jobs/"+j.ID+"?since="+strconv.FormatInt(seen.Seq, 10), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	for _, want := range []int{40, 60} {
		var ev job.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read replay: %v", err)
		}
		if ev.Progress != want || ev.Seq <= seen.Seq {
			t.Errorf("expected replayed event at %d, got %d (seq %d)", want, ev.Progress, ev.Seq)
		}
	}

	hub.Publish(job.Event{Type: job.EventCompleted, JobID: j.ID, Status: job.StatusCompleted, Progress: 100})

	got := readUntilClosed(t, ctx, conn)
	if len(got) != 1 || got[0].Type != job.EventCompleted {
		t.Fatalf("expected only the completed event after replay, got %+v", got)
	}
}

func TestHandleJob_ResumeAfterHistoryLossSendsSnapshot(t *testing.T) {
	j := job.New(job.Settings{SourceLanguage: "ja", TargetLanguage: "en"}, nil, "image/png")
	j.Status = job.StatusFailed
	j.Error = job.CancelledMessage
	url := newTestServer(t, &fakeJobs{jobs: map[string]*job.Job{j.ID: j}}, events.NewHub(0))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url+"/ws/jobs/"+j.ID+"?since=42", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	got := readUntilClosed(t, ctx, conn)
	if len(got) != 1 || got[0].Type != job.EventFailed || got[0].Error != job.CancelledMessage {
		t.Fatalf("expected failed snapshot, got %+v", got)
	}
}

package watch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/DelxAbde/panel-pal-translate/internal/job"
)

// Mock progress server: the first connection drops mid-stream, later ones
// finish the job.
type mockServer struct {
	t      *testing.T
	server *httptest.Server
	conns  int32
	final  job.Event

	mu     sync.Mutex
	sinces []string
}

func newMockServer(t *testing.T, final job.Event) *mockServer {
	m := &mockServer{t: t, final: final}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/jobs/known", m.handle)
	mux.HandleFunc("/ws/jobs/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
	})
	m.server = httptest.NewServer(mux)
	t.Cleanup(m.server.Close)
	return m
}

func (m *mockServer) url(path string) string {
	return "ws" + strings.TrimPrefix(m.server.URL, "http") + path
}

func (m *mockServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		m.t.Logf("accept error: %v", err)
		return
	}
	defer conn.CloseNow()

	n := atomic.AddInt32(&m.conns, 1)
	ctx := r.Context()

	m.mu.Lock()
	m.sinces = append(m.sinces, r.URL.Query().Get("since"))
	m.mu.Unlock()

	wsjson.Write(ctx, conn, job.Event{Seq: 3, Type: job.EventProgress, JobID: "known", Stage: job.StageExtraction, Progress: 25, Message: "Extracting text from image"})
	if n == 1 {
		conn.Close(websocket.StatusGoingAway, "restarting")
		return
	}
	wsjson.Write(ctx, conn, job.Event{Type: job.EventProgress, JobID: "known", Stage: job.StageTranslation, Progress: 65, Message: "Translating"})
	wsjson.Write(ctx, conn, m.final)
	conn.Close(websocket.StatusNormalClosure, "job finished")
}

func TestRun_ReconnectsUntilCompleted(t *testing.T) {
	m := newMockServer(t, job.Event{Type: job.EventCompleted, JobID: "known", Status: job.StatusCompleted, Progress: 100})

	var out bytes.Buffer
	w := New(m.url("/ws/jobs/known"), &out, nil)
	w.reconnectDelay = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	final, err := w.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if ExitCode(final) != 0 {
		t.Errorf("expected exit code 0, got %d", ExitCode(final))
	}
	if atomic.LoadInt32(&m.conns) != 2 {
		t.Errorf("expected 2 connections, got %d", atomic.LoadInt32(&m.conns))
	}
	m.mu.Lock()
	sinces := strings.Join(m.sinces, ",")
	m.mu.Unlock()
	if sinces != ",3" {
		t.Errorf("expected reconnect to resume after seq 3, got since values %q", sinces)
	}
	if !strings.Contains(out.String(), "[100%] completed") {
		t.Errorf("expected completion line, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "translation: Translating") {
		t.Errorf("expected progress line, got:\n%s", out.String())
	}
}

func TestRun_FailedJobExitsWithOne(t *testing.T) {
	m := newMockServer(t, job.Event{Type: job.EventFailed, JobID: "known", Status: job.StatusFailed, Error: job.CancelledMessage})

	var out bytes.Buffer
	w := New(m.url("/ws/jobs/known"), &out, nil)
	w.reconnectDelay = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	final, err := w.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if ExitCode(final) != 1 {
		t.Errorf("expected exit code 1, got %d", ExitCode(final))
	}
	if !strings.Contains(out.String(), "failed: Cancelled by user") {
		t.Errorf("expected failure line, got:\n%s", out.String())
	}
}

func TestRun_UnknownJob(t *testing.T) {
	m := newMockServer(t, job.Event{})

	w := New(m.url("/ws/jobs/missing"), &bytes.Buffer{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := w.Run(ctx); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	w := New("ws://127.0.0.1:1/ws/jobs/x", &bytes.Buffer{}, nil)
	w.reconnectDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DelxAbde/panel-pal-translate/internal/account"
	"github.com/DelxAbde/panel-pal-translate/internal/config"
	"github.com/DelxAbde/panel-pal-translate/internal/events"
	"github.com/DelxAbde/panel-pal-translate/internal/job"
	"github.com/DelxAbde/panel-pal-translate/internal/service"
)

// instantRunner completes every job with a fixed translation, or fails it
// when the source language is "xx".
type instantRunner struct{}

func (instantRunner) Run(ctx context.Context, j *job.Job, evCh chan<- job.Event) (job.Result, error) {
	evCh <- job.Event{JobID: j.ID, Stage: job.StageExtraction, StageProgress: 100}
	if j.SourceLanguage == "xx" {
		return job.Result{}, context.DeadlineExceeded
	}
	evCh <- job.Event{JobID: j.ID, Stage: job.StageTranslation, StageProgress: 100}
	return job.Result{
		OriginalText:   "こんにちは",
		TranslatedText: "Hello",
		ResultData:     j.ImageData,
		ResultType:     j.ImageType,
	}, nil
}

// blockingRunner never finishes on its own.
type blockingRunner struct{}

func (blockingRunner) Run(ctx context.Context, j *job.Job, evCh chan<- job.Event) (job.Result, error) {
	evCh <- job.Event{JobID: j.ID, Stage: job.StageExtraction, StageProgress: 0}
	<-ctx.Done()
	return job.Result{}, ctx.Err()
}

type testEnv struct {
	router   http.Handler
	jobs     *service.Service
	accounts *account.Service
}

func newTestEnv(t *testing.T, runner service.Runner) *testEnv {
	t.Helper()
	cfg := &config.Config{
		NodeID:             "test-node",
		MaxUploadBytes:     1024,
		TranslateEndpoints: config.DefaultTranslateEndpoints,
		DetectEndpoints:    config.DefaultDetectEndpoints,
	}
	jobs := service.New(job.NewStore(), runner, events.NewHub(0), 2, nil)
	accounts, err := account.NewService(account.NewStore(), "secret", time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		jobs.Shutdown(ctx)
	})
	return &testEnv{router: NewRouter(cfg, jobs, accounts, nil), jobs: jobs, accounts: accounts}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, instantRunner{})

	w := env.do(httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp["status"] != "healthy" {
		t.Errorf("expected healthy, got %s", resp["status"])
	}
}

func TestInfo(t *testing.T) {
	env := newTestEnv(t, instantRunner{})

	w := env.do(httptest.NewRequest("GET", "/info", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp["node_id"] != "test-node" {
		t.Errorf("expected test-node, got %v", resp["node_id"])
	}
	if resp["persistent"] != false {
		t.Errorf("expected in-memory store, got %v", resp["persistent"])
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t, instantRunner{})

	w := env.do(httptest.NewRequest("GET", "/stats", nil))

	var resp struct {
		Jobs      map[string]int `json:"jobs"`
		Endpoints map[string]int `json:"endpoints"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Jobs["total"] != 0 {
		t.Errorf("expected 0 jobs, got %d", resp.Jobs["total"])
	}
	if resp.Endpoints["translate"] != 3 {
		t.Errorf("expected 3 translate endpoints, got %d", resp.Endpoints["translate"])
	}
}

func TestReferenceData(t *testing.T) {
	env := newTestEnv(t, instantRunner{})

	w := env.do(httptest.NewRequest("GET", "/api/languages", nil))
	var langs struct {
		Languages []Language `json:"languages"`
	}
	json.Unmarshal(w.Body.Bytes(), &langs)
	if len(langs.Languages) != 17 {
		t.Errorf("expected 17 languages, got %d", len(langs.Languages))
	}

	w = env.do(httptest.NewRequest("GET", "/api/fonts", nil))
	var fonts struct {
		Fonts []Font `json:"fonts"`
		Sizes []int  `json:"sizes"`
	}
	json.Unmarshal(w.Body.Bytes(), &fonts)
	if fonts.Fonts[0].Value != job.DefaultSettings().Font {
		t.Errorf("expected default font first, got %s", fonts.Fonts[0].Value)
	}

	w = env.do(httptest.NewRequest("GET", "/api/styles", nil))
	if !strings.Contains(w.Body.String(), "bubble_replace") {
		t.Errorf("expected bubble_replace in styles, got %s", w.Body.String())
	}
}

func TestHistoryPage(t *testing.T) {
	env := newTestEnv(t, instantRunner{})

	w := env.do(httptest.NewRequest("GET", "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("expected html, got %s", ct)
	}
	if !strings.Contains(w.Body.String(), "Translation history") {
		t.Error("expected history heading")
	}
}

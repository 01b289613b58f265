package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/DelxAbde/panel-pal-translate/internal/account"
	"github.com/DelxAbde/panel-pal-translate/internal/config"
	"github.com/DelxAbde/panel-pal-translate/internal/imagefmt"
	"github.com/DelxAbde/panel-pal-translate/internal/job"
	"github.com/DelxAbde/panel-pal-translate/internal/service"
	"github.com/DelxAbde/panel-pal-translate/internal/web"
)

var startTime = time.Now()

const historyPageSize = 50

type Handlers struct {
	cfg      *config.Config
	jobs     *service.Service
	accounts *account.Service
	logger   *zap.SugaredLogger
}

func NewHandlers(cfg *config.Config, jobs *service.Service, accounts *account.Service, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{cfg: cfg, jobs: jobs, accounts: accounts, logger: logger}
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handlers) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"node_id":        h.cfg.NodeID,
		"version":        "0.1.0",
		"uptime_seconds": int(time.Since(startTime).Seconds()),
		"ocr_engine":     h.cfg.OCREngine,
		"persistent":     h.cfg.DataDir != "",
	})
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"node_id":        h.cfg.NodeID,
		"uptime_seconds": int(time.Since(startTime).Seconds()),
		"jobs":           h.jobs.Stats(),
		"endpoints": map[string]int{
			"translate": len(h.cfg.TranslateEndpoints),
			"detect":    len(h.cfg.DetectEndpoints),
		},
	})
}

func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	jobs, total := h.jobs.ListJobs(historyPageSize, 0, "")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := web.HistoryPage(jobs, total).Render(r.Context(), w); err != nil {
		h.logger.Errorw("failed to render history page", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors to HTTP statuses. Anything unexpected is
// logged and reported as a bare 500.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		writeErrorMessage(w, http.StatusRequestEntityTooLarge, "image exceeds the upload limit")
	case errors.Is(err, job.ErrNotFound), errors.Is(err, account.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, job.ErrTerminal), errors.Is(err, job.ErrNotProcessing), errors.Is(err, account.ErrExists):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidSettings), errors.Is(err, account.ErrInvalidInput),
		errors.Is(err, imagefmt.ErrDataURI), errors.Is(err, errBadRequest):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrUnauthorized):
		writeErrorMessage(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrClosed):
		writeErrorMessage(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

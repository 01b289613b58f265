package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/DelxAbde/panel-pal-translate/internal/imagefmt"
	"github.com/DelxAbde/panel-pal-translate/internal/job"
)

var errBadRequest = errors.New("bad request")

// JobRequest is the JSON form of a job submission. The image is a data URI
// as produced by a browser FileReader.
type JobRequest struct {
	ImageData string `json:"image_data"`
	job.Settings
}

func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes())

	settings, image, err := h.readSubmission(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	userID := ""
	if u := userFrom(r.Context()); u != nil {
		userID = u.ID
		settings = settings.WithDefaults(u.Preferences.Settings())
	}

	if int64(len(image)) > h.cfg.MaxUploadBytes {
		writeErrorMessage(w, http.StatusRequestEntityTooLarge, "image exceeds the upload limit")
		return
	}

	j, err := h.jobs.CreateJob(settings, image, userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, j)
}

// maxRequestBytes leaves room for multipart framing and base64 inflation.
func (h *Handlers) maxRequestBytes() int64 {
	return h.cfg.MaxUploadBytes*4/3 + 64*1024
}

func (h *Handlers) readSubmission(r *http.Request) (job.Settings, []byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.readMultipart(r)
	}

	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return job.Settings{}, nil, err
		}
		return job.Settings{}, nil, fmt.Errorf("%w: invalid request body", errBadRequest)
	}
	if req.ImageData == "" {
		return job.Settings{}, nil, fmt.Errorf("%w: image_data is required", errBadRequest)
	}
	image, err := imagefmt.ParseDataURI(req.ImageData)
	if err != nil {
		return job.Settings{}, nil, err
	}
	return req.Settings, image, nil
}

func (h *Handlers) readMultipart(r *http.Request) (job.Settings, []byte, error) {
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return job.Settings{}, nil, err
		}
		return job.Settings{}, nil, fmt.Errorf("%w: invalid multipart upload", errBadRequest)
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		return job.Settings{}, nil, fmt.Errorf("%w: image file is required", errBadRequest)
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		return job.Settings{}, nil, fmt.Errorf("read upload: %w", err)
	}

	settings := job.Settings{
		SourceLanguage:   r.FormValue("source_language"),
		TargetLanguage:   r.FormValue("target_language"),
		Font:             r.FormValue("font"),
		TranslationStyle: r.FormValue("translation_style"),
	}
	if v := r.FormValue("font_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return job.Settings{}, nil, fmt.Errorf("%w: font_size must be a number", errBadRequest)
		}
		settings.FontSize = size
	}
	return settings, image, nil
}

func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handlers) CurrentJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.CurrentJob()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.CancelJob(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, j)
}

func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	status := r.URL.Query().Get("status")

	if limit <= 0 {
		limit = 20
	}

	jobs, total := h.jobs.ListJobs(limit, offset, status)
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":   jobs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (h *Handlers) ListCompletedJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.ListCompletedJobs()
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// Image returns the uploaded page.
func (h *Handlers) Image(w http.ResponseWriter, r *http.Request) {
	j, err := h.jobs.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if len(j.ImageData) == 0 {
		writeErrorMessage(w, http.StatusNotFound, "image not available")
		return
	}
	w.Header().Set("Content-Type", j.ImageType)
	w.Write(j.ImageData)
}

func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	j, ok := h.completedJob(w, r)
	if !ok {
		return
	}
	if len(j.ResultData) == 0 {
		writeErrorMessage(w, http.StatusNotFound, "result not available")
		return
	}

	name := "translated_manga_" + j.ID + imagefmt.Extension(j.ResultType)
	w.Header().Set("Content-Type", j.ResultType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Write(j.ResultData)
}

func (h *Handlers) Text(w http.ResponseWriter, r *http.Request) {
	j, ok := h.completedJob(w, r)
	if !ok {
		return
	}

	var b strings.Builder
	source := j.SourceLanguage
	if j.DetectedLanguage != "" {
		source = j.DetectedLanguage
	}
	fmt.Fprintf(&b, "Original (%s):\n%s\n\nTranslation (%s):\n%s\n", source, j.OriginalText, j.TargetLanguage, j.TranslatedText)

	name := "translated_manga_" + j.ID + ".txt"
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	io.WriteString(w, b.String())
}

// completedJob loads the job in the URL and writes an error unless it is
// completed.
func (h *Handlers) completedJob(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	j, err := h.jobs.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	if j.Status != job.StatusCompleted {
		writeErrorMessage(w, http.StatusConflict, fmt.Sprintf("job is %s, not completed", j.Status))
		return nil, false
	}
	return j, true
}

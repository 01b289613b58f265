package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/DelxAbde/panel-pal-translate/internal/imagefmt"
)

// HTTPEngine posts the image as a data URI to a remote OCR service and reads
// {"text": "..."} back.
type HTTPEngine struct {
	url    string
	client *http.Client
}

type ocrRequest struct {
	Image                   string `json:"image"`
	Languages               string `json:"languages"`
	PageSegMode             int    `json:"psm"`
	PreserveInterwordSpaces bool   `json:"preserve_interword_spaces"`
}

type ocrResponse struct {
	Text *string `json:"text"`
}

func NewHTTPEngine(url string, client *http.Client) *HTTPEngine {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPEngine{url: url, client: client}
}

func (e *HTTPEngine) Recognize(ctx context.Context, image []byte, opts Options) (string, error) {
	contentType, err := imagefmt.Detect(image)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(ocrRequest{
		Image:                   imagefmt.DataURI(image, contentType),
		Languages:               opts.Languages,
		PageSegMode:             opts.PageSegMode,
		PreserveInterwordSpaces: opts.PreserveInterwordSpaces,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Text == nil {
		return "", fmt.Errorf("ocr response missing text field")
	}
	return *out.Text, nil
}

// Package endpoint posts JSON to interchangeable remote services that are
// tried in priority order.
package endpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %s", e.URL, e.Status)
}

// Endpoint is one remote service instance. Requests to it are paced by a
// token bucket so a burst of jobs does not hammer free public instances.
type Endpoint struct {
	URL     string
	limiter *rate.Limiter
}

// NewList builds endpoints in priority order. perSecond <= 0 disables pacing.
func NewList(urls []string, perSecond float64) []*Endpoint {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	eps := make([]*Endpoint, 0, len(urls))
	for _, u := range urls {
		eps = append(eps, &Endpoint{URL: u, limiter: rate.NewLimiter(limit, 1)})
	}
	return eps
}

// PostJSON sends body as JSON and decodes a 2xx response into out. The whole
// exchange, including waiting for the rate limiter, is bounded by timeout.
func (e *Endpoint) PostJSON(ctx context.Context, client *http.Client, timeout time.Duration, body, out any) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &StatusError{URL: e.URL, Code: resp.StatusCode, Status: resp.Status}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

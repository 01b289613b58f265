package detect

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DelxAbde/panel-pal-translate/internal/endpoint"
	"github.com/DelxAbde/panel-pal-translate/internal/logging"
)

// DefaultLanguage is returned for empty input and when nothing else matches.
const DefaultLanguage = "en"

var errNoCandidates = errors.New("no language detection results")

// Candidate is one entry of a detection endpoint's response.
type Candidate struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

type detectRequest struct {
	Q string `json:"q"`
}

// Client detects the language of text. It never fails: remote endpoints are
// tried in order and the script heuristic answers when all of them fail.
type Client struct {
	endpoints  []*endpoint.Endpoint
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.SugaredLogger
}

func NewClient(endpoints []*endpoint.Endpoint, httpClient *http.Client, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoints:  endpoints,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logging.OrNop(logger),
	}
}

func (c *Client) DetectLanguage(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return DefaultLanguage
	}

	for _, ep := range c.endpoints {
		if ctx.Err() != nil {
			break
		}
		lang, err := c.detectWith(ctx, ep, text)
		if err != nil {
			c.logger.Warnw("language detection endpoint failed", "endpoint", ep.URL, "error", err)
			continue
		}
		c.logger.Debugw("language detected", "endpoint", ep.URL, "language", lang)
		return lang
	}

	lang := DetectScript(text)
	c.logger.Infow("language detection fell back to script heuristic", "language", lang)
	return lang
}

func (c *Client) detectWith(ctx context.Context, ep *endpoint.Endpoint, text string) (string, error) {
	var candidates []Candidate
	if err := ep.PostJSON(ctx, c.httpClient, c.timeout, detectRequest{Q: text}, &candidates); err != nil {
		return "", err
	}
	return best(candidates)
}

// best picks the candidate with the highest confidence.
func best(candidates []Candidate) (string, error) {
	var top *Candidate
	for i := range candidates {
		cand := &candidates[i]
		if cand.Language == "" {
			continue
		}
		if top == nil || cand.Confidence > top.Confidence {
			top = cand
		}
	}
	if top == nil {
		return "", errNoCandidates
	}
	return strings.ToLower(top.Language), nil
}

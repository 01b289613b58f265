package translate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DelxAbde/panel-pal-translate/internal/endpoint"
	"github.com/DelxAbde/panel-pal-translate/internal/logging"
)

var errMissingField = errors.New("translation response missing translatedText field")

// Translation is the outcome of one Translate call.
type Translation struct {
	SourceText     string `json:"source_text"`
	TranslatedText string `json:"translated_text"`
	SourceLang     string `json:"source_lang"`
	TargetLang     string `json:"target_lang"`
	// Endpoint is the service that answered; empty for shortcuts and fallbacks.
	Endpoint string `json:"endpoint,omitempty"`
	// Fallback is set when every endpoint failed and the text was passed through.
	Fallback bool `json:"fallback"`
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

type translateResponse struct {
	TranslatedText *string `json:"translatedText"`
}

// Client translates text through a prioritized list of LibreTranslate-style
// endpoints, falling back to a labelled passthrough when all of them fail.
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
		timeout = 15 * time.Second
	}
	return &Client{
		endpoints:  endpoints,
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logging.OrNop(logger),
	}
}

// Translate returns the translation of text. Empty input and identical
// language tags return immediately without any request; tags that differ
// only by region, such as zh-CN and zh-TW, are still translated. Endpoint failures are
// not returned as errors; only a cancelled context is.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (Translation, error) {
	src, tgt := NormalizeCode(sourceLang), NormalizeCode(targetLang)
	out := Translation{SourceText: text, SourceLang: src, TargetLang: tgt}

	if strings.TrimSpace(text) == "" {
		return out, nil
	}
	if sameTag(sourceLang, targetLang) {
		out.TranslatedText = text
		return out, nil
	}

	var lastErr error
	for _, ep := range c.endpoints {
		if err := ctx.Err(); err != nil {
			return Translation{}, fmt.Errorf("translate: %w", err)
		}

		translated, err := c.translateWith(ctx, ep, text, src, tgt)
		if err != nil {
			lastErr = err
			c.logger.Warnw("translation endpoint failed", "endpoint", ep.URL, "error", err)
			continue
		}

		out.TranslatedText = translated
		out.Endpoint = ep.URL
		return out, nil
	}

	if err := ctx.Err(); err != nil {
		return Translation{}, fmt.Errorf("translate: %w", err)
	}

	c.logger.Warnw("all translation endpoints failed, returning untranslated text",
		"endpoints", len(c.endpoints), "lastError", lastErr)
	out.TranslatedText = Fallback(text, src, tgt)
	out.Fallback = true
	return out, nil
}

func (c *Client) translateWith(ctx context.Context, ep *endpoint.Endpoint, text, src, tgt string) (string, error) {
	req := translateRequest{Q: text, Source: src, Target: tgt, Format: "text"}

	var resp translateResponse
	if err := ep.PostJSON(ctx, c.httpClient, c.timeout, req, &resp); err != nil {
		return "", err
	}
	if resp.TranslatedText == nil || *resp.TranslatedText == "" {
		return "", errMissingField
	}
	return *resp.TranslatedText, nil
}

// Fallback marks text as untranslated so it is never mistaken for a real
// translation.
func Fallback(text, sourceLang, targetLang string) string {
	return fmt.Sprintf("[untranslated %s→%s] %s", sourceLang, targetLang, text)
}

// sameTag compares full language tags, ignoring case and the separator.
func sameTag(a, b string) bool {
	clean := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	}
	return clean(a) == clean(b)
}

// NormalizeCode lowercases a language tag and strips any region, so "EN" and
// "en-US" both become "en".
func NormalizeCode(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if idx := strings.IndexAny(lang, "-_"); idx >= 0 {
		lang = lang[:idx]
	}
	return lang
}

package ocr

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/DelxAbde/panel-pal-translate/internal/logging"
)

// ErrExtraction wraps every failure of the recognition engine.
var ErrExtraction = errors.New("text extraction failed")

// Options configures one recognition pass.
type Options struct {
	// Languages is a "+"-joined tesseract language set, e.g. "eng+jpn+chi_sim".
	Languages string
	// PageSegMode 6 treats the image as a single uniform block of text.
	PageSegMode int
	// PreserveInterwordSpaces is off for manga, where spacing carries no meaning.
	PreserveInterwordSpaces bool
}

func DefaultOptions() Options {
	return Options{Languages: "eng+jpn+chi_sim", PageSegMode: 6}
}

// Engine recognizes text in an image.
type Engine interface {
	Recognize(ctx context.Context, image []byte, opts Options) (string, error)
}

// Client is the text extraction client used by the pipeline.
type Client struct {
	engine  Engine
	opts    Options
	timeout time.Duration
	logger  *zap.SugaredLogger
}

func NewClient(engine Engine, opts Options, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{engine: engine, opts: opts, timeout: timeout, logger: logging.OrNop(logger)}
}

// ExtractText runs one recognition pass and returns cleaned text. An empty
// result is not an error here; callers decide what no text means.
func (c *Client) ExtractText(ctx context.Context, image []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.engine.Recognize(ctx, image, c.opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if !utf8.ValidString(raw) {
		return "", fmt.Errorf("%w: engine returned invalid UTF-8", ErrExtraction)
	}

	text := CleanText(raw)
	c.logger.Debugw("ocr completed", "chars", utf8.RuneCountInString(text), "duration", time.Since(start))
	return text, nil
}

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// CleanText collapses runs of three or more newlines to two and trims.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(excessNewlines.ReplaceAllString(s, "\n\n"))
}

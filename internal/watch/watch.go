// Package watch follows a job's progress stream from the command line.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/DelxAbde/panel-pal-translate/internal/job"
	"github.com/DelxAbde/panel-pal-translate/internal/logging"
)

// ErrJobNotFound means the server does not know the job; retrying won't help.
var ErrJobNotFound = errors.New("job not found")

// Watcher prints the progress of one job, reconnecting on transport errors
// until it sees the job finish. Reconnects ask for the events after the last
// sequence number seen, so a dropped connection loses nothing the server
// still remembers.
type Watcher struct {
	url            string
	out            io.Writer
	logger         *zap.SugaredLogger
	reconnectDelay time.Duration
	lastSeq        int64
}

func New(wsURL string, out io.Writer, logger *zap.SugaredLogger) *Watcher {
	return &Watcher{url: wsURL, out: out, logger: logging.OrNop(logger), reconnectDelay: 5 * time.Second}
}

// Run returns the job's terminal event.
func (w *Watcher) Run(ctx context.Context) (job.Event, error) {
	for {
		final, err := w.connect(ctx)
		if err == nil {
			return final, nil
		}
		if errors.Is(err, ErrJobNotFound) {
			return job.Event{}, err
		}
		if ctx.Err() != nil {
			return job.Event{}, ctx.Err()
		}

		w.logger.Warnw("connection error, reconnecting", "url", w.url, "error", err, "delay", w.reconnectDelay)
		select {
		case <-ctx.Done():
			return job.Event{}, ctx.Err()
		case <-time.After(w.reconnectDelay):
		}
	}
}

func (w *Watcher) connect(ctx context.Context) (job.Event, error) {
	target, err := w.resumeURL()
	if err != nil {
		return job.Event{}, err
	}
	w.logger.Debugw("connecting", "url", target)

	conn, resp, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return job.Event{}, ErrJobNotFound
		}
		return job.Event{}, fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "goodbye")

	for {
		var ev job.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return job.Event{}, fmt.Errorf("read: %w", err)
		}
		if ev.Seq > 0 {
			w.lastSeq = ev.Seq
		}
		w.print(ev)
		if ev.Terminal() {
			return ev, nil
		}
	}
}

func (w *Watcher) resumeURL() (string, error) {
	if w.lastSeq == 0 {
		return w.url, nil
	}
	u, err := url.Parse(w.url)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	q.Set("since", strconv.FormatInt(w.lastSeq, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (w *Watcher) print(ev job.Event) {
	switch ev.Type {
	case job.EventCompleted:
		fmt.Fprintf(w.out, "[%3d%%] completed\n", ev.Progress)
	case job.EventFailed:
		fmt.Fprintf(w.out, "[%3d%%] failed: %s\n", ev.Progress, ev.Error)
	default:
		if ev.Stage == "" {
			fmt.Fprintf(w.out, "[%3d%%] %s\n", ev.Progress, ev.Status)
			return
		}
		fmt.Fprintf(w.out, "[%3d%%] %s: %s\n", ev.Progress, ev.Stage, ev.Message)
	}
}

// ExitCode maps a terminal event to the process exit status.
func ExitCode(ev job.Event) int {
	if ev.Type == job.EventCompleted {
		return 0
	}
	return 1
}

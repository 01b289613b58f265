package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/DelxAbde/panel-pal-translate/internal/events"
	"github.com/DelxAbde/panel-pal-translate/internal/job"
	"github.com/DelxAbde/panel-pal-translate/internal/logging"
)

const (
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// JobSource looks up the current state of a job.
type JobSource interface {
	GetJob(id string) (*job.Job, error)
}

// Server streams job progress over websockets: a snapshot of the job on
// connect, then every event until the job finishes. A client reconnecting
// with ?since=<seq> first gets the events it missed while they are still in
// the hub's history.
type Server struct {
	jobs   JobSource
	hub    *events.Hub
	logger *zap.SugaredLogger
}

func NewServer(jobs JobSource, hub *events.Hub, logger *zap.SugaredLogger) *Server {
	return &Server{jobs: jobs, hub: hub, logger: logging.OrNop(logger)}
}

func (s *Server) HandleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	if _, err := s.jobs.GetJob(id); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, job.ErrNotFound) {
			status = http.StatusNotFound
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warnw("websocket accept failed", "jobID", id, "error", err)
		return
	}
	defer conn.CloseNow()

	// Subscribe before taking the snapshot so nothing falls between them.
	ch, unsubscribe := s.hub.Subscribe(id)
	defer unsubscribe()

	j, err := s.jobs.GetJob(id)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "job lookup failed")
		return
	}

	ctx := conn.CloseRead(r.Context())

	lastSeq, lastProgress, finished, err := s.catchUp(ctx, conn, j, since)
	if err != nil || finished {
		return
	}

	s.logger.Debugw("progress stream opened", "jobID", id, "since", since, "subscribers", s.hub.Subscribers(id))
	s.stream(ctx, conn, ch, lastSeq, lastProgress)
}

// catchUp sends what the client has not seen: the buffered events after
// since, or a snapshot of the job when there are none. finished reports
// that a terminal event was sent and the connection closed.
func (s *Server) catchUp(ctx context.Context, conn *websocket.Conn, j *job.Job, since int64) (lastSeq int64, lastProgress int, finished bool, err error) {
	snapshot := job.SnapshotEvent(j)

	var missed []job.Event
	if since > 0 {
		missed = s.hub.Since(since, j.ID)
	}
	if len(missed) == 0 {
		missed = []job.Event{snapshot}
	}

	for _, ev := range missed {
		if err := s.write(ctx, conn, ev); err != nil {
			return 0, 0, false, err
		}
		lastSeq = max(lastSeq, ev.Seq)
		lastProgress = max(lastProgress, ev.Progress)
		if ev.Terminal() {
			conn.Close(websocket.StatusNormalClosure, "job finished")
			return lastSeq, lastProgress, true, nil
		}
	}

	// The history may have dropped the terminal event already.
	if snapshot.Terminal() {
		if err := s.write(ctx, conn, snapshot); err != nil {
			return 0, 0, false, err
		}
		conn.Close(websocket.StatusNormalClosure, "job finished")
		return lastSeq, snapshot.Progress, true, nil
	}
	return lastSeq, lastProgress, false, nil
}

func (s *Server) stream(ctx context.Context, conn *websocket.Conn, ch <-chan job.Event, lastSeq int64, lastProgress int) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusTryAgainLater, "subscriber fell behind")
				return
			}
			// Events queued before the catch-up can be older than it.
			if ev.Seq <= lastSeq || (ev.Type == job.EventProgress && ev.Progress < lastProgress) {
				continue
			}
			lastSeq, lastProgress = ev.Seq, ev.Progress

			if err := s.write(ctx, conn, ev); err != nil {
				return
			}
			if ev.Terminal() {
				conn.Close(websocket.StatusNormalClosure, "job finished")
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, ev job.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, conn, ev); err != nil {
		if websocket.CloseStatus(err) == -1 {
			s.logger.Debugw("websocket write failed", "jobID", ev.JobID, "error", err)
		}
		return err
	}
	return nil
}

// Package events fans job progress out to live subscribers and keeps a short
// sequenced history for incremental reads.
package events

import (
	"sync"
	"time"

	"github.com/DelxAbde/panel-pal-translate/internal/job"
)

const subscriberBuffer = 64

type subscriber struct {
	id    uint64
	jobID string
	ch    chan job.Event
}

// Hub assigns sequence numbers to job events and delivers them to
// subscribers of the event's job. A subscriber that falls a full buffer
// behind is dropped and its channel closed; it can resubscribe and read
// the job's current state instead.
type Hub struct {
	mu        sync.RWMutex
	nextSeq   int64
	nextID    uint64
	maxEvents int
	events    []job.Event
	subs      map[string]map[uint64]*subscriber
}

func NewHub(maxEvents int) *Hub {
	if maxEvents <= 0 {
		maxEvents = 500
	}
	return &Hub{
		maxEvents: maxEvents,
		events:    make([]job.Event, 0, maxEvents),
		subs:      make(map[string]map[uint64]*subscriber),
	}
}

// Publish stamps ev with the next sequence number and delivers it.
func (h *Hub) Publish(ev job.Event) job.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSeq++
	ev.Seq = h.nextSeq
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	h.events = append(h.events, ev)
	if len(h.events) > h.maxEvents {
		trim := len(h.events) - h.maxEvents
		h.events = append([]job.Event(nil), h.events[trim:]...)
	}

	for id, sub := range h.subs[ev.JobID] {
		select {
		case sub.ch <- ev:
		default:
			close(sub.ch)
			delete(h.subs[ev.JobID], id)
		}
	}
	if len(h.subs[ev.JobID]) == 0 {
		delete(h.subs, ev.JobID)
	}

	return ev
}

// Subscribe returns a channel receiving every event published for jobID
// from now on, and a function that ends the subscription.
func (h *Hub) Subscribe(jobID string) (<-chan job.Event, func()) {
	h.mu.Lock()
	h.nextID++
	sub := &subscriber{id: h.nextID, jobID: jobID, ch: make(chan job.Event, subscriberBuffer)}
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[uint64]*subscriber)
	}
	h.subs[jobID][sub.id] = sub
	h.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.subs[jobID][sub.id]; ok {
				delete(h.subs[jobID], sub.id)
				close(sub.ch)
				if len(h.subs[jobID]) == 0 {
					delete(h.subs, jobID)
				}
			}
		})
	}
}

// Since returns buffered events with a sequence strictly greater than seq.
// An empty jobID matches every job.
func (h *Hub) Since(seq int64, jobID string) []job.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []job.Event
	for _, ev := range h.events {
		if ev.Seq > seq && (jobID == "" || ev.JobID == jobID) {
			out = append(out, ev)
		}
	}
	return out
}

// Subscribers reports the number of live subscriptions for jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[jobID])
}

// Package sse implements a Server-Sent Events broker that pushes table and
// upload updates to open dashboard pages.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/kbview/internal/upload"
)

// TypeViewUpdated is sent after every table mutation or view change.
const TypeViewUpdated = "view.updated"

// Topic groups event types so a page can subscribe to a subset.
type Topic string

const (
	TopicView   Topic = "view"
	TopicUpload Topic = "upload"
)

// ParseTopics parses a comma separated topic list. Empty means all topics.
func ParseTopics(s string) ([]Topic, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []Topic
	for _, part := range strings.Split(s, ",") {
		switch t := Topic(strings.TrimSpace(part)); t {
		case TopicView, TopicUpload:
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		default:
			return nil, fmt.Errorf("unknown topic %q", part)
		}
	}
	return out, nil
}

// Event is a named payload to broadcast.
type Event struct {
	Type string
	Data any
}

func (e Event) topic() Topic {
	if strings.HasPrefix(e.Type, "upload.") {
		return TopicUpload
	}
	return TopicView
}

// Config tunes the broker. Zero values disable the throttle and keep-alive.
type Config struct {
	ProgressThrottle time.Duration
	KeepAlive        time.Duration
}

type client struct {
	ch     chan []byte
	topics []Topic // empty: everything
}

func (c *client) wants(t Topic) bool {
	return len(c.topics) == 0 || slices.Contains(c.topics, t)
}

// Broker fans events out to SSE clients.
//
// One loop goroutine owns the clients, the event sequence and the replay
// state (latest view summary and every upload still listed). A new client
// first receives that replay, so a freshly opened page shows in-flight
// uploads without waiting for the next tick.
type Broker struct {
	cfg Config

	subscribeCh   chan *client
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	uploadCh      chan upload.Event
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker loop.
func NewBroker(cfg Config) *Broker {
	cfg.ProgressThrottle = max(cfg.ProgressThrottle, 0)
	cfg.KeepAlive = max(cfg.KeepAlive, 0)

	b := &Broker{
		cfg:           cfg,
		subscribeCh:   make(chan *client),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		uploadCh:      make(chan upload.Event, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	var seq uint64
	clients := make(map[chan []byte]*client)

	var lastView *Event
	var uploadOrder []string
	uploads := make(map[string]upload.Event)
	lastProgress := make(map[string]time.Time)

	frame := func(e Event) []byte {
		payload, err := json.Marshal(e.Data)
		if err != nil {
			slog.Warn("sse: encode event", slog.String("type", e.Type), slog.String("error", err.Error()))
			return nil
		}
		seq++
		return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", seq, e.Type, payload)
	}

	send := func(c *client, raw []byte) {
		select {
		case c.ch <- raw:
		default:
			// Slow client; drop rather than stall the loop.
		}
	}

	broadcast := func(e Event) {
		raw := frame(e)
		if raw == nil {
			return
		}
		t := e.topic()
		for _, c := range clients {
			if c.wants(t) {
				send(c, raw)
			}
		}
	}

	replay := func(c *client) {
		if lastView != nil && c.wants(TopicView) {
			if raw := frame(*lastView); raw != nil {
				send(c, raw)
			}
		}
		if !c.wants(TopicUpload) {
			return
		}
		for _, id := range uploadOrder {
			ev := uploads[id]
			if raw := frame(Event{Type: string(ev.Kind), Data: ev.Upload}); raw != nil {
				send(c, raw)
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case c := <-b.subscribeCh:
			clients[c.ch] = c
			replay(c)

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case e := <-b.publishCh:
			if e.Type == TypeViewUpdated {
				lastView = &e
			}
			broadcast(e)

		case ev := <-b.uploadCh:
			id := ev.Upload.ID
			switch ev.Kind {
			case upload.EventCancelled, upload.EventRemoved:
				delete(uploads, id)
				delete(lastProgress, id)
				uploadOrder = slices.DeleteFunc(uploadOrder, func(s string) bool { return s == id })
			default:
				if _, ok := uploads[id]; !ok {
					uploadOrder = append(uploadOrder, id)
				}
				uploads[id] = ev
			}

			if ev.Kind == upload.EventProgress {
				now := time.Now()
				if now.Sub(lastProgress[id]) < b.cfg.ProgressThrottle {
					continue
				}
				lastProgress[id] = now
			}
			broadcast(Event{Type: string(ev.Kind), Data: ev.Upload})

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a client for the given topics (all when none are given)
// and returns its channel. The replay is queued before Subscribe returns.
func (b *Broker) Subscribe(topics ...Topic) chan []byte {
	c := &client{ch: make(chan []byte, 64), topics: topics}
	if b.closed.Load() {
		close(c.ch)
		return c.ch
	}

	select {
	case b.subscribeCh <- c:
	case <-b.stopped:
		close(c.ch)
	}

	return c.ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues an event for all interested clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishUpload forwards a tracker event. Progress is throttled per upload;
// state changes always go out.
func (b *Broker) PublishUpload(ev upload.Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.uploadCh <- ev:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /events?topics=view,upload).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	topics, err := ParseTopics(r.URL.Query().Get("topics"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe(topics...)
	defer b.Unsubscribe(ch)

	var keepAlive <-chan time.Time
	if b.cfg.KeepAlive > 0 {
		t := time.NewTicker(b.cfg.KeepAlive)
		defer t.Stop()
		keepAlive = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}

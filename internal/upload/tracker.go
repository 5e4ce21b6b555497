// Package upload simulates file upload progress for the knowledge base page.
//
// Nothing is transferred anywhere: an upload is a local state machine that
// moves from uploading to completed on a timer, or to cancelled when the
// entry is removed first.
package upload

import (
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/starford/kbview/internal/apperr"
)

// State of a simulated upload.
type State string

const (
	StateUploading State = "uploading"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Upload is one tracked file.
type Upload struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	Progress  int       `json:"progress"`
	State     State     `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

// EventKind identifies a tracker notification.
type EventKind string

const (
	EventStarted   EventKind = "upload.started"
	EventProgress  EventKind = "upload.progress"
	EventCompleted EventKind = "upload.completed"
	EventCancelled EventKind = "upload.cancelled"
	EventRemoved   EventKind = "upload.removed"
)

// Event is delivered to the tracker's observer.
type Event struct {
	Kind   EventKind `json:"kind"`
	Upload Upload    `json:"upload"`
}

// Config controls the simulated transfer speed.
type Config struct {
	Tick time.Duration
	Step int
}

type removeReq struct {
	id   string
	resp chan error
}

// Tracker owns every in-flight upload.
//
// A single loop goroutine owns the upload table and the ticker; public
// methods talk to it over channels. The observer is called from that loop,
// so events arrive in order and none are emitted for an entry after its
// removal has been processed.
type Tracker struct {
	tick    time.Duration
	step    int
	logger  *slog.Logger
	observe func(Event)

	startCh  chan Upload
	removeCh chan removeReq
	listCh   chan chan []Upload

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewTracker starts a tracker. observe may be nil.
func NewTracker(cfg Config, logger *slog.Logger, observe func(Event)) *Tracker {
	if cfg.Tick <= 0 {
		cfg.Tick = 300 * time.Millisecond
	}
	if cfg.Step <= 0 || cfg.Step > 100 {
		cfg.Step = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tracker{
		tick:     cfg.Tick,
		step:     cfg.Step,
		logger:   logger,
		observe:  observe,
		startCh:  make(chan Upload),
		removeCh: make(chan removeReq),
		listCh:   make(chan chan []Upload),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	go t.run()
	return t
}

func (t *Tracker) run() {
	defer close(t.stopped)

	var order []string
	uploads := make(map[string]*Upload)

	var ticker *time.Ticker
	var tickC <-chan time.Time
	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tickC = nil, nil
		}
	}
	defer stopTicker()

	emit := func(kind EventKind, u *Upload) {
		if t.observe != nil {
			t.observe(Event{Kind: kind, Upload: *u})
		}
	}

	for {
		select {
		case <-t.stopCh:
			return

		case u := <-t.startCh:
			uploads[u.ID] = &u
			order = append(order, u.ID)
			t.logger.Debug("upload: started", slog.String("id", u.ID), slog.String("name", u.Name))
			emit(EventStarted, &u)
			if ticker == nil {
				ticker = time.NewTicker(t.tick)
				tickC = ticker.C
			}

		case req := <-t.removeCh:
			u, ok := uploads[req.id]
			if !ok {
				req.resp <- apperr.ErrNotFound
				continue
			}
			delete(uploads, req.id)
			order = slices.DeleteFunc(order, func(id string) bool { return id == req.id })
			if u.State == StateUploading {
				u.State = StateCancelled
				t.logger.Info("upload: cancelled", slog.String("id", u.ID), slog.Int("progress", u.Progress))
				emit(EventCancelled, u)
			} else {
				emit(EventRemoved, u)
			}
			req.resp <- nil

		case <-tickC:
			active := 0
			for _, id := range order {
				u := uploads[id]
				if u.State != StateUploading {
					continue
				}
				u.Progress = min(u.Progress+t.step, 100)
				if u.Progress == 100 {
					u.State = StateCompleted
					t.logger.Info("upload: completed", slog.String("id", u.ID), slog.String("name", u.Name))
					emit(EventCompleted, u)
					continue
				}
				active++
				emit(EventProgress, u)
			}
			if active == 0 {
				stopTicker()
			}

		case resp := <-t.listCh:
			out := make([]Upload, 0, len(order))
			for _, id := range order {
				out = append(out, *uploads[id])
			}
			resp <- out
		}
	}
}

// Start registers a new upload at 0% and begins advancing it.
func (t *Tracker) Start(name string, size int64, checksum string) Upload {
	u := Upload{
		ID:        uuid.NewString(),
		Name:      name,
		Size:      size,
		Checksum:  checksum,
		State:     StateUploading,
		StartedAt: time.Now(),
	}
	if t.closed.Load() {
		u.State = StateCancelled
		return u
	}
	select {
	case t.startCh <- u:
	case <-t.stopped:
		u.State = StateCancelled
	}
	return u
}

// Remove drops the upload with id, cancelling it if still in flight.
func (t *Tracker) Remove(id string) error {
	if t.closed.Load() {
		return apperr.ErrNotFound
	}
	req := removeReq{id: id, resp: make(chan error, 1)}
	select {
	case t.removeCh <- req:
	case <-t.stopped:
		return apperr.ErrNotFound
	}
	return <-req.resp
}

// List returns the tracked uploads in start order.
func (t *Tracker) List() []Upload {
	if t.closed.Load() {
		return nil
	}
	resp := make(chan []Upload, 1)
	select {
	case t.listCh <- resp:
	case <-t.stopped:
		return nil
	}
	return <-resp
}

// Close stops the loop. No events are delivered after Close returns.
func (t *Tracker) Close() {
	if t.closed.CompareAndSwap(false, true) {
		close(t.stopCh)
	}
	<-t.stopped
}

package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/kbview/internal/upload"
)

// collect reads frames from ch until it has been quiet for 50ms.
func collect(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, string(msg))
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func countType(frames []string, typ string) int {
	n := 0
	for _, f := range frames {
		if strings.Contains(f, "event: "+typ+"\n") {
			n++
		}
	}
	return n
}

func TestParseTopics(t *testing.T) {
	got, err := ParseTopics(" upload, view ,upload")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != TopicUpload || got[1] != TopicView {
		t.Errorf("topics = %v", got)
	}
	if got, _ := ParseTopics(""); got != nil {
		t.Errorf("empty = %v, want nil", got)
	}
	if _, err := ParseTopics("view,bogus"); err == nil {
		t.Error("expected error for unknown topic")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(Config{})
	defer b.Close()

	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after unsubscribe", n)
	}
	if _, ok := <-ch; ok {
		t.Error("channel not closed on unsubscribe")
	}
}

func TestPublishFrameHasSequentialIDs(t *testing.T) {
	b := NewBroker(Config{})
	defer b.Close()
	ch := b.Subscribe()

	b.Publish(Event{Type: TypeViewUpdated, Data: map[string]int{"page": 2}})
	b.Publish(Event{Type: TypeViewUpdated, Data: map[string]int{"page": 3}})

	frames := collect(ch)
	if len(frames) != 2 {
		t.Fatalf("frames = %q", frames)
	}
	if frames[0] != "id: 1\nevent: view.updated\ndata: {\"page\":2}\n\n" {
		t.Errorf("first frame = %q", frames[0])
	}
	if !strings.HasPrefix(frames[1], "id: 2\n") {
		t.Errorf("second frame = %q", frames[1])
	}
}

func TestTopicFilter(t *testing.T) {
	b := NewBroker(Config{})
	defer b.Close()
	views := b.Subscribe(TopicView)
	ups := b.Subscribe(TopicUpload)

	b.Publish(Event{Type: TypeViewUpdated, Data: 1})
	b.PublishUpload(upload.Event{Kind: upload.EventStarted, Upload: upload.Upload{ID: "u1"}})

	vf, uf := collect(views), collect(ups)
	if len(vf) != 1 || countType(vf, TypeViewUpdated) != 1 {
		t.Errorf("view client got %q", vf)
	}
	if len(uf) != 1 || countType(uf, string(upload.EventStarted)) != 1 {
		t.Errorf("upload client got %q", uf)
	}
}

func TestProgressThrottledPerUpload(t *testing.T) {
	b := NewBroker(Config{ProgressThrottle: time.Minute})
	defer b.Close()
	ch := b.Subscribe()

	u := upload.Upload{ID: "u1"}
	b.PublishUpload(upload.Event{Kind: upload.EventStarted, Upload: u})
	for p := 10; p <= 30; p += 10 {
		u.Progress = p
		b.PublishUpload(upload.Event{Kind: upload.EventProgress, Upload: u})
	}
	u.Progress = 100
	b.PublishUpload(upload.Event{Kind: upload.EventCompleted, Upload: u})
	b.PublishUpload(upload.Event{Kind: upload.EventProgress, Upload: upload.Upload{ID: "u2", Progress: 5}})

	frames := collect(ch)
	if n := countType(frames, string(upload.EventProgress)); n != 2 {
		t.Errorf("progress frames = %d, want 2 (first per upload)", n)
	}
	if n := countType(frames, string(upload.EventCompleted)); n != 1 {
		t.Errorf("completed frames = %d, want 1", n)
	}
}

func TestReplayOnSubscribe(t *testing.T) {
	b := NewBroker(Config{ProgressThrottle: time.Minute})
	defer b.Close()

	b.Publish(Event{Type: TypeViewUpdated, Data: map[string]int{"page": 1}})
	b.Publish(Event{Type: TypeViewUpdated, Data: map[string]int{"page": 4}})
	b.PublishUpload(upload.Event{Kind: upload.EventStarted, Upload: upload.Upload{ID: "a"}})
	b.PublishUpload(upload.Event{Kind: upload.EventProgress, Upload: upload.Upload{ID: "a", Progress: 10}})
	// Throttled on the wire, but still the latest state for replay.
	b.PublishUpload(upload.Event{Kind: upload.EventProgress, Upload: upload.Upload{ID: "a", Progress: 20}})
	b.PublishUpload(upload.Event{Kind: upload.EventStarted, Upload: upload.Upload{ID: "gone"}})
	b.PublishUpload(upload.Event{Kind: upload.EventCancelled, Upload: upload.Upload{ID: "gone"}})
	time.Sleep(50 * time.Millisecond)

	frames := collect(b.Subscribe())
	if len(frames) != 2 {
		t.Fatalf("replay = %q", frames)
	}
	if !strings.Contains(frames[0], `"page":4`) {
		t.Errorf("view replay = %q", frames[0])
	}
	if !strings.Contains(frames[1], `"id":"a"`) || !strings.Contains(frames[1], `"progress":20`) {
		t.Errorf("upload replay = %q", frames[1])
	}

	viewOnly := collect(b.Subscribe(TopicView))
	if len(viewOnly) != 1 {
		t.Errorf("view-only replay = %q", viewOnly)
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(Config{})
	defer b.Close()
	ch := b.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			b.Publish(Event{Type: "test", Data: i})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full client")
	}
	time.Sleep(50 * time.Millisecond)
	if n := len(collect(ch)); n != 64 {
		t.Errorf("delivered = %d, want buffer size 64", n)
	}
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(Config{KeepAlive: 10 * time.Millisecond})
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events?topics=upload", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.Publish(Event{Type: TypeViewUpdated, Data: 1})
	b.PublishUpload(upload.Event{Kind: upload.EventCancelled, Upload: upload.Upload{ID: "x"}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := w.Body.String()
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Errorf("content type = %q", w.Header().Get("Content-Type"))
	}
	if !strings.Contains(body, "event: upload.cancelled") {
		t.Errorf("missing upload event: %q", body)
	}
	if strings.Contains(body, "view.updated") {
		t.Error("view event leaked through topic filter")
	}
	if !strings.Contains(body, ": keepalive") {
		t.Error("no keep-alive comment written")
	}

	deadline = time.Now().Add(time.Second)
	for b.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client not cleaned up after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServeHTTPBadTopic(t *testing.T) {
	b := NewBroker(Config{})
	defer b.Close()
	w := httptest.NewRecorder()
	b.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/events?topics=nope", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestClose(t *testing.T) {
	b := NewBroker(Config{})
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Error("clients after close")
	}
	b.Close()
	b.Publish(Event{Type: TypeViewUpdated})
	b.PublishUpload(upload.Event{Kind: upload.EventProgress})
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close returned an open channel")
	}
}

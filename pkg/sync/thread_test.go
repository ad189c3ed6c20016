package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tradepost/pkg/models"
)

// threadServer fakes the conversation endpoints for one thread.
type threadServer struct {
	mu       sync.Mutex
	messages []models.Message
	reads    int32
	fail     int32
}

func (s *threadServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&s.fail) == 1 {
			writeErr(w, http.StatusInternalServerError, "down")
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/conversations/c1":
			writeData(w, models.ConversationView{ID: "c1"})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/messages/conversation/c1":
			s.mu.Lock()
			msgs := append([]models.Message{}, s.messages...)
			s.mu.Unlock()
			writeData(w, msgs)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/conversations/c1/read":
			atomic.AddInt32(&s.reads, 1)
			writeData(w, map[string]int{"modified_count": 0})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/messages":
			var req struct {
				Content string `json:"content"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			m := models.Message{ID: "m-new", Conversation: "c1", Sender: "alice", Content: req.Content}
			s.mu.Lock()
			s.messages = append(s.messages, m)
			s.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": m})
		default:
			writeErr(w, http.StatusNotFound, "no route")
		}
	})
}

func TestThreadPollerInitialLoadAndPolling(t *testing.T) {
	ts := &threadServer{messages: []models.Message{{ID: "m1", Conversation: "c1", Sender: "bob", Content: "hi"}}}
	srv := httptest.NewServer(ts.handler())
	defer srv.Close()

	c := NewClient(srv.URL, "key", "alice", "")
	p := NewThreadPoller(c, "c1", 20*time.Millisecond)
	defer p.Stop()

	ready := make(chan struct{}, 1)
	gotConv := make(chan models.ConversationView, 1)
	var mu sync.Mutex
	var lastList []models.Message
	p.OnConversation = func(v models.ConversationView) { gotConv <- v }
	p.OnState = func(state ThreadState, err error) {
		if state == ThreadReady {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	}
	p.OnMessages = func(msgs []models.Message) {
		mu.Lock()
		lastList = msgs
		mu.Unlock()
	}
	p.Start()

	select {
	case v := <-gotConv:
		if v.ID != "c1" {
			t.Fatalf("conversation id: %s", v.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("conversation never delivered")
	}
	<-ready

	mu.Lock()
	n := len(lastList)
	mu.Unlock()
	if n != 1 {
		t.Fatalf("initial message list: %d", n)
	}

	// a new message appears server-side; the next poll must replace the list
	ts.mu.Lock()
	ts.messages = append(ts.messages, models.Message{ID: "m2", Conversation: "c1", Sender: "bob", Content: "there"})
	ts.mu.Unlock()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n = len(lastList)
		mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("poll never picked up new message")
		}
		time.Sleep(5 * time.Millisecond)
	}

	// non-empty polls trigger best-effort mark-read
	deadline = time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&ts.reads) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("mark-read never issued")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestThreadPollerInitialError(t *testing.T) {
	ts := &threadServer{fail: 1}
	srv := httptest.NewServer(ts.handler())
	defer srv.Close()

	c := NewClient(srv.URL, "key", "alice", "")
	p := NewThreadPoller(c, "c1", 20*time.Millisecond)
	defer p.Stop()

	errCh := make(chan error, 1)
	p.OnState = func(state ThreadState, err error) {
		if state == ThreadError {
			errCh <- err
		}
	}
	p.Start()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatalf("error state without error")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("error state never reported")
	}
	if msgs := p.Messages(); len(msgs) != 0 {
		t.Fatalf("stale messages kept after failure: %d", len(msgs))
	}
}

func TestThreadSendNoOptimisticAppend(t *testing.T) {
	ts := &threadServer{}
	srv := httptest.NewServer(ts.handler())
	defer srv.Close()

	c := NewClient(srv.URL, "key", "alice", "")
	// long interval so polling does not interfere with the assertion
	p := NewThreadPoller(c, "c1", time.Hour)
	defer p.Stop()

	ready := make(chan struct{}, 1)
	p.OnState = func(state ThreadState, err error) {
		if state == ThreadReady {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	}
	p.Start()
	<-ready

	m, err := p.Send(context.Background(), "for sale?")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if m.ID != "m-new" {
		t.Fatalf("send result: %+v", m)
	}
	// the server-confirmed message is the only copy in the local list
	msgs := p.Messages()
	if len(msgs) != 1 || msgs[0].ID != "m-new" {
		t.Fatalf("local list after send: %+v", msgs)
	}
}

func TestThreadSendSingleFlight(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/conversations/c1":
			writeData(w, models.ConversationView{ID: "c1"})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v1/messages/conversation/"):
			writeData(w, []models.Message{})
		case r.Method == http.MethodPost && r.URL.Path == "/v1/messages":
			<-release
			writeData(w, models.Message{ID: "m-slow"})
		default:
			writeErr(w, http.StatusNotFound, "no route")
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "alice", "")
	p := NewThreadPoller(c, "c1", time.Hour)
	defer p.Stop()

	ready := make(chan struct{}, 1)
	p.OnState = func(state ThreadState, err error) {
		if state == ThreadReady {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	}
	p.Start()
	<-ready

	done := make(chan error, 1)
	go func() {
		_, err := p.Send(context.Background(), "slow one")
		done <- err
	}()

	// wait for the first send to reach the server, then a second send must
	// be refused immediately
	time.Sleep(50 * time.Millisecond)
	if _, err := p.Send(context.Background(), "too eager"); err != ErrSendInFlight {
		t.Fatalf("second send: want ErrSendInFlight, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
}

func TestThreadCallbacksMayReenterPoller(t *testing.T) {
	ts := &threadServer{messages: []models.Message{{ID: "m1", Conversation: "c1", Sender: "bob", Content: "hi"}}}
	srv := httptest.NewServer(ts.handler())
	defer srv.Close()

	c := NewClient(srv.URL, "key", "alice", "")
	p := NewThreadPoller(c, "c1", time.Hour)
	defer p.Stop()

	// the callback reads back through the poller's own accessor; this must
	// not deadlock on either delivery path
	seen := make(chan int, 8)
	p.OnMessages = func(msgs []models.Message) {
		seen <- len(p.Messages())
	}
	ready := make(chan struct{}, 1)
	p.OnState = func(state ThreadState, err error) {
		if state == ThreadReady {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
	}
	p.Start()

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		t.Fatal("initial load did not complete")
	}
	select {
	case n := <-seen:
		if n != 1 {
			t.Fatalf("initial delivery: want 1 message via accessor, got %d", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("initial delivery callback never fired")
	}

	if _, err := p.Send(context.Background(), "reply"); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case n := <-seen:
		if n != 2 {
			t.Fatalf("send delivery: want 2 messages via accessor, got %d", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("send delivery callback never fired")
	}
}

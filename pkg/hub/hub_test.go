package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-movenet/internal/log"
)

// fakeConn records writes and blocks reads until closed.
type fakeConn struct {
	mu      sync.Mutex
	written [][]byte
	types   []int
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(mt int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("closed")
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.types = append(f.types, mt)
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) texts() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]byte
	for i, mt := range f.types {
		if mt == websocket.TextMessage {
			out = append(out, f.written[i])
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHub_BroadcastToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New("test", log.Discard())
	go h.Run(ctx)
	waitFor(t, "hub running", h.IsRunning)

	conn := newFakeConn()
	c := NewClient(h, conn, Message{Data: []byte(`"hello"`)})
	done := make(chan struct{})
	go func() {
		c.Run()
		close(done)
	}()
	waitFor(t, "registration", func() bool { return h.ClientCount() == 1 })

	if err := h.BroadcastJSON("pose", map[string]int{"x": 1}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}
	waitFor(t, "two messages", func() bool { return len(conn.texts()) == 2 })

	msgs := conn.texts()
	if string(msgs[0]) != `"hello"` {
		t.Errorf("initial message: %s", msgs[0])
	}
	var env struct {
		Type string         `json:"type"`
		Data map[string]int `json:"data"`
	}
	if err := json.Unmarshal(msgs[1], &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.Type != "pose" || env.Data["x"] != 1 {
		t.Errorf("envelope: %+v", env)
	}

	conn.Close()
	<-done
	waitFor(t, "unregister", func() bool { return h.ClientCount() == 0 })
}

func TestHub_StopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test", log.Discard())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	waitFor(t, "hub running", h.IsRunning)

	conn := newFakeConn()
	c := NewClient(h, conn)
	done := make(chan struct{})
	go func() {
		c.Run()
		close(done)
	}()
	waitFor(t, "registration", func() bool { return h.ClientCount() == 1 })

	cancel()
	<-stopped
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not exit after hub stopped")
	}
	if h.IsRunning() || h.ClientCount() != 0 {
		t.Error("hub should be stopped and empty")
	}

	// Late clients start closed and return at once
	late := NewClient(h, newFakeConn())
	finished := make(chan struct{})
	go func() {
		late.Run()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("late client blocked")
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("test", log.Discard())
	for i := 0; i < broadcastBuffer+10; i++ {
		h.Broadcast(Message{Data: []byte("x")})
	}
	if h.Dropped() != 10 {
		t.Errorf("Dropped: got %d, want 10", h.Dropped())
	}
}

func TestEncode(t *testing.T) {
	data, err := Encode("event", "started")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if env.Type != "event" || env.Data != "started" || env.Time.IsZero() {
		t.Errorf("envelope: %+v", env)
	}
	if _, err := Encode("bad", make(chan int)); err == nil {
		t.Error("expected error for unencodable value")
	}
}

package hub

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
)

type frame struct {
	kind int
	data string
}

// fakeConn blocks reads until closed and records writes.
type fakeConn struct {
	writes chan frame
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{writes: make(chan frame, 64), closed: make(chan struct{})}
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(kind int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("closed")
	default:
	}
	f.writes <- frame{kind, string(data)}
	return nil
}

func nextFrame(t *testing.T, c *fakeConn) frame {
	t.Helper()
	select {
	case f := <-c.writes:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return frame{}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcast(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Stop()

	a, b := newFakeConn(), newFakeConn()
	go newClient(h, a, NewJSONMessage([]byte(`{"hello":1}`))).Run()
	go newClient(h, b).Run()
	waitFor(t, func() bool { return h.ClientCount() == 2 })

	if f := nextFrame(t, a); f.data != `{"hello":1}` {
		t.Errorf("initial frame = %q", f.data)
	}

	if err := h.BroadcastJSON(map[string]string{"state": "listening"}); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*fakeConn{a, b} {
		f := nextFrame(t, c)
		if f.kind != websocket.TextMessage || f.data != `{"state":"listening"}` {
			t.Errorf("got %+v", f)
		}
	}
}

func TestClientDisconnect(t *testing.T) {
	h := New("test")
	go h.Run()
	defer h.Stop()

	c := newFakeConn()
	done := make(chan struct{})
	go func() {
		newClient(h, c).Run()
		close(done)
	}()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	c.Close()
	<-done
	waitFor(t, func() bool { return h.ClientCount() == 0 })
}

func TestStopClosesClients(t *testing.T) {
	h := New("test")
	go h.Run()
	waitFor(t, h.IsRunning)

	c := newFakeConn()
	done := make(chan struct{})
	go func() {
		newClient(h, c).Run()
		close(done)
	}()
	waitFor(t, func() bool { return h.ClientCount() == 1 })

	h.Stop()
	h.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client did not exit after Stop")
	}
	waitFor(t, func() bool { return !h.IsRunning() })

	// registering after Stop must not block
	late := newFakeConn()
	newClient(h, late).Run()
	select {
	case <-late.closed:
	default:
		t.Error("late client connection should be closed")
	}
}

func TestBroadcastWithoutRunDoesNotBlock(t *testing.T) {
	h := New("idle")
	for i := 0; i < 300; i++ {
		h.Broadcast(NewJSONMessage([]byte("{}")))
	}
	if h.ClientCount() != 0 {
		t.Error("expected no clients")
	}
}

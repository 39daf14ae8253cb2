package hub

import (
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"zapflow/models"
)

type fakeConn struct {
	mu     sync.Mutex
	writes []interface{}
	fail   bool
	closed bool

	// block, when set, stalls every WriteJSON until released.
	block chan struct{}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.writes = append(c.writes, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newTestHub() *Hub {
	return New(log.New(os.Stdout, "HUB: ", log.LstdFlags))
}

// waitFor polls until the condition holds; delivery runs on per-session
// writer goroutines.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBroadcastReachesAllSessions(t *testing.T) {
	h := newTestHub()
	conns := []*fakeConn{{}, {}, {}}
	for _, c := range conns {
		h.Register(c)
	}

	h.PublishBoard(models.BoardView{{ID: "leads", Title: "Leads"}})
	h.PublishMessage(models.Message{ID: "m1", ContactID: "c1", Content: "oi", Timestamp: time.Now()})

	for _, c := range conns {
		c := c
		waitFor(t, "conn to receive both events", func() bool { return c.writeCount() == 2 })
	}
}

func TestFailingSessionIsDropped(t *testing.T) {
	h := newTestHub()
	healthy := &fakeConn{}
	broken := &fakeConn{fail: true}
	h.Register(healthy)
	h.Register(broken)

	h.PublishBoard(models.BoardView{})

	waitFor(t, "broken session to be dropped", func() bool {
		return h.Count() == 1 && broken.isClosed()
	})

	// Subsequent publishes still reach the healthy session
	h.PublishBoard(models.BoardView{})
	waitFor(t, "healthy session to receive both events", func() bool {
		return healthy.writeCount() == 2
	})
}

func TestSlowSessionDoesNotBlockPublish(t *testing.T) {
	h := newTestHub()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	slow := &fakeConn{block: release}
	h.Register(slow)

	// The writer is stuck in its first write; once the outbox fills,
	// further publishes must drop the session instead of waiting.
	done := make(chan struct{})
	go func() {
		for i := 0; i < sessionBuffer+2; i++ {
			h.PublishBoard(models.BoardView{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a stuck session")
	}

	waitFor(t, "stuck session to be dropped", func() bool {
		return h.Count() == 0 && slow.isClosed()
	})
}

func TestUnregisterIsIdempotent(t *testing.T) {
	h := newTestHub()
	c := &fakeConn{}
	s := h.Register(c)

	h.Unregister(s)
	h.Unregister(s)

	if h.Count() != 0 {
		t.Errorf("got %d sessions, want 0", h.Count())
	}

	h.PublishBoard(models.BoardView{})
	if c.writeCount() != 0 {
		t.Error("unregistered session received an event")
	}
}

func TestCloseDisconnectsEverySession(t *testing.T) {
	h := newTestHub()
	conns := []*fakeConn{{}, {}}
	for _, c := range conns {
		h.Register(c)
	}

	h.Close()

	if h.Count() != 0 {
		t.Errorf("got %d sessions after close, want 0", h.Count())
	}
	for i, c := range conns {
		if !c.isClosed() {
			t.Errorf("conn %d not closed", i)
		}
	}
}

func TestConcurrentPublishAndRegister(t *testing.T) {
	h := newTestHub()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s := h.Register(&fakeConn{})
			h.Unregister(s)
		}()
		go func() {
			defer wg.Done()
			h.PublishBoard(models.BoardView{})
		}()
	}
	wg.Wait()
}

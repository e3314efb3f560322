package hub

import (
	"testing"
	"time"
)

// testClient builds a client that is not backed by a real connection.
// The hub only touches the send channel until a pump runs.
func testClient(h *Hub, buffer int) *Client {
	return &Client{
		ID:   "test-client",
		hub:  h,
		send: make(chan Message, buffer),
	}
}

func TestNewHub(t *testing.T) {
	h := New("updates")

	if h == nil {
		t.Fatal("New returned nil")
	}
	if h.ClientCount() != 0 {
		t.Error("ClientCount should be 0 initially")
	}
	if h.IsRunning() {
		t.Error("hub should not be running before Run")
	}
}

func TestRegisterAndBroadcast(t *testing.T) {
	h := New("updates")
	go h.Run()

	connected := make(chan *Client, 1)
	h.OnConnect = func(c *Client) { connected <- c }

	c := testClient(h, 4)
	h.register <- c

	select {
	case got := <-connected:
		if got != c {
			t.Error("OnConnect received a different client")
		}
	case <-time.After(time.Second):
		t.Fatal("OnConnect was not invoked")
	}

	if h.ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", h.ClientCount())
	}

	if err := h.BroadcastJSON(map[string]int{"distance": 42}); err != nil {
		t.Fatalf("BroadcastJSON() error = %v", err)
	}

	select {
	case msg := <-c.send:
		if msg.Type != JSONMessage {
			t.Errorf("message type = %v, want JSONMessage", msg.Type)
		}
		if len(msg.Data) == 0 {
			t.Error("message data is empty")
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast was not delivered")
	}
}

func TestSlowClientDropped(t *testing.T) {
	h := New("updates")
	go h.Run()

	// Buffer of 1: the second broadcast overflows and drops the client
	c := testClient(h, 1)
	h.register <- c

	h.BroadcastBinary([]byte{1})
	h.BroadcastBinary([]byte{2})

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow client was not dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestClientCountDuringSlowClientDrop(t *testing.T) {
	h := New("updates")
	go h.Run()

	// Keep a reader hammering the client map while broadcasts overflow
	// zero-buffer clients and force removals.
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
				h.ClientCount()
			}
		}
	}()

	for i := 0; i < 20; i++ {
		h.register <- testClient(h, 0)
		h.BroadcastBinary([]byte{byte(i)})
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow clients were not dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(stop)
	<-done
}

func TestUnregisterClosesSend(t *testing.T) {
	h := New("updates")
	go h.Run()

	c := testClient(h, 1)
	h.register <- c
	h.unregister <- c

	select {
	case _, ok := <-c.send:
		if ok {
			t.Error("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
}

func TestBroadcastDoesNotBlockWhenFull(t *testing.T) {
	h := New("idle") // Run never called, channel fills up

	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			h.Broadcast(NewBinaryMessage([]byte{byte(i)}))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a full channel")
	}
}

func TestClientSendJSON(t *testing.T) {
	h := New("updates")
	c := testClient(h, 1)

	if err := c.SendJSON(map[string]string{"type": "connected"}); err != nil {
		t.Fatalf("SendJSON() error = %v", err)
	}

	msg := <-c.send
	if msg.Type != JSONMessage {
		t.Errorf("message type = %v, want JSONMessage", msg.Type)
	}
	if len(msg.Data) == 0 {
		t.Error("message data is empty")
	}

	if err := c.SendJSON(make(chan int)); err == nil {
		t.Error("unmarshalable value should return an error")
	}
}

func TestClientSendOverflow(t *testing.T) {
	h := New("updates")
	c := testClient(h, 1)

	if !c.Send(NewBinaryMessage([]byte{1})) {
		t.Error("first Send should succeed")
	}
	if c.Send(NewBinaryMessage([]byte{2})) {
		t.Error("second Send should report a full buffer")
	}
}

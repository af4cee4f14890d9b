package websocket

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/dennisdiepolder/callctl/internal/auth"
	"github.com/rs/zerolog"
)

func TestNewHub(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	if hub == nil {
		t.Fatal("expected hub to be created")
	}

	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}

	if hub.broadcast == nil {
		t.Error("expected broadcast channel to be initialized")
	}

	if hub.register == nil {
		t.Error("expected register channel to be initialized")
	}

	if hub.unregister == nil {
		t.Error("expected unregister channel to be initialized")
	}
}

func TestHubClientCount(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	// Initial count should be 0
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	// Simulate adding clients
	hub.mu.Lock()
	hub.clients[&Client{id: "test1"}] = true
	hub.clients[&Client{id: "test2"}] = true
	hub.mu.Unlock()

	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", hub.ClientCount())
	}
}

func TestHubPublishDropsWhenBackedUp(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	// Without Run nothing drains the queue; Publish must still return
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(hub.broadcast)+10; i++ {
			hub.Publish(EventAgentStatus, map[string]int{"n": i}, "")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full queue")
	}
	if len(hub.broadcast) != cap(hub.broadcast) {
		t.Errorf("expected a full queue, got %d of %d", len(hub.broadcast), cap(hub.broadcast))
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	// Start hub in goroutine
	go hub.Run()

	// Create mock client
	client := &Client{
		id:   "test-client",
		hub:  hub,
		send: make(chan []byte, 1),
	}

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after register, got %d", hub.ClientCount())
	}

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}
}

func TestHubBroadcastToMultipleClients(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	// Start hub
	go hub.Run()

	// Create multiple mock clients
	client1 := &Client{
		id:   "client1",
		hub:  hub,
		send: make(chan []byte, 10),
	}

	client2 := &Client{
		id:   "client2",
		hub:  hub,
		send: make(chan []byte, 10),
	}

	// Register clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	// Publish an event open to every role
	hub.Publish(EventWrapUp, map[string]string{"code": "SALE"}, "")

	// Check both clients received the message
	for _, c := range []*Client{client1, client2} {
		select {
		case msg := <-c.send:
			var got Event
			if err := json.Unmarshal(msg, &got); err != nil || got.Type != EventWrapUp {
				t.Errorf("%s got %s (%v)", c.id, msg, err)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("%s did not receive message", c.id)
		}
	}
}

func TestHubPublishFiltersByRole(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	go hub.Run()

	viewer := &Client{
		id:     "viewer",
		hub:    hub,
		send:   make(chan []byte, 10),
		claims: &auth.Claims{Role: auth.RoleViewer},
	}
	supervisor := &Client{
		id:     "supervisor",
		hub:    hub,
		send:   make(chan []byte, 10),
		claims: &auth.Claims{Role: auth.RoleSupervisor},
	}
	hub.register <- viewer
	hub.register <- supervisor
	time.Sleep(10 * time.Millisecond)

	hub.Publish(EventSupervisorAction, map[string]string{"action": "listen"}, auth.RoleSupervisor)
	hub.Publish(EventAgentStatus, map[string]string{"agent": "101"}, "")

	var got Event
	select {
	case msg := <-supervisor.send:
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("invalid event: %v", err)
		}
		if got.Type != EventSupervisorAction {
			t.Errorf("expected %s first, got %s", EventSupervisorAction, got.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("supervisor did not receive event")
	}

	select {
	case msg := <-viewer.send:
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("invalid event: %v", err)
		}
		if got.Type != EventAgentStatus {
			t.Errorf("viewer received %s", got.Type)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("viewer did not receive agent status")
	}
}

package ws

import (
	"net"
	"testing"
)

// newPipeConnection creates a Connection backed by an in-memory pipe so tests
// never touch a real socket.
func newPipeConnection(t *testing.T, id string, egressBuffer int) *Connection {
	t.Helper()

	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})

	return newConnection(id, server, egressBuffer)
}

// ---------- Connection tests ----------

func TestConnection_EnqueueUntilFull(t *testing.T) {
	c := newPipeConnection(t, "c1", 2)

	if !c.Enqueue([]byte("one")) {
		t.Fatal("expected first enqueue to succeed")
	}
	if !c.Enqueue([]byte("two")) {
		t.Fatal("expected second enqueue to succeed")
	}
	if c.Enqueue([]byte("three")) {
		t.Fatal("expected enqueue on a full queue to fail")
	}

	// Draining one slot makes room again.
	<-c.egress
	if !c.Enqueue([]byte("four")) {
		t.Fatal("expected enqueue after drain to succeed")
	}
}

func TestConnection_EnqueueAfterCloseFails(t *testing.T) {
	c := newPipeConnection(t, "c1", 8)
	c.Close()

	if c.Enqueue([]byte("late")) {
		t.Fatal("expected enqueue on a closed connection to fail")
	}
}

func TestConnection_CloseIsIdempotent(t *testing.T) {
	c := newPipeConnection(t, "c1", 8)

	c.Close()
	c.Close() // must not panic on the already-closed done channel
}

func TestConnection_TouchAdvancesLastActive(t *testing.T) {
	c := newPipeConnection(t, "c1", 8)

	before := c.LastActive()
	c.Touch()
	after := c.LastActive()

	if after.Before(before) {
		t.Fatalf("expected LastActive to be non-decreasing, got %v then %v", before, after)
	}
}

// ---------- ConnectionManager tests ----------

func TestConnectionManager_AddGetRemove(t *testing.T) {
	cm := NewConnectionManager()
	c := newPipeConnection(t, "c1", 8)

	cm.Add(c)
	if got := cm.Get("c1"); got != c {
		t.Fatalf("expected Get to return the registered connection, got %v", got)
	}
	if cm.Count() != 1 {
		t.Fatalf("expected count 1, got %d", cm.Count())
	}

	if !cm.Remove("c1") {
		t.Fatal("expected first remove to report true")
	}
	if cm.Remove("c1") {
		t.Fatal("expected second remove to report false")
	}
	if got := cm.Get("c1"); got != nil {
		t.Fatalf("expected Get after remove to return nil, got %v", got)
	}
}

func TestConnectionManager_RemoveClosesConnection(t *testing.T) {
	cm := NewConnectionManager()
	c := newPipeConnection(t, "c1", 8)

	cm.Add(c)
	cm.Remove("c1")

	if c.Enqueue([]byte("late")) {
		t.Fatal("expected enqueue after manager removal to fail")
	}
}

func TestConnectionManager_GetUnknownIsNil(t *testing.T) {
	cm := NewConnectionManager()
	if got := cm.Get("ghost"); got != nil {
		t.Fatalf("expected nil for unknown id, got %v", got)
	}
}

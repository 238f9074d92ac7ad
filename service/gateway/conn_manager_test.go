package gateway

import (
	"testing"

	"github.com/gorilla/websocket"
)

func stubConn(snowID string) *WsConn {
	// registry-only record; the socket is never written or closed here
	c := &WsConn{
		SnowID: snowID,
		Conn:   &websocket.Conn{},
		done:   make(chan struct{}),
	}
	c.setState(StateUnauthenticated)
	return c
}

func TestAddUnauthDuplicate(t *testing.T) {
	m := NewConnManager("gw-test")
	c := stubConn("s1")
	if err := m.AddUnauth(c); err != nil {
		t.Fatalf("AddUnauth: %v", err)
	}
	if err := m.AddUnauth(stubConn("s1")); err == nil {
		t.Fatal("duplicate snowID should be rejected")
	}
	if m.ConnCount() != 1 {
		t.Errorf("ConnCount = %d, want 1", m.ConnCount())
	}
	if m.Count() != 0 {
		t.Errorf("Count = %d, want 0 before auth", m.Count())
	}
}

func TestBindUserRegisters(t *testing.T) {
	m := NewConnManager("gw-test")
	c := stubConn("s1")
	if err := m.AddUnauth(c); err != nil {
		t.Fatalf("AddUnauth: %v", err)
	}

	bound, err := m.BindUser("s1", "u1", "staff")
	if err != nil {
		t.Fatalf("BindUser: %v", err)
	}
	if bound != c {
		t.Fatal("BindUser returned a different record")
	}
	user, role := c.Identity()
	if user != "u1" || role != "staff" {
		t.Errorf("record = user %q role %q, want u1/staff", user, role)
	}

	got, ok := m.Get("u1")
	if !ok || got != c {
		t.Fatal("Get(u1) should return the bound connection")
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}
}

func TestBindUserUnknownSnowID(t *testing.T) {
	m := NewConnManager("gw-test")
	if _, err := m.BindUser("nope", "u1", ""); err == nil {
		t.Fatal("BindUser on unknown snowID should fail")
	}
}

func TestLastAuthenticatedWins(t *testing.T) {
	m := NewConnManager("gw-test")
	a := stubConn("sA")
	b := stubConn("sB")
	if err := m.AddUnauth(a); err != nil {
		t.Fatal(err)
	}
	if err := m.AddUnauth(b); err != nil {
		t.Fatal(err)
	}

	if _, err := m.BindUser("sA", "u1", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.BindUser("sB", "u1", ""); err != nil {
		t.Fatal(err)
	}

	got, ok := m.Get("u1")
	if !ok || got != b {
		t.Fatal("Get(u1) should return the most recently authenticated connection")
	}
	// the older socket stays alive in the socket index
	if m.ConnCount() != 2 {
		t.Errorf("ConnCount = %d, want 2", m.ConnCount())
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1 (one registered session per user)", m.Count())
	}
}

func TestRemoveStaleGuard(t *testing.T) {
	m := NewConnManager("gw-test")
	a := stubConn("sA")
	b := stubConn("sB")
	_ = m.AddUnauth(a)
	_ = m.AddUnauth(b)
	_, _ = m.BindUser("sA", "u1", "")
	_, _ = m.BindUser("sB", "u1", "")

	// closing the overwritten socket must not evict the newer session
	if owned := m.Remove(a); owned != "" {
		t.Errorf("Remove(a) owned = %q, want none (entry overwritten)", owned)
	}
	got, ok := m.Get("u1")
	if !ok || got != b {
		t.Fatal("newer session was evicted by stale removal")
	}

	// removing the current owner does clear the entry
	if owned := m.Remove(b); owned != "u1" {
		t.Errorf("Remove(b) owned = %q, want u1", owned)
	}
	if _, ok := m.Get("u1"); ok {
		t.Fatal("entry should be gone after owner removal")
	}
}

func TestRebindDifferentUser(t *testing.T) {
	m := NewConnManager("gw-test")
	c := stubConn("s1")
	_ = m.AddUnauth(c)
	_, _ = m.BindUser("s1", "u1", "")

	// same socket re-authenticates under another identity
	if _, err := m.BindUser("s1", "u2", ""); err != nil {
		t.Fatalf("BindUser rebind: %v", err)
	}
	if _, ok := m.Get("u1"); ok {
		t.Fatal("old identity still registered after rebind")
	}
	got, ok := m.Get("u2")
	if !ok || got != c {
		t.Fatal("new identity not registered after rebind")
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}
}

func TestRemoveIdempotent(t *testing.T) {
	m := NewConnManager("gw-test")
	c := stubConn("s1")
	_ = m.AddUnauth(c)
	_, _ = m.BindUser("s1", "u1", "")

	if owned := m.Remove(c); owned != "u1" {
		t.Errorf("first Remove owned = %q, want u1", owned)
	}
	// second removal of an already-removed record is a no-op
	if owned := m.Remove(c); owned != "" {
		t.Errorf("second Remove owned = %q, want none", owned)
	}
	if m.ConnCount() != 0 || m.Count() != 0 {
		t.Errorf("counts = %d/%d, want 0/0", m.ConnCount(), m.Count())
	}
}

func TestAuthorizedSnapshot(t *testing.T) {
	m := NewConnManager("gw-test")
	a := stubConn("sA")
	b := stubConn("sB")
	u := stubConn("sU") // never authenticates
	_ = m.AddUnauth(a)
	_ = m.AddUnauth(b)
	_ = m.AddUnauth(u)
	_, _ = m.BindUser("sA", "u1", "")
	_, _ = m.BindUser("sB", "u2", "")

	conns := m.Authorized()
	if len(conns) != 2 {
		t.Fatalf("Authorized() len = %d, want 2", len(conns))
	}
	for _, c := range conns {
		if c == u {
			t.Fatal("unauthenticated socket in authorized snapshot")
		}
	}
}

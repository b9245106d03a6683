package protocol

import (
	"testing"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	c := newCanvas(t, 3, 3)

	var sessions []*Session
	var dones []<-chan runResult
	for i := 0; i < 3; i++ {
		s, _, done := startSession(t, c)
		reg.Add(s)
		sessions = append(sessions, s)
		dones = append(dones, done)
	}

	if reg.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", reg.Count())
	}
	if got, ok := reg.Get(sessions[0].ID()); !ok || got != sessions[0] {
		t.Error("Get() did not return the registered session")
	}

	if !reg.Close(sessions[0].ID()) {
		t.Error("Close() of a registered session should report true")
	}
	if reg.Close(sessions[0].ID()) {
		t.Error("Close() of an unknown session should report false")
	}
	if err := waitDone(t, dones[0]); err != nil {
		t.Errorf("closed session Run() = %v", err)
	}

	if n := reg.CloseAll(); n != 2 {
		t.Errorf("CloseAll() = %d, want 2", n)
	}
	for _, d := range dones[1:] {
		waitDone(t, d)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() after CloseAll = %d", reg.Count())
	}

	reg.Add(sessions[1])
	reg.Remove(sessions[1].ID())
	if reg.Count() != 0 {
		t.Error("Remove() did not unregister")
	}
}

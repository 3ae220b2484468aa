package registry

import (
	"context"
	"testing"
)

func TestMemoryRosterSnapshot(t *testing.T) {
	m := NewMemory("s1", "owner")
	m.Join("P1")
	m.Join("")

	roster, err := m.Roster(context.Background())
	if err != nil {
		t.Fatalf("Roster error = %v", err)
	}
	if len(roster) != 2 {
		t.Fatalf("roster = %v, want owner and P1", roster)
	}

	m.Leave("P1")
	if _, ok := roster["P1"]; !ok {
		t.Fatal("earlier snapshot changed after Leave")
	}
	roster, _ = m.Roster(context.Background())
	if _, ok := roster["P1"]; ok {
		t.Fatal("P1 still present after Leave")
	}
	if m.SessionID() != "s1" || m.OwnerID() != "owner" {
		t.Fatalf("identity = %q/%q", m.SessionID(), m.OwnerID())
	}
}

func TestMemoryRosterHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMemory("s1", "owner").Roster(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

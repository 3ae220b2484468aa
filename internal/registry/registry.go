package registry

import (
	"context"
	"sync"

	"party-beacon/internal/beacon"
)

// SessionRegistry reports who is currently inside the hosted game session.
type SessionRegistry interface {
	SessionID() string
	OwnerID() beacon.PlayerID
	Roster(ctx context.Context) (map[beacon.PlayerID]struct{}, error)
}

// Memory is an in-process registry for standalone hosts and tests.
type Memory struct {
	sessionID string
	ownerID   beacon.PlayerID

	mu      sync.RWMutex
	players map[beacon.PlayerID]struct{}
}

func NewMemory(sessionID string, owner beacon.PlayerID) *Memory {
	m := &Memory{
		sessionID: sessionID,
		ownerID:   owner,
		players:   map[beacon.PlayerID]struct{}{},
	}
	if owner.Valid() {
		m.players[owner] = struct{}{}
	}
	return m
}

func (m *Memory) SessionID() string        { return m.sessionID }
func (m *Memory) OwnerID() beacon.PlayerID { return m.ownerID }

func (m *Memory) Join(id beacon.PlayerID) {
	if !id.Valid() {
		return
	}
	m.mu.Lock()
	m.players[id] = struct{}{}
	m.mu.Unlock()
}

func (m *Memory) Leave(id beacon.PlayerID) {
	m.mu.Lock()
	delete(m.players, id)
	m.mu.Unlock()
}

func (m *Memory) Roster(ctx context.Context) (map[beacon.PlayerID]struct{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[beacon.PlayerID]struct{}, len(m.players))
	for id := range m.players {
		out[id] = struct{}{}
	}
	return out, nil
}

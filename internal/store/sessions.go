package store

import (
	"context"
	"time"

	"party-beacon/internal/beacon"
)

type Session struct {
	ID        string
	OwnerID   beacon.PlayerID
	CreatedAt time.Time
}

func (s *Store) CreateSession(ctx context.Context, sessionID string, owner beacon.PlayerID) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO beacon_sessions (id, owner_id) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET owner_id = EXCLUDED.owner_id`,
		sessionID, string(owner))
	if err != nil {
		return err
	}
	return s.JoinSession(ctx, sessionID, owner)
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var (
		sess  Session
		owner string
	)
	err := s.Pool.QueryRow(ctx,
		`SELECT id, owner_id, created_at FROM beacon_sessions WHERE id = $1`,
		sessionID).Scan(&sess.ID, &owner, &sess.CreatedAt)
	if err != nil {
		return nil, mapNotFound(err)
	}
	sess.OwnerID = beacon.PlayerID(owner)
	return &sess, nil
}

// JoinSession records that player is inside the session. Rejoining refreshes
// joined_at.
func (s *Store) JoinSession(ctx context.Context, sessionID string, player beacon.PlayerID) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO session_players (session_id, player_id) VALUES ($1, $2)
		 ON CONFLICT (session_id, player_id) DO UPDATE SET joined_at = now()`,
		sessionID, string(player))
	return err
}

func (s *Store) LeaveSession(ctx context.Context, sessionID string, player beacon.PlayerID) error {
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM session_players WHERE session_id = $1 AND player_id = $2`,
		sessionID, string(player))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SessionRoster(ctx context.Context, sessionID string) (map[beacon.PlayerID]struct{}, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT player_id FROM session_players WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[beacon.PlayerID]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[beacon.PlayerID(id)] = struct{}{}
	}
	return out, rows.Err()
}

// Registry binds the store to one hosted session so the host can poll its
// roster.
type Registry struct {
	st        *Store
	sessionID string
	ownerID   beacon.PlayerID
}

func (s *Store) Registry(sessionID string, owner beacon.PlayerID) *Registry {
	return &Registry{st: s, sessionID: sessionID, ownerID: owner}
}

func (r *Registry) SessionID() string        { return r.sessionID }
func (r *Registry) OwnerID() beacon.PlayerID { return r.ownerID }

func (r *Registry) Roster(ctx context.Context) (map[beacon.PlayerID]struct{}, error) {
	return r.st.SessionRoster(ctx, r.sessionID)
}

package mcpserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"party-beacon/internal/beacon"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"beacon_state",
			mcp.WithDescription("Show reservations, capacity and pending joins of the hosted session"),
		),
		s.handleBeaconState,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"add_reservation",
			mcp.WithDescription("Reserve slots for a party on behalf of the session owner"),
			mcp.WithString("leader_id", mcp.Required(), mcp.Description("Party leader id")),
			mcp.WithArray("players", mcp.Required(), mcp.WithStringItems(), mcp.Description("Player ids, leader included")),
			mcp.WithNumber("team", mcp.Description("Team number, omitted to let the ledger choose")),
			mcp.WithString("validation", mcp.Description("Validation string stored for every player")),
		),
		s.handleAddReservation,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"remove_reservation",
			mcp.WithDescription("Remove the whole party led by a player"),
			mcp.WithString("leader_id", mcp.Required(), mcp.Description("Party leader id")),
		),
		s.handleRemoveReservation,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"remove_player",
			mcp.WithDescription("Remove one player from its party, promoting a new leader if needed"),
			mcp.WithString("player_id", mcp.Required(), mcp.Description("Player id")),
		),
		s.handleRemovePlayer,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"update_party_leader",
			mcp.WithDescription("Move a reserved player into the party of another leader"),
			mcp.WithString("player_id", mcp.Required(), mcp.Description("Player to move")),
			mcp.WithString("leader_id", mcp.Required(), mcp.Description("New party leader id")),
		),
		s.handleUpdatePartyLeader,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"pause_requests",
			mcp.WithDescription("Defer or resume processing of reservation requests"),
			mcp.WithBoolean("paused", mcp.Required(), mcp.Description("true to defer, false to resume")),
		),
		s.handlePauseRequests,
	)
}

func (s *Server) handleBeaconState(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.host.Snapshot(ctx)
	if err != nil {
		return hostError(err), nil
	}
	return toolResult(snap), nil
}

func (s *Server) handleAddReservation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	leader := strings.TrimSpace(request.GetString("leader_id", ""))
	if leader == "" {
		return invalidRequest("leader_id"), nil
	}
	players := request.GetStringSlice("players", nil)
	if len(players) == 0 {
		return invalidRequest("players"), nil
	}
	party := beacon.PartyReservation{
		LeaderID: beacon.PlayerID(leader),
		TeamNum:  request.GetInt("team", beacon.NoTeam),
	}
	validation := request.GetString("validation", "")
	for _, id := range players {
		party.Players = append(party.Players, beacon.PlayerReservation{
			PlayerID:      beacon.PlayerID(strings.TrimSpace(id)),
			ValidationStr: validation,
		})
	}
	outcome, err := s.host.AddReservation(ctx, party)
	if err != nil {
		return hostError(err), nil
	}
	if outcome != beacon.OutcomeAccepted {
		return outcomeError(outcome, "reservation for "+leader+" refused"), nil
	}
	return toolResult(map[string]any{"ok": true, "leader_id": leader, "players": len(party.Players)}), nil
}

func (s *Server) handleRemoveReservation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	leader, err := request.RequireString("leader_id")
	if err != nil || strings.TrimSpace(leader) == "" {
		return invalidRequest("leader_id"), nil
	}
	outcome, err := s.host.RemoveReservation(ctx, beacon.PlayerID(leader))
	if err != nil {
		return hostError(err), nil
	}
	if outcome != beacon.OutcomeAccepted {
		return outcomeError(outcome, "no party led by "+leader), nil
	}
	return toolResult(map[string]any{"ok": true, "leader_id": leader}), nil
}

func (s *Server) handleRemovePlayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := request.RequireString("player_id")
	if err != nil || strings.TrimSpace(player) == "" {
		return invalidRequest("player_id"), nil
	}
	removed, err := s.host.RemovePlayer(ctx, beacon.PlayerID(player))
	if err != nil {
		return hostError(err), nil
	}
	if !removed {
		return outcomeError(beacon.OutcomeNotFound, "player "+player+" holds no reservation"), nil
	}
	return toolResult(map[string]any{"ok": true, "player_id": player}), nil
}

func (s *Server) handleUpdatePartyLeader(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	player, err := request.RequireString("player_id")
	if err != nil {
		return invalidRequest("player_id"), nil
	}
	leader, err := request.RequireString("leader_id")
	if err != nil {
		return invalidRequest("leader_id"), nil
	}
	moved, err := s.host.UpdatePartyLeader(ctx, beacon.PlayerID(player), beacon.PlayerID(leader))
	if err != nil {
		return hostError(err), nil
	}
	if !moved {
		return toolError(codeLeaderUpdateRefused, "player is not reserved, already led by that leader, or the target team is full"), nil
	}
	return toolResult(map[string]any{"ok": true, "player_id": player, "leader_id": leader}), nil
}

func (s *Server) handlePauseRequests(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	paused, err := request.RequireBool("paused")
	if err != nil {
		return invalidRequest("paused"), nil
	}
	if err := s.host.Pause(ctx, paused); err != nil {
		return hostError(err), nil
	}
	return toolResult(map[string]any{"ok": true, "paused": paused}), nil
}

package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"party-beacon/internal/beacon"
	"party-beacon/internal/host"
	"party-beacon/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type AdminHandlers struct {
	host  *host.Host
	store *store.Store
}

func NewAdminHandlers(h *host.Host, st *store.Store) *AdminHandlers {
	return &AdminHandlers{host: h, store: st}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "db": "disabled"})
			return
		}
		if err := h.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "db": "down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "db": "up"})
	}
}

func (h *AdminHandlers) Session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAdminCallsTotal.Add(1)
		snap, err := h.host.Snapshot(r.Context())
		if err != nil {
			writeHostError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func (h *AdminHandlers) Reservations() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAdminCallsTotal.Add(1)
		snap, err := h.host.Snapshot(r.Context())
		if err != nil {
			writeHostError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items":     snap.Parties,
			"consumed":  snap.Consumed,
			"remaining": snap.Remaining,
		})
	}
}

func (h *AdminHandlers) AddReservation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAdminCallsTotal.Add(1)
		var party beacon.PartyReservation
		party.TeamNum = beacon.NoTeam
		if err := json.NewDecoder(r.Body).Decode(&party); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		outcome, err := h.host.AddReservation(r.Context(), party)
		writeOutcome(w, outcome, err)
	}
}

func (h *AdminHandlers) RemoveReservation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAdminCallsTotal.Add(1)
		leader := beacon.PlayerID(chi.URLParam(r, "leader_id"))
		outcome, err := h.host.RemoveReservation(r.Context(), leader)
		writeOutcome(w, outcome, err)
	}
}

func (h *AdminHandlers) RemovePlayer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAdminCallsTotal.Add(1)
		player := beacon.PlayerID(chi.URLParam(r, "player_id"))
		removed, err := h.host.RemovePlayer(r.Context(), player)
		if err != nil {
			writeHostError(w, err)
			return
		}
		if !removed {
			WriteHTTPError(w, http.StatusNotFound, beacon.OutcomeNotFound.String())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (h *AdminHandlers) UpdatePartyLeader() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAdminCallsTotal.Add(1)
		var body struct {
			LeaderID string `json:"leader_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.LeaderID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		player := beacon.PlayerID(chi.URLParam(r, "player_id"))
		moved, err := h.host.UpdatePartyLeader(r.Context(), player, beacon.PlayerID(body.LeaderID))
		if err != nil {
			writeHostError(w, err)
			return
		}
		if !moved {
			WriteHTTPError(w, http.StatusConflict, "leader_update_refused")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (h *AdminHandlers) Pause() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricAdminCallsTotal.Add(1)
		var body struct {
			Paused *bool `json:"paused"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if body.Paused == nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.host.Pause(r.Context(), *body.Paused); err != nil {
			writeHostError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "paused": *body.Paused})
	}
}

func writeOutcome(w http.ResponseWriter, outcome beacon.Outcome, err error) {
	if err != nil {
		writeHostError(w, err)
		return
	}
	status := outcomeStatus(outcome)
	if status != http.StatusOK {
		metricAdminErrorsTotal.Add(1)
		WriteHTTPError(w, status, outcome.String())
		return
	}
	writeJSON(w, status, map[string]any{"ok": true, "outcome": outcome.String()})
}

func outcomeStatus(o beacon.Outcome) int {
	switch o {
	case beacon.OutcomeAccepted:
		return http.StatusOK
	case beacon.OutcomeNotFound:
		return http.StatusNotFound
	case beacon.OutcomeDenied, beacon.OutcomeDeniedBanned:
		return http.StatusForbidden
	case beacon.OutcomeIncorrectPlayerCount, beacon.OutcomeMalformedRequest:
		return http.StatusBadRequest
	case beacon.OutcomeDuplicate, beacon.OutcomeSessionFull, beacon.OutcomeTeamLimitReached,
		beacon.OutcomeContainsExistingPlayers:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeHostError(w http.ResponseWriter, err error) {
	metricAdminErrorsTotal.Add(1)
	switch {
	case errors.Is(err, host.ErrStopped):
		WriteHTTPError(w, http.StatusServiceUnavailable, "host_stopped")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		WriteHTTPError(w, http.StatusGatewayTimeout, "timeout")
	default:
		log.Error().Err(err).Msg("admin call failed")
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}

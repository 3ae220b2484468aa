package notify

import (
	"slices"
	"strings"

	"party-beacon/internal/beacon"
)

// MatchTargets returns the enabled targets whose filters accept ev.
func MatchTargets(targets []Target, ev Event) []Target {
	var out []Target
	for _, target := range targets {
		if target.Matches(ev) {
			out = append(out, target)
		}
	}
	return out
}

func (t Target) Matches(ev Event) bool {
	if !t.Enabled {
		return false
	}
	if t.SessionID != "" && t.SessionID != ev.SessionID {
		return false
	}
	if len(t.Teams) > 0 && ev.Team != beacon.NoTeam && !slices.Contains(t.Teams, ev.Team) {
		return false
	}
	return EventAllowed(t.EventAllowlist, ev.Type)
}

// EventAllowed reports whether evType passes allowlist. Entries ending in
// "*" match by prefix; an empty list allows everything.
func EventAllowed(allowlist []string, evType string) bool {
	if len(allowlist) == 0 {
		return true
	}
	evType = strings.ToLower(strings.TrimSpace(evType))
	for _, v := range allowlist {
		v = strings.ToLower(strings.TrimSpace(v))
		if prefix, ok := strings.CutSuffix(v, "*"); ok {
			if strings.HasPrefix(evType, prefix) {
				return true
			}
			continue
		}
		if v != "" && v == evType {
			return true
		}
	}
	return false
}

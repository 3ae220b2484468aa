package beacon

import (
	"encoding/json"
	"fmt"
)

// Outcome is the result of every reservation mutation attempt. Both the host
// and the client speak this vocabulary; the wire form is the snake_case name.
type Outcome int

const (
	OutcomeGeneralError Outcome = iota
	OutcomeAccepted
	OutcomeDuplicate
	OutcomeNotFound
	OutcomeSessionFull
	OutcomeIncorrectPlayerCount
	OutcomeTeamLimitReached
	OutcomeDenied
	OutcomeDeniedBanned
	OutcomeCanceled
	OutcomeInvalidSession
	OutcomeMalformedRequest
	OutcomeContainsExistingPlayers
)

var outcomeNames = [...]string{
	OutcomeGeneralError:            "general_error",
	OutcomeAccepted:                "accepted",
	OutcomeDuplicate:               "duplicate",
	OutcomeNotFound:                "not_found",
	OutcomeSessionFull:             "session_full",
	OutcomeIncorrectPlayerCount:    "incorrect_player_count",
	OutcomeTeamLimitReached:        "team_limit_reached",
	OutcomeDenied:                  "denied",
	OutcomeDeniedBanned:            "denied_banned",
	OutcomeCanceled:                "canceled",
	OutcomeInvalidSession:          "invalid_session",
	OutcomeMalformedRequest:        "malformed_request",
	OutcomeContainsExistingPlayers: "contains_existing_players",
}

// Outcomes lists every member of the vocabulary in declaration order.
func Outcomes() []Outcome {
	out := make([]Outcome, 0, len(outcomeNames))
	for i := range outcomeNames {
		out = append(out, Outcome(i))
	}
	return out
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

func (o Outcome) Valid() bool {
	return o >= 0 && int(o) < len(outcomeNames)
}

// Accepted reports whether the ledger took the request. Duplicates count as
// success for retrying clients but are not a new acceptance.
func (o Outcome) Accepted() bool {
	return o == OutcomeAccepted
}

// ParseOutcome maps a wire name back to its Outcome.
func ParseOutcome(s string) (Outcome, error) {
	for i, name := range outcomeNames {
		if name == s {
			return Outcome(i), nil
		}
	}
	return OutcomeGeneralError, fmt.Errorf("unknown outcome %q", s)
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("invalid outcome %d", int(o))
	}
	return json.Marshal(o.String())
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

package notify

import (
	"time"

	"party-beacon/internal/beacon"
)

// Sink receives ledger events. Implementations must not block.
type Sink interface {
	Notify(ev Event)
}

const (
	EventReservationAdded   = "reservation_added"
	EventReservationUpdated = "reservation_updated"
	EventReservationRemoved = "reservation_removed"
	EventPlayerRemoved      = "player_removed"
	EventPlayerExpired      = "player_expired"
	EventReservationsFull   = "reservations_full"
)

// Target is one delivery destination. Empty filters match everything.
type Target struct {
	Platform  string `json:"platform"`
	Endpoint  string `json:"endpoint"`
	Secret    string `json:"secret"`
	SessionID string `json:"session_id"`
	// EventAllowlist entries are event names or prefixes ending in "*".
	EventAllowlist []string `json:"event_allowlist"`
	// Teams limits party events to those teams. Session wide events
	// (no team) always pass.
	Teams   []int `json:"teams"`
	Enabled bool  `json:"enabled"`
}

type Config struct {
	Enabled             bool
	ConfigPath          string
	ConfigReload        time.Duration
	Targets             []Target
	Workers             int
	RetryMax            int
	RetryBase           time.Duration
	FailureThreshold    int
	CircuitOpenDuration time.Duration
	RequestTimeout      time.Duration
	DispatchBuffer      int
	RatePerSecond       int
}

type Event struct {
	EventID   string            `json:"event_id"`
	Type      string            `json:"event"`
	SessionID string            `json:"session_id"`
	At        time.Time         `json:"at"`
	LeaderID  beacon.PlayerID   `json:"leader_id,omitempty"`
	PlayerID  beacon.PlayerID   `json:"player_id,omitempty"`
	Team      int               `json:"team"`
	Players   []beacon.PlayerID `json:"players,omitempty"`
	Remaining int               `json:"remaining"`
	Capacity  int               `json:"capacity"`
}

type MessageField struct {
	Name   string
	Value  string
	Inline bool
}

type FormattedMessage struct {
	Title       string
	Content     string
	Description string
	Color       int
	Timestamp   string
	Footer      string
	Fields      []MessageField
}

type pushJob struct {
	Target    Target
	Event     Event
	Formatted FormattedMessage
	Attempt   int
}

func (j pushJob) key() string {
	return targetKey(j.Target)
}

func targetKey(t Target) string {
	return t.Platform + "|" + t.Endpoint + "|" + t.SessionID
}

// Fanout forwards every event to each sink in order.
type Fanout []Sink

func (f Fanout) Notify(ev Event) {
	for _, s := range f {
		if s != nil {
			s.Notify(ev)
		}
	}
}

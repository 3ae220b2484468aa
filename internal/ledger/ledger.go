package ledger

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"party-beacon/internal/beacon"
)

var ErrInvalidConfig = errors.New("invalid_ledger_config")

type TeamAssignmentMethod string

const (
	AssignSmallest TeamAssignmentMethod = "smallest"
	AssignBestFit  TeamAssignmentMethod = "best_fit"
	AssignRandom   TeamAssignmentMethod = "random"
	AssignManual   TeamAssignmentMethod = "manual"
)

func ParseTeamAssignment(s string) (TeamAssignmentMethod, error) {
	switch m := TeamAssignmentMethod(s); m {
	case AssignSmallest, AssignBestFit, AssignRandom, AssignManual:
		return m, nil
	case "":
		return AssignSmallest, nil
	default:
		return "", fmt.Errorf("team assignment %q: %w", s, ErrInvalidConfig)
	}
}

type Config struct {
	TeamCount       int
	TeamSize        int
	MaxReservations int
	TeamAssignment  TeamAssignmentMethod
	// ForceTeam is the team every party lands on when TeamCount is 1.
	ForceTeam int
	// Strict turns invariant violations into panics.
	Strict bool
}

func (c Config) withDefaults() Config {
	if c.TeamCount <= 0 {
		c.TeamCount = 1
	}
	if c.MaxReservations <= 0 {
		c.MaxReservations = c.TeamCount * c.TeamSize
	}
	if c.TeamAssignment == "" {
		c.TeamAssignment = AssignSmallest
	}
	return c
}

func (c Config) validate() error {
	if c.TeamSize <= 0 {
		return fmt.Errorf("team size %d: %w", c.TeamSize, ErrInvalidConfig)
	}
	if c.MaxReservations > c.TeamCount*c.TeamSize {
		return fmt.Errorf("max reservations %d exceeds %d teams of %d: %w", c.MaxReservations, c.TeamCount, c.TeamSize, ErrInvalidConfig)
	}
	if c.ForceTeam < 0 {
		return fmt.Errorf("force team %d: %w", c.ForceTeam, ErrInvalidConfig)
	}
	if _, err := ParseTeamAssignment(string(c.TeamAssignment)); err != nil {
		return err
	}
	return nil
}

// Ledger is the authoritative table of accepted party reservations for one
// hosted session. It is not safe for concurrent use: exactly one owner
// mutates it.
type Ledger struct {
	cfg         Config
	policy      ReservationPolicy
	rnd         *rand.Rand
	parties     []beacon.PartyReservation
	pendingJoin map[beacon.PlayerID]struct{}
	consumed    int
}

type Option func(*Ledger)

func WithPolicy(p ReservationPolicy) Option {
	return func(l *Ledger) {
		if p != nil {
			l.policy = p
		}
	}
}

func WithRand(r *rand.Rand) Option {
	return func(l *Ledger) {
		if r != nil {
			l.rnd = r
		}
	}
}

func New(cfg Config, opts ...Option) (*Ledger, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	l := &Ledger{
		cfg:         cfg,
		policy:      OpenPolicy{},
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		pendingJoin: map[beacon.PlayerID]struct{}{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Ledger) Config() Config {
	return l.cfg
}

func (l *Ledger) Policy() ReservationPolicy {
	return l.policy
}

func (l *Ledger) NumConsumedReservations() int {
	return l.consumed
}

func (l *Ledger) RemainingReservations() int {
	if rem := l.cfg.MaxReservations - l.consumed; rem > 0 {
		return rem
	}
	return 0
}

func (l *Ledger) IsFull() bool {
	return l.consumed >= l.cfg.MaxReservations
}

func (l *Ledger) NumParties() int {
	return len(l.parties)
}

// Reservation returns a copy of the party led by leader.
func (l *Ledger) Reservation(leader beacon.PlayerID) (beacon.PartyReservation, bool) {
	idx := l.indexOfLeader(leader)
	if idx < 0 {
		return beacon.PartyReservation{}, false
	}
	return l.parties[idx].Clone(), true
}

// Reservations returns copies of every party in acceptance order.
func (l *Ledger) Reservations() []beacon.PartyReservation {
	out := make([]beacon.PartyReservation, 0, len(l.parties))
	for _, p := range l.parties {
		out = append(out, p.Clone())
	}
	return out
}

// PartyOf returns the leader of the party holding player.
func (l *Ledger) PartyOf(player beacon.PlayerID) (beacon.PlayerID, bool) {
	idx := l.indexOfMember(player)
	if idx < 0 {
		return "", false
	}
	return l.parties[idx].LeaderID, true
}

func (l *Ledger) IsPendingJoin(player beacon.PlayerID) bool {
	_, ok := l.pendingJoin[player]
	return ok
}

func (l *Ledger) TeamOccupancy(team int) int {
	n := 0
	for _, p := range l.parties {
		if p.TeamNum == team {
			n += p.Size()
		}
	}
	return n
}

// Clone returns an independent deep copy sharing only the policy.
func (l *Ledger) Clone() *Ledger {
	out := &Ledger{
		cfg:         l.cfg,
		policy:      l.policy,
		rnd:         l.rnd,
		parties:     make([]beacon.PartyReservation, 0, len(l.parties)),
		pendingJoin: make(map[beacon.PlayerID]struct{}, len(l.pendingJoin)),
		consumed:    l.consumed,
	}
	for _, p := range l.parties {
		out.parties = append(out.parties, p.Clone())
	}
	for id := range l.pendingJoin {
		out.pendingJoin[id] = struct{}{}
	}
	return out
}

// Apply dispatches a wire request to the matching ledger operation. Session
// identity is the caller's concern. A cancel never mutates: it echoes
// accepted while the leader still holds a party and canceled otherwise.
func (l *Ledger) Apply(req beacon.Request) beacon.Outcome {
	switch req.Kind {
	case beacon.RequestReserve:
		return l.AddReservation(req.Reservation)
	case beacon.RequestUpdate:
		return l.UpdateReservation(req.Reservation)
	case beacon.RequestCancel:
		if l.indexOfLeader(req.LeaderID) >= 0 {
			return beacon.OutcomeAccepted
		}
		return beacon.OutcomeCanceled
	default:
		return beacon.OutcomeMalformedRequest
	}
}

func (l *Ledger) indexOfLeader(leader beacon.PlayerID) int {
	if !leader.Valid() {
		return -1
	}
	for i, p := range l.parties {
		if p.LeaderID == leader {
			return i
		}
	}
	return -1
}

func (l *Ledger) indexOfMember(player beacon.PlayerID) int {
	if !player.Valid() {
		return -1
	}
	for i, p := range l.parties {
		if p.Has(player) {
			return i
		}
	}
	return -1
}

func (l *Ledger) recount() {
	n := 0
	for _, p := range l.parties {
		n += p.Size()
	}
	l.consumed = n
}

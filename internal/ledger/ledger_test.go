package ledger

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"party-beacon/internal/beacon"
)

func TestTwoTeamsRejectPartyThatFitsNowhere(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 2, TeamSize: 4, MaxReservations: 8})

	if got := l.AddReservation(party("L1", "L1", "P2", "P3")); got != beacon.OutcomeAccepted {
		t.Fatalf("L1 outcome = %v, want accepted", got)
	}
	if got := l.AddReservation(party("L2", "L2", "P4", "P5", "P6")); got != beacon.OutcomeAccepted {
		t.Fatalf("L2 outcome = %v, want accepted", got)
	}
	if r, _ := l.Reservation("L1"); r.TeamNum != 0 {
		t.Fatalf("L1 team = %d, want 0", r.TeamNum)
	}
	if r, _ := l.Reservation("L2"); r.TeamNum != 1 {
		t.Fatalf("L2 team = %d, want 1", r.TeamNum)
	}
	if got := l.AddReservation(party("L3", "L3", "P7")); got != beacon.OutcomeTeamLimitReached {
		t.Fatalf("L3 outcome = %v, want team_limit_reached", got)
	}
	if l.NumConsumedReservations() != 7 || l.RemainingReservations() != 1 {
		t.Fatalf("consumed=%d remaining=%d", l.NumConsumedReservations(), l.RemainingReservations())
	}

	if got := l.RemoveReservation("L1"); got != beacon.OutcomeAccepted {
		t.Fatalf("remove L1 = %v", got)
	}
	if got := l.AddReservation(party("L3", "L3", "P7")); got != beacon.OutcomeAccepted {
		t.Fatalf("L3 retry outcome = %v, want accepted", got)
	}
	if r, _ := l.Reservation("L3"); r.TeamNum != 0 {
		t.Fatalf("L3 team = %d, want 0", r.TeamNum)
	}
}

func TestDuplicateReservationIsIdempotent(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 1, TeamSize: 4})
	if got := l.AddReservation(party("L1", "L1", "P2")); got != beacon.OutcomeAccepted {
		t.Fatalf("first add = %v", got)
	}
	l.MarkPlayerSeen("P2")

	again := party("L1", "P2", "L1")
	again.Players[0].ValidationStr = "fresh"
	if got := l.AddReservation(again); got != beacon.OutcomeDuplicate {
		t.Fatalf("second add = %v, want duplicate", got)
	}
	if l.NumConsumedReservations() != 2 || l.NumParties() != 1 {
		t.Fatalf("consumed=%d parties=%d", l.NumConsumedReservations(), l.NumParties())
	}
	r, _ := l.Reservation("L1")
	if r.Players[r.Member("P2")].ValidationStr != "fresh" {
		t.Fatalf("token not refreshed: %+v", r.Players)
	}
	if !l.IsPendingJoin("P2") {
		t.Fatal("duplicate should re-register members as pending")
	}
}

func TestResubmitWithDifferentMembersIsRejected(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 1, TeamSize: 4})
	l.AddReservation(party("L1", "L1", "P2"))
	if got := l.AddReservation(party("L1", "L1", "P3")); got != beacon.OutcomeContainsExistingPlayers {
		t.Fatalf("outcome = %v, want contains_existing_players", got)
	}
	if got := l.AddReservation(party("L4", "L4", "P2")); got != beacon.OutcomeContainsExistingPlayers {
		t.Fatalf("overlap outcome = %v, want contains_existing_players", got)
	}
	if l.NumConsumedReservations() != 2 {
		t.Fatalf("consumed = %d, want 2", l.NumConsumedReservations())
	}
}

func TestSessionFullAndMalformed(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 1, TeamSize: 2})
	if got := l.AddReservation(party("L1", "L1", "P2")); got != beacon.OutcomeAccepted {
		t.Fatalf("add = %v", got)
	}
	if !l.IsFull() {
		t.Fatal("expected full ledger")
	}
	if got := l.AddReservation(party("L3", "L3")); got != beacon.OutcomeSessionFull {
		t.Fatalf("outcome = %v, want session_full", got)
	}
	if got := l.AddReservation(party("L3", "P9")); got != beacon.OutcomeMalformedRequest {
		t.Fatalf("outcome = %v, want malformed_request", got)
	}
}

func TestRemovePlayerPromotesLeader(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 1, TeamSize: 4})
	l.AddReservation(party("L1", "L1", "P2", "P3"))

	if !l.RemovePlayer("L1") {
		t.Fatal("RemovePlayer(L1) = false")
	}
	if _, ok := l.Reservation("L1"); ok {
		t.Fatal("L1 should no longer lead a party")
	}
	if leader, ok := l.PartyOf("P3"); !ok || leader != "P2" {
		t.Fatalf("PartyOf(P3) = %q, %v; want P2", leader, ok)
	}
	if l.IsPendingJoin("L1") {
		t.Fatal("removed player still pending")
	}

	l.RemovePlayer("P2")
	l.RemovePlayer("P3")
	if l.NumParties() != 0 || l.NumConsumedReservations() != 0 {
		t.Fatalf("parties=%d consumed=%d", l.NumParties(), l.NumConsumedReservations())
	}
	if l.RemovePlayer("P3") {
		t.Fatal("removing an unknown player should report false")
	}
}

func TestUpdateReservationMovesMembers(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 2, TeamSize: 5})
	l.AddReservation(party("L1", "L1", "P2"))
	l.AddReservation(party("L3", "L3", "P4"))

	if got := l.UpdateReservation(party("L1", "P4", "P5")); got != beacon.OutcomeAccepted {
		t.Fatalf("update = %v, want accepted", got)
	}
	if leader, _ := l.PartyOf("P4"); leader != "L1" {
		t.Fatalf("P4 leader = %q, want L1", leader)
	}
	r3, _ := l.Reservation("L3")
	if r3.Size() != 1 {
		t.Fatalf("L3 size = %d, want 1", r3.Size())
	}
	if l.NumConsumedReservations() != 5 {
		t.Fatalf("consumed = %d, want 5", l.NumConsumedReservations())
	}
	if !l.IsPendingJoin("P5") {
		t.Fatal("new member should be pending")
	}

	// Moving the sole member empties and deletes the party.
	if got := l.UpdateReservation(party("L1", "L3")); got != beacon.OutcomeAccepted {
		t.Fatalf("update = %v, want accepted", got)
	}
	if _, ok := l.Reservation("L3"); ok {
		t.Fatal("emptied party should be removed")
	}
}

func TestUpdateReservationRejectionsLeaveLedgerUntouched(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 2, TeamSize: 4})
	l.AddReservation(party("L1", "L1", "P2", "P3"))
	before := l.Reservations()

	if got := l.UpdateReservation(party("L9", "P7")); got != beacon.OutcomeNotFound {
		t.Fatalf("unknown leader = %v, want not_found", got)
	}
	if got := l.UpdateReservation(party("L1", "P2")); got != beacon.OutcomeDuplicate {
		t.Fatalf("empty delta = %v, want duplicate", got)
	}
	if got := l.UpdateReservation(party("L1", "P4", "P5")); got != beacon.OutcomeIncorrectPlayerCount {
		t.Fatalf("overflow = %v, want incorrect_player_count", got)
	}
	if diff := cmp.Diff(before, l.Reservations()); diff != "" {
		t.Fatalf("ledger changed (-before +after):\n%s", diff)
	}
	if l.IsPendingJoin("P4") {
		t.Fatal("rejected member should not be pending")
	}
}

func TestUpdatePartyLeader(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 2, TeamSize: 4})
	l.AddReservation(party("L1", "L1", "P2"))
	l.AddReservation(party("L2", "L2", "P3", "P4", "P5"))

	if l.UpdatePartyLeader("P2", "L2") {
		t.Fatal("move into a full team should be refused")
	}
	if leader, _ := l.PartyOf("P2"); leader != "L1" {
		t.Fatalf("refused move changed P2 leader to %q", leader)
	}

	if !l.UpdatePartyLeader("P2", "P9") {
		t.Fatal("move into a new party should succeed")
	}
	r, ok := l.Reservation("P9")
	if !ok || r.TeamNum != 0 || !r.Has("P2") {
		t.Fatalf("new party = %+v, %v", r, ok)
	}
	if l.NumConsumedReservations() != 6 {
		t.Fatalf("consumed = %d, want 6", l.NumConsumedReservations())
	}
	if l.UpdatePartyLeader("nobody", "L1") {
		t.Fatal("unknown member should report false")
	}
}

func TestBestFitJiggleConsolidatesTeams(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 2, TeamSize: 4, TeamAssignment: AssignBestFit})
	for _, p := range []beacon.PartyReservation{
		party("A", "A", "A2"),
		party("B", "B", "B2"),
		party("C", "C", "C2", "C3"),
		party("D", "D"),
	} {
		if got := l.AddReservation(p); got != beacon.OutcomeAccepted {
			t.Fatalf("add %s = %v", p.LeaderID, got)
		}
	}
	if l.TeamOccupancy(0) != 4 || l.TeamOccupancy(1) != 4 {
		t.Fatalf("occupancy = %d/%d, want 4/4", l.TeamOccupancy(0), l.TeamOccupancy(1))
	}

	l.RemoveReservation("A")
	if l.TeamOccupancy(0) != 4 || l.TeamOccupancy(1) != 2 {
		t.Fatalf("after jiggle occupancy = %d/%d, want 4/2", l.TeamOccupancy(0), l.TeamOccupancy(1))
	}
	if got := l.AddReservation(party("E", "E", "E2")); got != beacon.OutcomeAccepted {
		t.Fatalf("add E = %v", got)
	}
}

func TestRandomAssignmentOnlyPicksFittingTeams(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 3, TeamSize: 2, TeamAssignment: AssignRandom}, WithRand(rand.New(rand.NewSource(7))))
	used := map[int]bool{}
	for i := 0; i < 3; i++ {
		leader := beacon.PlayerID(fmt.Sprintf("L%d", i))
		if got := l.AddReservation(party(leader, leader, leader+"b")); got != beacon.OutcomeAccepted {
			t.Fatalf("add %s = %v", leader, got)
		}
		r, _ := l.Reservation(leader)
		if used[r.TeamNum] {
			t.Fatalf("team %d assigned twice", r.TeamNum)
		}
		used[r.TeamNum] = true
	}
	if got := l.AddReservation(party("X", "X")); got != beacon.OutcomeSessionFull {
		t.Fatalf("outcome = %v, want session_full", got)
	}
}

func TestManualAssignmentHonorsRequestedTeam(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 2, TeamSize: 2, TeamAssignment: AssignManual})
	p := party("L1", "L1", "P2")
	p.TeamNum = 1
	if got := l.AddReservation(p); got != beacon.OutcomeAccepted {
		t.Fatalf("add = %v", got)
	}
	if r, _ := l.Reservation("L1"); r.TeamNum != 1 {
		t.Fatalf("team = %d, want 1", r.TeamNum)
	}
	q := party("L3", "L3")
	q.TeamNum = 1
	if got := l.AddReservation(q); got != beacon.OutcomeTeamLimitReached {
		t.Fatalf("outcome = %v, want team_limit_reached", got)
	}
	q.TeamNum = beacon.NoTeam
	if got := l.AddReservation(q); got != beacon.OutcomeAccepted {
		t.Fatalf("unassigned outcome = %v, want accepted", got)
	}
}

func TestPoliciesRefuseBeforeCapacity(t *testing.T) {
	policy, err := NewPolicy("ban_list,party_size", []string{"cheater"}, 2)
	if err != nil {
		t.Fatalf("NewPolicy error = %v", err)
	}
	if policy.Name() != "ban_list+party_size" {
		t.Fatalf("policy name = %q", policy.Name())
	}
	l := newLedger(t, Config{TeamCount: 1, TeamSize: 4}, WithPolicy(policy))

	if got := l.AddReservation(party("L1", "L1", "cheater")); got != beacon.OutcomeDeniedBanned {
		t.Fatalf("banned = %v, want denied_banned", got)
	}
	if got := l.AddReservation(party("L1", "L1", "P2", "P3")); got != beacon.OutcomeIncorrectPlayerCount {
		t.Fatalf("oversized = %v, want incorrect_player_count", got)
	}
	if got := l.AddReservation(party("L1", "L1", "P2")); got != beacon.OutcomeAccepted {
		t.Fatalf("ok = %v", got)
	}
	if got := l.UpdateReservation(party("L1", "P3")); got != beacon.OutcomeIncorrectPlayerCount {
		t.Fatalf("update past party size = %v, want incorrect_player_count", got)
	}

	if _, err := NewPolicy("vip_only", nil, 0); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("unknown policy error = %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{TeamCount: 2, TeamSize: 0},
		{TeamCount: 2, TeamSize: 2, MaxReservations: 5},
		{TeamCount: 1, TeamSize: 2, ForceTeam: -1},
		{TeamCount: 1, TeamSize: 2, TeamAssignment: "sideways"},
	}
	for _, cfg := range cases {
		if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("New(%+v) error = %v, want ErrInvalidConfig", cfg, err)
		}
	}
	l, err := New(Config{TeamCount: 2, TeamSize: 3})
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	if l.Config().MaxReservations != 6 || l.Config().TeamAssignment != AssignSmallest {
		t.Fatalf("defaults not applied: %+v", l.Config())
	}
}

func TestPresenceBookkeeping(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 1, TeamSize: 4})
	l.AddReservation(party("L1", "L1", "P2"))

	if !l.IsPendingJoin("L1") || !l.IsPendingJoin("P2") {
		t.Fatal("accepted members should be pending")
	}
	if got := l.AddElapsed("P2", 3*time.Second); got != 3*time.Second {
		t.Fatalf("elapsed = %v", got)
	}
	if got := l.AddElapsed("P2", 2*time.Second); got != 5*time.Second {
		t.Fatalf("elapsed = %v", got)
	}
	l.MarkPlayerSeen("P2")
	if l.IsPendingJoin("P2") {
		t.Fatal("seen player still pending")
	}
	for _, ps := range l.Players() {
		if ps.PlayerID == "P2" && (ps.Elapsed != 0 || ps.PendingJoin || ps.LeaderID != "L1") {
			t.Fatalf("unexpected status %+v", ps)
		}
	}
	if got := l.AddElapsed("ghost", time.Second); got != 0 {
		t.Fatalf("unknown player elapsed = %v", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 1, TeamSize: 4})
	l.AddReservation(party("L1", "L1", "P2"))
	c := l.Clone()
	if diff := cmp.Diff(l.Reservations(), c.Reservations()); diff != "" {
		t.Fatalf("clone differs (-orig +clone):\n%s", diff)
	}
	c.RemovePlayer("P2")
	c.AddElapsed("L1", time.Minute)

	if l.NumConsumedReservations() != 2 || !l.IsPendingJoin("P2") {
		t.Fatal("clone mutation leaked into original")
	}
	if r, _ := l.Reservation("L1"); r.Players[0].ElapsedTime != 0 {
		t.Fatal("clone elapsed leaked into original")
	}
}

func TestApplyDispatchesByKind(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 1, TeamSize: 4})
	if got := l.Apply(beacon.Request{Kind: beacon.RequestReserve, Reservation: party("L1", "L1")}); got != beacon.OutcomeAccepted {
		t.Fatalf("reserve = %v", got)
	}
	if got := l.Apply(beacon.Request{Kind: beacon.RequestUpdate, Reservation: party("L1", "P2")}); got != beacon.OutcomeAccepted {
		t.Fatalf("update = %v", got)
	}
	if got := l.Apply(beacon.Request{}); got != beacon.OutcomeMalformedRequest {
		t.Fatalf("none = %v", got)
	}
}

func TestApplyCancelNeverUndoesAcceptedReservation(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 1, TeamSize: 4})
	if got := l.Apply(beacon.Request{Kind: beacon.RequestReserve, Reservation: party("L1", "L1", "P2")}); got != beacon.OutcomeAccepted {
		t.Fatalf("reserve = %v, want accepted", got)
	}
	before := l.Reservations()

	if got := l.Apply(beacon.Request{Kind: beacon.RequestCancel, LeaderID: "L1"}); got != beacon.OutcomeAccepted {
		t.Fatalf("cancel after acceptance = %v, want accepted", got)
	}
	if got := l.NumConsumedReservations(); got != 2 {
		t.Fatalf("consumed = %d, want 2", got)
	}
	if diff := cmp.Diff(before, l.Reservations()); diff != "" {
		t.Fatalf("cancel mutated the ledger (-before +after):\n%s", diff)
	}
	if got := l.Apply(beacon.Request{Kind: beacon.RequestCancel, LeaderID: "L9"}); got != beacon.OutcomeCanceled {
		t.Fatalf("cancel without party = %v, want canceled", got)
	}
}

func TestStrictInvariantViolationPanics(t *testing.T) {
	l := newLedger(t, Config{TeamCount: 1, TeamSize: 4})
	l.AddReservation(party("L1", "L1"))
	l.consumed = 3

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	l.assertInvariants("test")
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for _, method := range []TeamAssignmentMethod{AssignSmallest, AssignBestFit, AssignRandom} {
		l := newLedger(t, Config{TeamCount: 3, TeamSize: 4, TeamAssignment: method}, WithRand(rand.New(rand.NewSource(1))))
		id := func() beacon.PlayerID { return beacon.PlayerID(fmt.Sprintf("p%d", rnd.Intn(20))) }
		for i := 0; i < 500; i++ {
			switch rnd.Intn(5) {
			case 0, 1:
				leader := id()
				p := party(leader, leader)
				for n := rnd.Intn(3); n > 0; n-- {
					p.Players = append(p.Players, beacon.PlayerReservation{PlayerID: id(), ValidationStr: "t"})
				}
				l.AddReservation(p)
			case 2:
				l.UpdateReservation(party(id(), id()))
			case 3:
				l.RemovePlayer(id())
			case 4:
				l.UpdatePartyLeader(id(), id())
			}
			if err := l.CheckInvariants(); err != nil {
				t.Fatalf("%s step %d: %v", method, i, err)
			}
		}
	}
}

func newLedger(t *testing.T, cfg Config, opts ...Option) *Ledger {
	t.Helper()
	cfg.Strict = true
	l, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New error = %v", err)
	}
	return l
}

func party(leader beacon.PlayerID, members ...beacon.PlayerID) beacon.PartyReservation {
	p := beacon.PartyReservation{LeaderID: leader, TeamNum: beacon.NoTeam}
	for _, m := range members {
		p.Players = append(p.Players, beacon.PlayerReservation{PlayerID: m, ValidationStr: "token-" + string(m)})
	}
	return p
}

package beacon

// RequestKind is the in-flight request type of a connection handle.
type RequestKind int

const (
	RequestNone RequestKind = iota
	RequestReserve
	RequestUpdate
	RequestCancel
)

func (k RequestKind) String() string {
	switch k {
	case RequestReserve:
		return "reserve"
	case RequestUpdate:
		return "update_reserve"
	case RequestCancel:
		return "cancel_reserve"
	default:
		return "none"
	}
}

// Request is a client-to-host message. Reserve and update carry a
// reservation; cancel carries only the leader id.
type Request struct {
	Kind        RequestKind
	RequestID   string
	SessionID   string
	Reservation PartyReservation
	LeaderID    PlayerID
}

// Leader returns the party leader the request is about.
func (r Request) Leader() PlayerID {
	if r.Kind == RequestCancel {
		return r.LeaderID
	}
	return r.Reservation.LeaderID
}

// ResponseKind is the host-to-client message type.
type ResponseKind int

const (
	ResponseReservation ResponseKind = iota + 1
	ResponseCancel
	ResponseCountChanged
	ResponseFull
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseReservation:
		return "reservation_response"
	case ResponseCancel:
		return "cancel_response"
	case ResponseCountChanged:
		return "reservation_count_changed"
	case ResponseFull:
		return "reservations_full"
	default:
		return "unknown"
	}
}

// Response is a host-to-client message. Remaining is only meaningful for
// count-changed pushes.
type Response struct {
	Kind      ResponseKind
	RequestID string
	Outcome   Outcome
	Remaining int
}

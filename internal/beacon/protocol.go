package beacon

import (
	"encoding/json"
	"errors"
	"fmt"
)

const ProtocolVersion = "1.0"

var ErrUnknownMessage = errors.New("unknown_message_type")

type ReservationMessage struct {
	Type        string           `json:"type"`
	RequestID   string           `json:"request_id"`
	SessionID   string           `json:"session_id"`
	Reservation PartyReservation `json:"reservation"`
}

type CancelMessage struct {
	Type      string   `json:"type"`
	RequestID string   `json:"request_id"`
	LeaderID  PlayerID `json:"leader_id"`
}

type ResultMessage struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	RequestID       string  `json:"request_id,omitempty"`
	Outcome         Outcome `json:"outcome"`
}

type CountChangedMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Remaining       int    `json:"remaining"`
}

type FullMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

type envelope struct {
	Type string `json:"type"`
}

func EncodeRequest(req Request) ([]byte, error) {
	switch req.Kind {
	case RequestReserve, RequestUpdate:
		return json.Marshal(ReservationMessage{
			Type:        req.Kind.String(),
			RequestID:   req.RequestID,
			SessionID:   req.SessionID,
			Reservation: req.Reservation,
		})
	case RequestCancel:
		return json.Marshal(CancelMessage{
			Type:      req.Kind.String(),
			RequestID: req.RequestID,
			LeaderID:  req.LeaderID,
		})
	default:
		return nil, fmt.Errorf("encode request kind %d: %w", int(req.Kind), ErrUnknownMessage)
	}
}

func DecodeRequest(data []byte) (Request, error) {
	var base envelope
	if err := json.Unmarshal(data, &base); err != nil {
		return Request{}, err
	}
	switch base.Type {
	case "reserve", "update_reserve":
		var msg ReservationMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return Request{}, err
		}
		kind := RequestReserve
		if base.Type == "update_reserve" {
			kind = RequestUpdate
		}
		if msg.Reservation.Players == nil {
			msg.Reservation.Players = []PlayerReservation{}
		}
		return Request{Kind: kind, RequestID: msg.RequestID, SessionID: msg.SessionID, Reservation: msg.Reservation}, nil
	case "cancel_reserve":
		var msg CancelMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return Request{}, err
		}
		return Request{Kind: RequestCancel, RequestID: msg.RequestID, LeaderID: msg.LeaderID}, nil
	default:
		return Request{}, fmt.Errorf("decode request %q: %w", base.Type, ErrUnknownMessage)
	}
}

// PeekRequest recovers the request kind and id from a frame DecodeRequest
// refused, so the rejection can still be matched by the sender. Fields that
// do not decode are left zero.
func PeekRequest(data []byte) (RequestKind, string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return RequestNone, ""
	}
	var typ, requestID string
	_ = json.Unmarshal(fields["type"], &typ)
	_ = json.Unmarshal(fields["request_id"], &requestID)
	switch typ {
	case "reserve":
		return RequestReserve, requestID
	case "update_reserve":
		return RequestUpdate, requestID
	case "cancel_reserve":
		return RequestCancel, requestID
	default:
		return RequestNone, requestID
	}
}

func EncodeResponse(res Response) ([]byte, error) {
	switch res.Kind {
	case ResponseReservation, ResponseCancel:
		return json.Marshal(ResultMessage{
			Type:            res.Kind.String(),
			ProtocolVersion: ProtocolVersion,
			RequestID:       res.RequestID,
			Outcome:         res.Outcome,
		})
	case ResponseCountChanged:
		return json.Marshal(CountChangedMessage{
			Type:            res.Kind.String(),
			ProtocolVersion: ProtocolVersion,
			Remaining:       res.Remaining,
		})
	case ResponseFull:
		return json.Marshal(FullMessage{Type: res.Kind.String(), ProtocolVersion: ProtocolVersion})
	default:
		return nil, fmt.Errorf("encode response kind %d: %w", int(res.Kind), ErrUnknownMessage)
	}
}

func DecodeResponse(data []byte) (Response, error) {
	var base envelope
	if err := json.Unmarshal(data, &base); err != nil {
		return Response{}, err
	}
	switch base.Type {
	case "reservation_response", "cancel_response":
		var msg ResultMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return Response{}, err
		}
		kind := ResponseReservation
		if base.Type == "cancel_response" {
			kind = ResponseCancel
		}
		return Response{Kind: kind, RequestID: msg.RequestID, Outcome: msg.Outcome}, nil
	case "reservation_count_changed":
		var msg CountChangedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return Response{}, err
		}
		return Response{Kind: ResponseCountChanged, Remaining: msg.Remaining}, nil
	case "reservations_full":
		return Response{Kind: ResponseFull}, nil
	default:
		return Response{}, fmt.Errorf("decode response %q: %w", base.Type, ErrUnknownMessage)
	}
}

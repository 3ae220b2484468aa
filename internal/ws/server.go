package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"party-beacon/internal/beacon"
	"party-beacon/internal/host"
)

const (
	outboxSize   = 32
	maxFrameSize = 64 << 10
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

type Client struct {
	id   string
	conn *websocket.Conn
	send chan beacon.Response
}

// Server accepts beacon connections and bridges them onto the host loop.
type Server struct {
	host     *host.Host
	upgrader websocket.Upgrader
}

func NewServer(h *host.Host) *Server {
	return &Server{
		host:     h,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &Client{id: beacon.NewID(), conn: conn, send: make(chan beacon.Response, outboxSize)}
	if err := s.host.Attach(c.id, c.send); err != nil {
		_ = conn.Close()
		return
	}
	log.Debug().Str("conn_id", c.id).Str("remote_addr", r.RemoteAddr).Msg("beacon connection attached")

	ctx, cancel := context.WithCancel(context.Background())
	go s.writeLoop(ctx, c)
	s.readLoop(c)
	cancel()
}

func (s *Server) readLoop(c *Client) {
	defer func() {
		_ = s.host.Detach(c.id)
		_ = c.conn.Close()
		log.Debug().Str("conn_id", c.id).Msg("beacon connection detached")
	}()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		req, err := beacon.DecodeRequest(msg)
		if err != nil {
			if errors.Is(err, beacon.ErrUnknownMessage) {
				log.Debug().Err(err).Str("conn_id", c.id).Msg("ignoring beacon message")
				continue
			}
			s.reject(c, msg, err)
			continue
		}
		if err := s.host.Deliver(c.id, req); err != nil {
			return
		}
	}
}

// reject answers an undecodable frame, echoing whatever request id survived
// so the sender's pending request ends. The channel is shared with the host
// but only the write loop touches the socket.
func (s *Server) reject(c *Client, frame []byte, cause error) {
	kind, requestID := beacon.PeekRequest(frame)
	log.Warn().Err(cause).Str("conn_id", c.id).Str("request_id", requestID).Msg("malformed beacon message")
	res := beacon.Response{Kind: beacon.ResponseReservation, RequestID: requestID, Outcome: beacon.OutcomeMalformedRequest}
	if kind == beacon.RequestCancel {
		res.Kind = beacon.ResponseCancel
	}
	select {
	case c.send <- res:
	default:
	}
}

func (s *Server) writeLoop(ctx context.Context, c *Client) {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = c.conn.Close()
				return
			}
		case res := <-c.send:
			data, err := beacon.EncodeResponse(res)
			if err != nil {
				log.Error().Err(err).Str("conn_id", c.id).Msg("encode beacon response")
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}

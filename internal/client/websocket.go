package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"party-beacon/internal/beacon"
)

const writeWait = 10 * time.Second

// WSTransport speaks the beacon protocol over a gorilla websocket.
type WSTransport struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// DialWebsocket connects to a host beacon endpoint such as
// ws://host:8080/beacon.
func DialWebsocket(ctx context.Context, url string, header http.Header) (*WSTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return &WSTransport{conn: conn}, nil
}

func (t *WSTransport) Send(ctx context.Context, req beacon.Request) error {
	data, err := beacon.EncodeRequest(req)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(deadline)
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// Recv returns the next decodable host message. Unknown message types are
// skipped.
func (t *WSTransport) Recv(ctx context.Context) (beacon.Response, error) {
	for {
		if err := ctx.Err(); err != nil {
			return beacon.Response{}, err
		}
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			return beacon.Response{}, err
		}
		res, err := beacon.DecodeResponse(data)
		if err != nil {
			if errors.Is(err, beacon.ErrUnknownMessage) {
				continue
			}
			log.Warn().Err(err).Msg("undecodable beacon message")
			continue
		}
		return res, nil
	}
}

func (t *WSTransport) Close() error {
	t.writeMu.Lock()
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()
	return t.conn.Close()
}

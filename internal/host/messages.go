package host

import (
	"time"

	"party-beacon/internal/beacon"
)

// msg is everything the host loop consumes.
type msg interface{ isMsg() }

type attachMsg struct {
	connID string
	out    chan<- beacon.Response
}

type detachMsg struct {
	connID string
}

type requestMsg struct {
	connID string
	req    beacon.Request
}

type rosterMsg struct {
	roster map[beacon.PlayerID]struct{}
	dt     time.Duration
}

type callMsg struct {
	fn   func()
	done chan struct{}
}

func (attachMsg) isMsg()  {}
func (detachMsg) isMsg()  {}
func (requestMsg) isMsg() {}
func (rosterMsg) isMsg()  {}
func (callMsg) isMsg()    {}

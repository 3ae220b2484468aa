package beacon

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns a sortable identifier for connections, requests and events.
// ulid.Make is monotonic within a millisecond and safe for concurrent use.
func NewID() string {
	return ulid.Make().String()
}

// NewSessionID returns an identifier for a freshly hosted session.
func NewSessionID() string {
	return uuid.NewString()
}

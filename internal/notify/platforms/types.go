package platforms

import "context"

type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Message is a platform neutral rendering of one ledger event.
type Message struct {
	Title       string
	Content     string
	Description string
	// Color is an RGB value; Feishu maps it onto its fixed card templates.
	Color     int
	Timestamp string
	Footer    string
	Fields    []Field
	// Payload is the structured event, posted as-is by the webhook adapter.
	Payload any
}

type Adapter interface {
	Name() string
	Send(ctx context.Context, endpoint, secret string, msg Message) error
}

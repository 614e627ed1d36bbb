package domain

import "errors"

// ErrNotFound is returned by the ledger when no record exists for a
// message id. A duplicate delivery hits this while the first delivery's
// upstream call is still in flight.
var ErrNotFound = errors.New("domain: record not found")

// ConversationTurn is one persisted request/response pair. Immutable once
// written; the ledger exclusively owns the persisted sequence.
type ConversationTurn struct {
	Request  string `json:"request"`
	Response string `json:"response"`
}

// InboundMessage is one webhook delivery, decoded by the boundary layer.
// A platform retry reuses the same MessageID.
type InboundMessage struct {
	MessageID int64
	UserID    string
	TopicID   string
	Text      string
}

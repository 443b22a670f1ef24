package model

import "strings"

// MessageState describes where a message is in its lifecycle.
type MessageState string

const (
	StateReceived MessageState = "received"
	StateDraft    MessageState = "draft"
	StateSending  MessageState = "sending"
	StateUnknown  MessageState = "unknown"
)

// EncryptionState describes whether the message content is encrypted.
type EncryptionState string

const (
	EncryptionEncrypted    EncryptionState = "encrypted"
	EncryptionNotEncrypted EncryptionState = "notEncrypted"
	EncryptionUnknown      EncryptionState = "unknown"
)

// Header is a single header name with all of its values in the order
// they appeared in the message.
type Header struct {
	Name   string
	Values []string
}

// MessageSnapshot is a normalized, read-only view of one message, built
// once per decision request.
type MessageSnapshot struct {
	State      MessageState
	Encryption EncryptionState

	Subject string
	From    string

	To            []string
	CC            []string
	BCC           []string
	ReplyTo       []string
	AllRecipients []string

	// Headers keeps header order; repeated headers are grouped under the
	// first occurrence.
	Headers []Header

	// Body is the raw message text. It is empty when the message could
	// not be decoded as UTF-8.
	Body string

	// Partial is set when only the header section was fetched and Body
	// has not been loaded yet.
	Partial bool
}

// HeaderValues returns the values of the named header, matched
// case-insensitively, or nil when the header is absent.
func (s *MessageSnapshot) HeaderValues(name string) []string {
	for _, h := range s.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Values
		}
	}
	return nil
}


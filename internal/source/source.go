package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/mailbot/internal/model"
)

// AuthError indicates that authentication has failed for a mailbox server.
// It is returned by source clients when the server rejects the login.
type AuthError struct {
	Server  string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Server, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// FetchOptions controls which messages FetchMessages returns.
type FetchOptions struct {
	// Since limits the search to messages received on or after this day.
	Since time.Time

	// Limit keeps only the newest Limit messages. Zero means no limit.
	Limit int
}

// Message is one message in a watched mailbox together with the snapshot
// handed to the decision pipeline.
type Message struct {
	UID       uint32
	MessageID string
	Mailbox   string
	Date      time.Time
	Flags     []string

	Snapshot *model.MessageSnapshot
}

// Mailbox is the host side of the pipeline: it produces snapshots and
// executes decisions.
type Mailbox interface {
	// Name returns a human-readable identifier such as "user@host/INBOX".
	Name() string

	// ValidateConnection verifies credentials and connectivity.
	ValidateConnection(ctx context.Context) error

	// FetchMessages lists recent messages. Snapshots are Partial: headers
	// only, no body.
	FetchMessages(ctx context.Context, opts FetchOptions) ([]Message, error)

	// FetchMessage loads one message with its body.
	FetchMessage(ctx context.Context, uid uint32) (*Message, error)

	// Apply executes a decision against the message. Flag changes are
	// applied in order; at most one move is performed, the last one.
	Apply(ctx context.Context, uid uint32, d *model.Decision) error
}

package model

import "time"

// JournalEntry records the outcome of one decision request for one
// message. Entries are written once and never updated.
type JournalEntry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id" db:"id"`

	// MessageID is the RFC 5322 Message-ID, empty when the message had none.
	MessageID string `json:"message_id" db:"message_id"`

	// Mailbox and UID locate the message on the IMAP server.
	Mailbox string `json:"mailbox" db:"mailbox"`
	UID     uint32 `json:"uid" db:"uid"`

	Sender  string `json:"sender" db:"sender"`
	Subject string `json:"subject" db:"subject"`

	// Source is what produced the decision: "rule", "classifier" or "none".
	Source string `json:"source" db:"source"`

	// RuleName is set when Source is "rule".
	RuleName string `json:"rule_name,omitempty" db:"rule_name"`

	// Status is the terminal state: decided, rejected, failed or needs_body.
	Status string `json:"status" db:"status"`

	// Actions holds the decided actions in wire form.
	Actions []WireAction `json:"actions" db:"-"`

	// Reason is the rejection reason for rejected responses.
	Reason string `json:"reason,omitempty" db:"reason"`

	// Error holds a classifier or apply failure.
	Error string `json:"error,omitempty" db:"error"`

	// DryRun is set when the actions were recorded but not applied.
	DryRun bool `json:"dry_run" db:"dry_run"`

	// Applied is set when the actions were executed on the mailbox.
	Applied bool `json:"applied" db:"applied"`

	DecidedAt time.Time `json:"decided_at" db:"decided_at"`
}

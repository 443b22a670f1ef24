package store

import (
	"context"

	"github.com/nhle/mailbot/internal/model"
)

// DecisionFilter controls filtering and pagination for journal queries.
type DecisionFilter struct {
	Status *string // "decided", "rejected", "failed", "needs_body", or nil (all)
	Source *string // "rule", "classifier", "none", or nil (all)
	Query  *string // substring of sender or subject, case-insensitive
	Limit  int
	Offset int
}

// Journal defines the persistence interface for decision outcomes.
type Journal interface {
	// RecordDecision inserts a journal entry. An empty ID is replaced by a
	// new UUID and a zero DecidedAt by the current time.
	RecordDecision(ctx context.Context, e model.JournalEntry) (model.JournalEntry, error)

	// HasMessage reports whether a final outcome (decided or rejected) was
	// already recorded for the message. Messages are matched by Message-ID
	// when it is known and by mailbox and UID otherwise.
	HasMessage(ctx context.Context, mailbox, messageID string, uid uint32) (bool, error)

	// ListDecisions returns entries, newest first.
	ListDecisions(ctx context.Context, filter DecisionFilter) ([]model.JournalEntry, error)

	// CountByStatus returns the number of entries per status.
	CountByStatus(ctx context.Context) (map[string]int, error)

	Close() error
}

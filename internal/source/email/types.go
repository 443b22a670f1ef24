package email

import (
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mailbot/internal/model"
)

// Config holds the IMAP account settings.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool

	// Mailbox is the folder that is scanned, INBOX by default.
	Mailbox string

	// MaxBodyBytes cuts message bodies. Zero keeps them whole.
	MaxBodyBytes int

	ArchiveFolders []string
	TrashFolders   []string
	JunkFolders    []string
}

// Envelope holds the parsed envelope data from an IMAP message.
type Envelope struct {
	MessageID string
	Subject   string
	Date      time.Time
	Flags     []string // \Seen, \Flagged, \Draft, keywords
	UID       uint32
}

// storeOp is one STORE command: add or remove a set of flags.
type storeOp struct {
	Op    imap.StoreFlagsOp
	Flags []imap.Flag
}

// applyPlan is a decision translated into IMAP commands.
type applyPlan struct {
	stores []storeOp

	// move is the final MOVE, empty for none.
	move model.ActionKind
}

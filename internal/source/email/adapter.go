package email

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/source"
)

// Adapter implements source.Mailbox for an IMAP account.
type Adapter struct {
	imapClient *IMAPClient
	cfg        Config
	logger     zerolog.Logger
}

var _ source.Mailbox = (*Adapter)(nil)

// NewAdapter creates a new IMAP mailbox adapter.
func NewAdapter(cfg Config, logger zerolog.Logger) *Adapter {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Port == "" {
		cfg.Port = "993"
	}
	logger = logger.With().
		Str("module", "imap").
		Str("mailbox", cfg.Mailbox).
		Logger()
	return &Adapter{
		imapClient: NewIMAPClient(cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.TLS, logger),
		cfg:        cfg,
		logger:     logger,
	}
}

// Name returns "user@host/mailbox".
func (a *Adapter) Name() string {
	return fmt.Sprintf("%s@%s/%s", a.cfg.Username, a.cfg.Host, a.cfg.Mailbox)
}

// ValidateConnection verifies IMAP credentials by connecting,
// authenticating, and selecting the watched mailbox.
func (a *Adapter) ValidateConnection(ctx context.Context) error {
	if err := a.imapClient.Ping(ctx, a.cfg.Mailbox); err != nil {
		return fmt.Errorf("validating IMAP connection: %w", err)
	}
	return nil
}

// FetchMessages lists recent messages with header-only snapshots.
// Messages whose header cannot be parsed are skipped and logged.
func (a *Adapter) FetchMessages(
	ctx context.Context,
	opts source.FetchOptions,
) ([]source.Message, error) {
	envelopes, headers, err := a.imapClient.FetchHeaders(ctx, a.cfg.Mailbox, opts.Since, opts.Limit)
	if err != nil {
		return nil, err
	}

	messages := make([]source.Message, 0, len(envelopes))
	for i, env := range envelopes {
		snap, err := SnapshotFromHeader(headers[i], StateFromFlags(env.Flags, a.cfg.Mailbox))
		if err != nil {
			a.logger.Warn().Err(err).Uint32("uid", env.UID).Msg("Skipping message with unreadable header")
			continue
		}
		messages = append(messages, a.message(env, snap))
	}

	a.logger.Debug().Int("count", len(messages)).Msg("Fetched message headers")
	return messages, nil
}

// FetchMessage loads the full message, cutting the body to the configured
// size.
func (a *Adapter) FetchMessage(ctx context.Context, uid uint32) (*source.Message, error) {
	env, raw, err := a.imapClient.FetchRaw(ctx, a.cfg.Mailbox, uid)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("message UID %d has no body", uid)
	}

	snap, err := SnapshotFromRaw(raw, StateFromFlags(env.Flags, a.cfg.Mailbox))
	if err != nil {
		return nil, fmt.Errorf("parsing message UID %d: %w", uid, err)
	}
	TruncateBody(snap, a.cfg.MaxBodyBytes)

	msg := a.message(*env, snap)
	return &msg, nil
}

// Apply executes d: flag and keyword changes in order, then the last
// requested move.
func (a *Adapter) Apply(ctx context.Context, uid uint32, d *model.Decision) error {
	p := planDecision(d)
	if len(p.stores) == 0 && p.move == "" {
		return nil
	}

	if err := a.imapClient.Execute(ctx, a.cfg.Mailbox, uid, p, a.folders(p.move)); err != nil {
		return fmt.Errorf("applying %s to UID %d: %w", d, uid, err)
	}

	a.logger.Info().Uint32("uid", uid).Stringer("decision", d).Msg("Applied decision")
	return nil
}

func (a *Adapter) folders(kind model.ActionKind) []string {
	switch kind {
	case model.ActionMoveToArchive:
		return a.cfg.ArchiveFolders
	case model.ActionMoveToTrash:
		return a.cfg.TrashFolders
	case model.ActionMoveToJunk:
		return a.cfg.JunkFolders
	}
	return nil
}

func (a *Adapter) message(env Envelope, snap *model.MessageSnapshot) source.Message {
	return source.Message{
		UID:       env.UID,
		MessageID: env.MessageID,
		Mailbox:   a.cfg.Mailbox,
		Date:      env.Date,
		Flags:     env.Flags,
		Snapshot:  snap,
	}
}

// ConfigFromModel converts the mailbox section of the app config.
func ConfigFromModel(m model.MailboxConfig, password string) Config {
	port := ""
	if m.Port > 0 {
		port = strconv.Itoa(m.Port)
	}
	return Config{
		Host:           m.Host,
		Port:           port,
		Username:       m.Username,
		Password:       password,
		TLS:            m.TLS,
		Mailbox:        m.Mailbox,
		MaxBodyBytes:   m.MaxBodyBytes,
		ArchiveFolders: m.ArchiveFolders,
		TrashFolders:   m.TrashFolders,
		JunkFolders:    m.JunkFolders,
	}
}

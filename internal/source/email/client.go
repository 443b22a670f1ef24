package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/rs/zerolog"

	"github.com/nhle/mailbot/internal/source"
)

// IMAPClient wraps go-imap v2 for connecting to and querying IMAP servers.
// Every operation opens its own connection.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
	logger   zerolog.Logger
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	host, port, username, password string, tls bool, logger zerolog.Logger,
) *IMAPClient {
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
		logger:   logger,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client.
func (c *IMAPClient) Connect(
	ctx context.Context,
) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &source.AuthError{
			Server: addr,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, nil
}

// session connects, selects mailbox and runs fn. The connection is closed
// when ctx is cancelled, which makes pending commands fail.
func (c *IMAPClient) session(
	ctx context.Context,
	mailbox string,
	fn func(client *imapclient.Client) error,
) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	if err := fn(client); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ctxErr, err)
		}
		return err
	}
	return nil
}

// skipUnreadable logs a fetched message whose data could not be read. Its
// UID is part of that data, so only the sequence number is known.
func (c *IMAPClient) skipUnreadable(seq uint32, err error) {
	c.logger.Warn().Err(err).Uint32("seq", seq).Msg("Skipping message with unreadable fetch data")
}

// Ping connects and selects mailbox.
func (c *IMAPClient) Ping(ctx context.Context, mailbox string) error {
	return c.session(ctx, mailbox, func(*imapclient.Client) error { return nil })
}

// FetchHeaders searches mailbox for messages received since the given day,
// keeps the newest limit of them, and returns their envelopes with the raw
// header block of each.
func (c *IMAPClient) FetchHeaders(
	ctx context.Context, mailbox string, since time.Time, limit int,
) ([]Envelope, [][]byte, error) {
	var envelopes []Envelope
	var headers [][]byte

	err := c.session(ctx, mailbox, func(client *imapclient.Client) error {
		criteria := &imap.SearchCriteria{}
		if !since.IsZero() {
			criteria.Since = since
		}

		searchData, err := client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return fmt.Errorf("searching messages: %w", err)
		}

		uids := searchData.AllUIDs()
		if len(uids) == 0 {
			return nil
		}

		// Limit the number of UIDs to fetch (take most recent)
		if limit > 0 && len(uids) > limit {
			uids = uids[len(uids)-limit:]
		}

		headerSection := &imap.FetchItemBodySection{
			Specifier: imap.PartSpecifierHeader,
			Peek:      true,
		}
		fetchOpts := &imap.FetchOptions{
			Envelope:    true,
			Flags:       true,
			UID:         true,
			BodySection: []*imap.FetchItemBodySection{headerSection},
		}

		fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
		defer fetchCmd.Close()

		for {
			msg := fetchCmd.Next()
			if msg == nil {
				break
			}

			buf, err := msg.Collect()
			if err != nil {
				c.skipUnreadable(msg.SeqNum, err)
				continue
			}

			envelopes = append(envelopes, envelopeFromBuffer(buf))
			headers = append(headers, buf.FindBodySection(headerSection))
		}

		if err := fetchCmd.Close(); err != nil {
			return fmt.Errorf("fetching headers: %w", err)
		}
		return nil
	})

	return envelopes, headers, err
}

// FetchRaw fetches the full RFC 822 message for uid without setting \Seen.
func (c *IMAPClient) FetchRaw(
	ctx context.Context, mailbox string, uid uint32,
) (*Envelope, []byte, error) {
	var env Envelope
	var raw []byte

	err := c.session(ctx, mailbox, func(client *imapclient.Client) error {
		bodySection := &imap.FetchItemBodySection{Peek: true}
		fetchOpts := &imap.FetchOptions{
			Envelope:    true,
			Flags:       true,
			UID:         true,
			BodySection: []*imap.FetchItemBodySection{bodySection},
		}

		fetchCmd := client.Fetch(imap.UIDSetNum(imap.UID(uid)), fetchOpts)
		defer fetchCmd.Close()

		msg := fetchCmd.Next()
		if msg == nil {
			return fmt.Errorf("message UID %d not found", uid)
		}

		buf, err := msg.Collect()
		if err != nil {
			return fmt.Errorf("collecting message data: %w", err)
		}

		env = envelopeFromBuffer(buf)
		raw = buf.FindBodySection(bodySection)

		if err := fetchCmd.Close(); err != nil {
			return fmt.Errorf("closing fetch: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &env, raw, nil
}

// Execute runs the STORE commands of p in order, then the move, if any,
// trying each folder candidate until one succeeds.
func (c *IMAPClient) Execute(
	ctx context.Context,
	mailbox string,
	uid uint32,
	p applyPlan,
	folders []string,
) error {
	return c.session(ctx, mailbox, func(client *imapclient.Client) error {
		uidSet := imap.UIDSetNum(imap.UID(uid))

		for _, op := range p.stores {
			storeCmd := client.Store(uidSet, &imap.StoreFlags{
				Op:     op.Op,
				Silent: true,
				Flags:  op.Flags,
			}, nil)
			if err := storeCmd.Close(); err != nil {
				return fmt.Errorf("storing flags %v: %w", op.Flags, err)
			}
		}

		if p.move == "" {
			return nil
		}

		if len(folders) == 0 {
			return fmt.Errorf("%s: no folders configured", p.move)
		}

		var errs []error
		for _, folder := range folders {
			_, err := client.Move(uidSet, folder).Wait()
			if err == nil {
				return nil
			}
			errs = append(errs, fmt.Errorf("%s: %w", folder, err))
		}
		return fmt.Errorf("%s: no folder accepted the message: %w", p.move, errors.Join(errs...))
	})
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date
	}

	for _, flag := range buf.Flags {
		env.Flags = append(env.Flags, string(flag))
	}

	return env
}

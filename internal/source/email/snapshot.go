package email

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"

	"github.com/nhle/mailbot/internal/model"
)

// SnapshotFromRaw builds a full snapshot from an RFC 5322 message. The
// whole raw message becomes the body; it is left empty when it is not
// valid UTF-8.
func SnapshotFromRaw(raw []byte, state model.MessageState) (*model.MessageSnapshot, error) {
	s, err := SnapshotFromHeader(raw, state)
	if err != nil {
		return nil, err
	}
	s.Partial = false
	if utf8.Valid(raw) {
		s.Body = string(raw)
	}
	return s, nil
}

// SnapshotFromHeader builds a partial snapshot from a header block (or a
// whole message, of which only the header is read).
func SnapshotFromHeader(raw []byte, state model.MessageState) (*model.MessageSnapshot, error) {
	th, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return nil, fmt.Errorf("reading message header: %w", err)
	}
	h := mail.Header{Header: message.Header{Header: th}}

	if state == "" {
		state = model.StateReceived
	}
	s := &model.MessageSnapshot{
		State:      state,
		Encryption: encryptionState(h),
		Headers:    orderedHeaders(h),
		Partial:    true,
	}

	s.Subject, err = h.Subject()
	if err != nil {
		s.Subject = h.Get("Subject")
	}

	s.From = firstAddress(h, "From")
	s.To = addressList(h, "To")
	s.CC = addressList(h, "Cc")
	s.BCC = addressList(h, "Bcc")
	s.ReplyTo = addressList(h, "Reply-To")

	s.AllRecipients = make([]string, 0, len(s.To)+len(s.CC)+len(s.BCC))
	s.AllRecipients = append(s.AllRecipients, s.To...)
	s.AllRecipients = append(s.AllRecipients, s.CC...)
	s.AllRecipients = append(s.AllRecipients, s.BCC...)

	return s, nil
}

// TruncateBody cuts the body to at most max bytes on a rune boundary.
// A max of zero or less leaves the body unchanged.
func TruncateBody(s *model.MessageSnapshot, max int) {
	if max <= 0 || len(s.Body) <= max {
		return
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s.Body[cut]) {
		cut--
	}
	s.Body = s.Body[:cut]
}

// StateFromFlags derives the message state from IMAP flags and the
// mailbox it lives in.
func StateFromFlags(flags []string, mailbox string) model.MessageState {
	for _, f := range flags {
		if strings.EqualFold(f, `\Draft`) {
			return model.StateDraft
		}
	}
	if strings.Contains(strings.ToLower(mailbox), "draft") {
		return model.StateDraft
	}
	return model.StateReceived
}

func orderedHeaders(h mail.Header) []model.Header {
	var out []model.Header
	index := make(map[string]int)

	fields := h.Fields()
	for fields.Next() {
		value, err := fields.Text()
		if err != nil {
			value = fields.Value()
		}
		key := strings.ToLower(fields.Key())
		if i, ok := index[key]; ok {
			out[i].Values = append(out[i].Values, value)
			continue
		}
		index[key] = len(out)
		out = append(out, model.Header{Name: fields.Key(), Values: []string{value}})
	}
	return out
}

func encryptionState(h mail.Header) model.EncryptionState {
	if !h.Has("Content-Type") {
		return model.EncryptionNotEncrypted
	}
	mediaType, _, err := h.ContentType()
	if err != nil {
		return model.EncryptionUnknown
	}
	switch mediaType {
	case "multipart/encrypted", "application/pkcs7-mime", "application/x-pkcs7-mime":
		return model.EncryptionEncrypted
	default:
		return model.EncryptionNotEncrypted
	}
}

// formatAddress renders a as "Name <address>", quoting the decoded name
// when it contains RFC 5322 specials so the result parses back.
func formatAddress(a *mail.Address) string {
	if a.Name == "" {
		return a.Address
	}
	name := a.Name
	if strings.ContainsAny(name, addressSpecials) {
		name = `"` + quoteEscaper.Replace(name) + `"`
	}
	return name + " <" + a.Address + ">"
}

const addressSpecials = `()<>[]:;@\,."`

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func addressList(h mail.Header, key string) []string {
	addrs, err := h.AddressList(key)
	if err != nil {
		if v := strings.TrimSpace(h.Get(key)); v != "" {
			return []string{v}
		}
		return []string{}
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, formatAddress(a))
	}
	return out
}

func firstAddress(h mail.Header, key string) string {
	addrs, err := h.AddressList(key)
	if err != nil || len(addrs) == 0 {
		return strings.TrimSpace(h.Get(key))
	}
	return formatAddress(addrs[0])
}

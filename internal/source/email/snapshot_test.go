package email

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/rules"
)

const sampleMessage = "From: \"Le Bistro\" <billing@restaurant.com>\r\n" +
	"To: me@example.com, Other <other@example.com>\r\n" +
	"Cc: cc@example.com\r\n" +
	"Reply-To: noreply@restaurant.com\r\n" +
	"Subject: =?UTF-8?B?WW91ciByZWNlaXB0?=\r\n" +
	"Received: from a.example\r\n" +
	"Received: from b.example\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Thanks for dining with us.\r\n"

func TestSnapshotFromRaw(t *testing.T) {
	s, err := SnapshotFromRaw([]byte(sampleMessage), model.StateReceived)
	require.NoError(t, err)

	assert.False(t, s.Partial)
	assert.Equal(t, model.StateReceived, s.State)
	assert.Equal(t, model.EncryptionNotEncrypted, s.Encryption)
	assert.Equal(t, "Your receipt", s.Subject)
	assert.Equal(t, "Le Bistro <billing@restaurant.com>", s.From)
	assert.Equal(t, []string{"me@example.com", "Other <other@example.com>"}, s.To)
	assert.Equal(t, []string{"cc@example.com"}, s.CC)
	assert.Empty(t, s.BCC)
	assert.Equal(t, []string{"noreply@restaurant.com"}, s.ReplyTo)
	assert.Equal(t, []string{"me@example.com", "Other <other@example.com>", "cc@example.com"}, s.AllRecipients)
	assert.Equal(t, sampleMessage, s.Body)

	assert.Equal(t, []string{"from a.example", "from b.example"}, s.HeaderValues("received"))
	names := make([]string, len(s.Headers))
	for i, h := range s.Headers {
		names[i] = h.Name
	}
	assert.Equal(t, []string{"From", "To", "Cc", "Reply-To", "Subject", "Received", "Content-Type"}, names)
}

func TestSnapshotFromHeaderIsPartial(t *testing.T) {
	header := sampleMessage[:strings.Index(sampleMessage, "\r\n\r\n")+4]
	s, err := SnapshotFromHeader([]byte(header), "")
	require.NoError(t, err)
	assert.True(t, s.Partial)
	assert.Empty(t, s.Body)
	assert.Equal(t, model.StateReceived, s.State)
	assert.Equal(t, "Your receipt", s.Subject)
}

func TestSnapshotInvalidUTF8BodyIsEmpty(t *testing.T) {
	raw := "From: a@example.com\r\nSubject: hi\r\n\r\n\xff\xfe binary"
	s, err := SnapshotFromRaw([]byte(raw), model.StateReceived)
	require.NoError(t, err)
	assert.Empty(t, s.Body)
	assert.Equal(t, "hi", s.Subject)
}

func TestSnapshotEncryption(t *testing.T) {
	testCases := []struct {
		name        string
		contentType string
		want        model.EncryptionState
	}{
		{name: "pgp", contentType: "multipart/encrypted; protocol=\"application/pgp-encrypted\"; boundary=x", want: model.EncryptionEncrypted},
		{name: "smime", contentType: "application/pkcs7-mime; smime-type=enveloped-data", want: model.EncryptionEncrypted},
		{name: "signed only", contentType: "multipart/signed; boundary=x", want: model.EncryptionNotEncrypted},
		{name: "garbage", contentType: ";;;", want: model.EncryptionUnknown},
		{name: "missing"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw := "From: a@example.com\r\n"
			want := tc.want
			if tc.contentType != "" {
				raw += "Content-Type: " + tc.contentType + "\r\n"
			} else {
				want = model.EncryptionNotEncrypted
			}
			raw += "\r\nbody"
			s, err := SnapshotFromRaw([]byte(raw), model.StateReceived)
			require.NoError(t, err)
			assert.Equal(t, want, s.Encryption)
		})
	}
}

func TestSnapshotUnparseableFromKeepsRawText(t *testing.T) {
	raw := "From: not an address\r\n\r\nbody"
	s, err := SnapshotFromRaw([]byte(raw), model.StateReceived)
	require.NoError(t, err)
	assert.Equal(t, "not an address", s.From)
}

func TestTruncateBody(t *testing.T) {
	s := &model.MessageSnapshot{Body: "héllo"}
	TruncateBody(s, 2)
	assert.Equal(t, "h", s.Body, "cut never splits a rune")

	s.Body = "hello"
	TruncateBody(s, 0)
	assert.Equal(t, "hello", s.Body)

	TruncateBody(s, 10)
	assert.Equal(t, "hello", s.Body)
}

func TestStateFromFlags(t *testing.T) {
	assert.Equal(t, model.StateDraft, StateFromFlags([]string{`\Seen`, `\Draft`}, "INBOX"))
	assert.Equal(t, model.StateDraft, StateFromFlags(nil, "[Gmail]/Drafts"))
	assert.Equal(t, model.StateReceived, StateFromFlags([]string{`\Seen`}, "INBOX"))
}

func TestSnapshotFromQuotesDisplayName(t *testing.T) {
	engine, err := rules.New([]rules.Rule{{
		Name:           "restaurant",
		SenderContains: "restaurant.com",
		Actions:        []model.Action{model.MarkAsRead()},
	}})
	require.NoError(t, err)

	testCases := []struct {
		name   string
		header string
		from   string
	}{
		{
			name:   "comma in name",
			header: `"Doe, John" <billing@restaurant.com>`,
			from:   `"Doe, John" <billing@restaurant.com>`,
		},
		{
			name:   "address as name",
			header: `"billing@restaurant.com" <billing@restaurant.com>`,
			from:   `"billing@restaurant.com" <billing@restaurant.com>`,
		},
		{
			name:   "escaped quote in name",
			header: `"The \"Best\" Bistro" <billing@restaurant.com>`,
			from:   `"The \"Best\" Bistro" <billing@restaurant.com>`,
		},
		{
			name:   "plain name",
			header: `Billing <billing@restaurant.com>`,
			from:   `Billing <billing@restaurant.com>`,
		},
		{
			name:   "encoded word",
			header: `=?UTF-8?Q?Caf=C3=A9?= <billing@restaurant.com>`,
			from:   `Café <billing@restaurant.com>`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw := "From: " + tc.header + "\r\nSubject: receipt\r\n\r\nbody\r\n"
			s, err := SnapshotFromRaw([]byte(raw), model.StateReceived)
			require.NoError(t, err)
			assert.Equal(t, tc.from, s.From)

			rule, ok := engine.Match(s.From)
			assert.True(t, ok, "rule should match %q", s.From)
			assert.Equal(t, "restaurant", rule.Name)
		})
	}
}

package journal_test

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbot/internal/keys"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/ui/journal"
	"github.com/nhle/mailbot/tests/testutil"
)

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, cmd tea.Cmd) journal.EntriesLoadedMsg {
	t.Helper()
	require.NotNil(t, cmd)
	msg, ok := cmd().(journal.EntriesLoadedMsg)
	require.True(t, ok, "expected EntriesLoadedMsg")
	require.NoError(t, msg.Err)
	return msg
}

func TestStatusFilterKeys(t *testing.T) {
	j := testutil.NewTestJournal(t)
	ctx := context.Background()
	for _, e := range []model.JournalEntry{
		{MessageID: "<a@x>", Mailbox: "INBOX", UID: 1, Source: "rule", Status: "decided"},
		{MessageID: "<b@x>", Mailbox: "INBOX", UID: 2, Source: "classifier", Status: "rejected"},
		{MessageID: "<c@x>", Mailbox: "INBOX", UID: 3, Source: "classifier", Status: "failed"},
	} {
		_, err := j.RecordDecision(ctx, e)
		require.NoError(t, err)
	}

	m := journal.New(j, keys.DefaultKeyMap(), 80, 24)
	assert.Len(t, loaded(t, m.Init()).Entries, 3)

	m, cmd := m.Update(runeKey("1"))
	assert.Equal(t, "decided", m.StatusFilter())
	msg := loaded(t, cmd)
	require.Len(t, msg.Entries, 1)
	assert.Equal(t, "<a@x>", msg.Entries[0].MessageID)

	m, cmd = m.Update(runeKey("3"))
	assert.Equal(t, "failed", m.StatusFilter())
	assert.Len(t, loaded(t, cmd).Entries, 1)

	// Pressing the active filter again clears it.
	m, cmd = m.Update(runeKey("3"))
	assert.Empty(t, m.StatusFilter())
	assert.Len(t, loaded(t, cmd).Entries, 3)

	cmd = m.SetStatusFilter("rejected")
	assert.Equal(t, "rejected", m.StatusFilter())
	assert.Len(t, loaded(t, cmd).Entries, 1)
}

func TestSearchMode(t *testing.T) {
	m := journal.New(testutil.NewTestJournal(t), keys.DefaultKeyMap(), 80, 24)

	m, _ = m.Update(runeKey("/"))
	assert.True(t, m.Searching())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.Searching())
}

func TestActionSummary(t *testing.T) {
	assert.Equal(t, "-", journal.ActionSummary(nil))
	assert.Equal(t, "markAsRead flag(red) moveToArchive", journal.ActionSummary([]model.WireAction{
		{Action: "markAsRead"},
		{Action: "flag", Parameters: map[string]string{"color": "red"}},
		{Action: "moveToArchive"},
	}))
}

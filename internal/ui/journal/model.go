package journal

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailbot/internal/keys"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/store"
	"github.com/nhle/mailbot/internal/theme"
)

// pageSize caps how many entries are loaded into the list.
const pageSize = 500

// EntriesLoadedMsg is sent when entries have been loaded from the journal.
type EntriesLoadedMsg struct {
	Entries []model.JournalEntry
	Err     error
}

// SelectedEntryMsg is sent when the user opens an entry.
type SelectedEntryMsg struct {
	Entry model.JournalEntry
}

// Model is the journal list view.
type Model struct {
	list        list.Model
	journal     store.Journal
	keys        *keys.KeyMap
	filter      store.DecisionFilter
	searchMode  bool
	searchInput textinput.Model
	err         error
	width       int
	height      int
}

// New creates a new journal list model.
func New(j store.Journal, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, EntryDelegate{}, width, height-2)
	l.Title = "Decisions"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search sender or subject..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		journal:     j,
		keys:        k,
		filter:      store.DecisionFilter{Limit: pageSize},
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Init returns a command that loads the initial set of entries.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// Update handles messages for the journal list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EntriesLoadedMsg:
		m.err = msg.Err
		items := make([]list.Item, len(msg.Entries))
		for i, e := range msg.Entries {
			items[i] = EntryItem{Entry: e}
		}
		return m, m.list.SetItems(items)

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// StatusFilter returns the active status filter, empty for all.
func (m Model) StatusFilter() string {
	if m.filter.Status == nil {
		return ""
	}
	return *m.filter.Status
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		query := m.searchInput.Value()
		if query != "" {
			m.filter.Query = &query
		} else {
			m.filter.Query = nil
		}
		return m, m.Load()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.filter.Query = nil
		return m, m.Load()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(EntryItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedEntryMsg{Entry: item.Entry}
		}

	case key.Matches(msg, m.keys.Search):
		m.searchMode = true
		m.searchInput.Reset()
		return m, m.searchInput.Focus()

	case key.Matches(msg, m.keys.FilterDecided):
		m.setStatusFilter("decided")
		return m, m.Load()

	case key.Matches(msg, m.keys.FilterRejected):
		m.setStatusFilter("rejected")
		return m, m.Load()

	case key.Matches(msg, m.keys.FilterFailed):
		m.setStatusFilter("failed")
		return m, m.Load()

	case key.Matches(msg, m.keys.FilterAll):
		m.filter.Status = nil
		return m, m.Load()
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// setStatusFilter toggles a status filter; selecting the active one
// clears it.
func (m *Model) setStatusFilter(status string) {
	if m.filter.Status != nil && *m.filter.Status == status {
		m.filter.Status = nil
		return
	}
	m.filter.Status = &status
}

// SetStatusFilter shows only entries with status, or all when empty, and
// reloads the list.
func (m *Model) SetStatusFilter(status string) tea.Cmd {
	if status == "" {
		m.filter.Status = nil
	} else {
		m.filter.Status = &status
	}
	return m.Load()
}

// View renders the journal list view.
func (m Model) View() string {
	if m.searchMode {
		searchBar := lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
		return lipgloss.JoinVertical(lipgloss.Left, searchBar, m.list.View())
	}

	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}

	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.err != nil:
		return style.Foreground(theme.ColorRed).Render("Could not read the journal:\n" + m.err.Error())
	case m.filter.Status != nil || m.filter.Query != nil:
		return style.Render("No matching decisions.\nPress 0 to clear the status filter.")
	default:
		return style.Render("No decisions yet.\n\nPress r to poll the mailbox now.")
	}
}

// Load returns a tea.Cmd that queries the journal with the current filter.
func (m Model) Load() tea.Cmd {
	filter := m.filter
	j := m.journal
	return func() tea.Msg {
		entries, err := j.ListDecisions(context.Background(), filter)
		return EntriesLoadedMsg{Entries: entries, Err: err}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}

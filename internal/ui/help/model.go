package help

import (
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailbot/internal/keys"
	"github.com/nhle/mailbot/internal/theme"
)

// statusLegend explains the journal statuses shown in the list.
var statusLegend = []struct {
	status string
	text   string
}{
	{"decided", "actions chosen by a rule or the language model"},
	{"rejected", "the model answered outside the action vocabulary"},
	{"failed", "the model or the mailbox could not be reached, retried next poll"},
	{"needs_body", "no rule matched a headers-only message, retried next poll"},
}

// Model is the help overlay: key bindings followed by a status legend.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	h.Width = width - 4
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	sectionStyle := titleStyle.MarginTop(1)

	lines := []string{
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		sectionStyle.Render("Statuses"),
	}
	for _, s := range statusLegend {
		badge := theme.StatusStyle(s.status).Width(12).Render(s.status)
		lines = append(lines, badge+theme.HelpStyle.Render(s.text))
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}

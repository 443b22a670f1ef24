package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailbot/internal/keys"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// Model is the journal entry detail view.
type Model struct {
	entry    *model.JournalEntry
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg {
			return BackMsg{}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.entry == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No decision selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.entry == nil {
		return ""
	}

	e := m.entry
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	subject := e.Subject
	if subject == "" {
		subject = "(no subject)"
	}
	sections = append(sections, titleStyle.Render(subject))

	srcBadge := theme.SourceLabelStyle(e.Source).Render(strings.ToUpper(e.Source))
	statusBadge := theme.StatusStyle(e.Status).Render(e.Status)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, srcBadge, "  ", statusBadge))
	sections = append(sections, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) {
		if value == "" {
			return
		}
		sections = append(sections, fmt.Sprintf(
			"%s %s",
			metaStyle.Render(fmt.Sprintf("%-11s", label+":")),
			valStyle.Render(value),
		))
	}

	row("From", e.Sender)
	row("Message-ID", e.MessageID)
	row("Mailbox", fmt.Sprintf("%s (UID %d)", e.Mailbox, e.UID))
	row("Rule", e.RuleName)
	if !e.DecidedAt.IsZero() {
		row("Decided", e.DecidedAt.Local().Format("2006-01-02 15:04:05"))
	}
	switch {
	case e.DryRun:
		row("Applied", "no (dry run)")
	case e.Applied:
		row("Applied", "yes")
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	sections = append(sections, headerStyle.Render(fmt.Sprintf("Actions (%d)", len(e.Actions))))

	if len(e.Actions) == 0 {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No actions"))
	}
	for i, a := range e.Actions {
		line := fmt.Sprintf("%d. %s", i+1, a.Action)
		if c, ok := a.Parameters["color"]; ok {
			line += " " + theme.FlagColorStyle(c).Render("■ "+c)
		}
		sections = append(sections, line)
	}

	if e.Reason != "" || e.Error != "" {
		sections = append(sections, "", separator, "")
		sections = append(sections, headerStyle.Render("Problem"))
		errStyle := lipgloss.NewStyle().Foreground(theme.ColorRed)
		if e.Reason != "" {
			sections = append(sections, metaStyle.Render("Reason: ")+errStyle.Render(e.Reason))
		}
		if e.Error != "" {
			sections = append(sections, errStyle.Render(e.Error))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetEntry updates the entry being displayed and re-renders the content.
func (m *Model) SetEntry(e model.JournalEntry) {
	m.entry = &e
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	if m.entry != nil {
		m.viewport.SetContent(m.renderContent())
	}
}

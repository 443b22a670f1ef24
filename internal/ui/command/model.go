package command

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailbot/internal/theme"
)

// CommandMsg is emitted when the user executes a command.
type CommandMsg string

// Command is a palette entry.
type Command struct {
	Name string
	Help string
}

// Model is the command palette view.
type Model struct {
	input    textinput.Model
	commands []Command
	width    int
	height   int
}

// New creates a command palette offering commands.
func New(commands []Command, width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:    ti,
		commands: commands,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			cmd := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if cmd == "" {
				return m, nil
			}
			return m, func() tea.Msg {
				return CommandMsg(cmd)
			}

		case "tab":
			if matches := m.Matches(); len(matches) == 1 {
				m.input.SetValue(matches[0].Name)
				m.input.CursorEnd()
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Matches returns the commands whose name starts with the current input.
func (m Model) Matches() []Command {
	prefix := strings.ToLower(strings.TrimSpace(m.input.Value()))
	var out []Command
	for _, c := range m.commands {
		if strings.HasPrefix(c.Name, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	nameStyle := lipgloss.NewStyle().Foreground(theme.ColorBlue).Width(12)

	lines := []string{titleStyle.Render("Command Palette"), m.input.View(), ""}
	for _, c := range m.Matches() {
		lines = append(lines, nameStyle.Render(c.Name)+theme.HelpStyle.Render(c.Help))
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

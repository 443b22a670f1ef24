package rules

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailbot/internal/keys"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/rules"
	"github.com/nhle/mailbot/internal/theme"
	"github.com/nhle/mailbot/internal/vocabulary"
)

// CloseMsg signals the parent to close the rules view.
type CloseMsg struct{}

// Model shows the configured sender rules and the action vocabulary.
type Model struct {
	engine   *rules.Engine
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a rules view for engine, which may be nil.
func New(engine *rules.Engine, k *keys.KeyMap, width, height int) Model {
	m := Model{
		engine:   engine,
		viewport: viewport.New(width, height),
		keys:     k,
		width:    width,
		height:   height,
	}
	m.viewport.SetContent(Render(engine))
	return m
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg { return CloseMsg{} }
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the rules view.
func (m Model) View() string {
	return lipgloss.NewStyle().Padding(0, 2).Render(m.viewport.View())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 4
	m.viewport.Height = height
}

// Render formats the rules, in evaluation order, followed by the action
// vocabulary.
func Render(engine *rules.Engine) string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	dim := lipgloss.NewStyle().Foreground(theme.ColorGray)
	needle := lipgloss.NewStyle().Foreground(theme.ColorBlue)

	b.WriteString(titleStyle.Render(fmt.Sprintf("Sender rules (%d)", engine.Len())))
	b.WriteString("\n")
	b.WriteString(dim.Render("Checked in order before the classifier; the first match wins."))
	b.WriteString("\n\n")

	if engine.Len() == 0 {
		b.WriteString(dim.Italic(true).Render("No rules configured."))
		b.WriteString("\n")
	}
	for i, r := range engine.Rules() {
		fmt.Fprintf(&b, "%2d. %s  %s %s\n", i+1, r.Name,
			dim.Render("sender contains"), needle.Render(fmt.Sprintf("%q", r.SenderContains)))
		fmt.Fprintf(&b, "    %s %s\n", dim.Render("→"), actionList(r.Actions))
	}

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Action vocabulary"))
	b.WriteString("\n\n")
	for _, s := range vocabulary.Specs() {
		b.WriteString("  • " + string(s.Kind))
		if s.RequiresParam() {
			values := make([]string, len(s.Allowed))
			for i, v := range s.Allowed {
				values[i] = theme.FlagColorStyle(v).Render(v)
			}
			fmt.Fprintf(&b, " %s %s", dim.Render(s.Param+":"), strings.Join(values, dim.Render(", ")))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func actionList(actions []model.Action) string {
	if len(actions) == 0 {
		return "(no actions)"
	}
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

package journal

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/theme"
)

// EntryItem wraps a model.JournalEntry so it can be used in a bubbles/list.
type EntryItem struct {
	Entry model.JournalEntry
}

// FilterValue returns the string used for fuzzy filtering.
func (i EntryItem) FilterValue() string { return i.Entry.Subject }

// Title returns the message subject for the list.
func (i EntryItem) Title() string { return i.Entry.Subject }

// Description returns a short summary line for the list.
func (i EntryItem) Description() string {
	parts := []string{
		i.Entry.Source,
		i.Entry.Status,
		relativeTime(i.Entry.DecidedAt),
	}
	return strings.Join(parts, " | ")
}

// EntryDelegate implements list.ItemDelegate for journal entries.
type EntryDelegate struct{}

// Height returns the number of lines each item takes.
func (d EntryDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d EntryDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d EntryDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single list item line.
func (d EntryDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(EntryItem)
	if !ok {
		return
	}
	fmt.Fprint(w, renderLine(it.Entry, index == m.Index()))
}

func renderLine(e model.JournalEntry, selected bool) string {
	srcBadge := theme.SourceLabelStyle(e.Source).Render(sourceLabel(e.Source))
	statusBadge := theme.StatusStyle(e.Status).Render(e.Status)

	subject := e.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	marker := ""
	switch {
	case e.DryRun:
		marker = lipgloss.NewStyle().Foreground(theme.ColorYellow).Render(" dry-run")
	case e.Applied:
		marker = lipgloss.NewStyle().Foreground(theme.ColorGreen).Render(" ✓")
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(e.DecidedAt))

	line := fmt.Sprintf(
		"● %s %s %s  %s%s  %s",
		srcBadge, statusBadge, subject,
		theme.HelpStyle.Render(ActionSummary(e.Actions)), marker, timeStr,
	)

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// ActionSummary renders wire actions compactly, e.g. "markAsRead flag(red)".
func ActionSummary(actions []model.WireAction) string {
	if len(actions) == 0 {
		return "-"
	}
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = a.Action
		if c, ok := a.Parameters["color"]; ok {
			parts[i] += "(" + c + ")"
		}
	}
	return strings.Join(parts, " ")
}

func sourceLabel(source string) string {
	switch source {
	case "rule":
		return "RUL"
	case "classifier":
		return "LM"
	default:
		return "---"
	}
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}

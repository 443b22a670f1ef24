package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailbot/internal/theme"
)

// Layout splits the terminal into a one-line header, the content area and
// a one-line status bar.
type Layout struct {
	Width  int
	Height int
}

// NewLayout creates a Layout for the given terminal size.
func NewLayout(width, height int) Layout {
	return Layout{Width: width, Height: height}
}

// ContentHeight is the height left for the active view.
func (l Layout) ContentHeight() int {
	return max(l.Height-2, 0)
}

var (
	dryRunBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorYellow).
			Background(theme.HeaderStyle.GetBackground()).
			Padding(0, 1)

	alertStyle = theme.StatusBarStyle.
			Foreground(theme.ColorRed).
			Bold(true)
)

// Header renders the mailbox name on the left and the poller status on
// the right. Dry-run mode is shown as a badge next to the name.
func (l Layout) Header(mailbox string, dryRun bool, status string) string {
	left := theme.HeaderStyle.Render("mailbot")
	if mailbox != "" {
		left += theme.HeaderStyle.Render(mailbox)
	}
	if dryRun {
		left += dryRunBadge.Render("DRY RUN")
	}
	right := theme.HeaderStyle.Render(status)
	return l.row(theme.HeaderStyle, left, right)
}

// StatusBar renders key hints, or an alert in red when alert is set.
func (l Layout) StatusBar(text string, alert bool) string {
	if alert {
		return l.row(theme.StatusBarStyle, alertStyle.Render(text), "")
	}
	return l.row(theme.StatusBarStyle, theme.StatusBarStyle.Render(text), "")
}

// Frame stacks header, content and status bar.
func (l Layout) Frame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().
		MaxHeight(l.ContentHeight()).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// row pads the space between left and right with the style's background
// so the bar spans the full width.
func (l Layout) row(style lipgloss.Style, left, right string) string {
	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/mailbot/internal/keys"
	"github.com/nhle/mailbot/internal/store"
	appsync "github.com/nhle/mailbot/internal/sync"
	"github.com/nhle/mailbot/internal/ui"
	"github.com/nhle/mailbot/internal/ui/command"
	configview "github.com/nhle/mailbot/internal/ui/config"
	"github.com/nhle/mailbot/internal/ui/detail"
	helpview "github.com/nhle/mailbot/internal/ui/help"
	"github.com/nhle/mailbot/internal/ui/journal"
	rulesview "github.com/nhle/mailbot/internal/ui/rules"
)

// countsMsg carries the number of journal entries per status.
type countsMsg struct {
	counts map[string]int
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewConfig
	ViewHelp
	ViewCommand
	ViewRules
)

// paletteCommands are offered by the command palette.
var paletteCommands = []command.Command{
	{Name: "poll", Help: "poll the mailbox now"},
	{Name: "rules", Help: "show rules and vocabulary"},
	{Name: "setup", Help: "edit mailbox and API settings"},
	{Name: "decided", Help: "show decided messages"},
	{Name: "rejected", Help: "show rejected responses"},
	{Name: "failed", Help: "show failures"},
	{Name: "all", Help: "clear the status filter"},
	{Name: "quit", Help: "exit"},
}

// Model is the root Bubble Tea model that manages view routing,
// layout, and access to the journal.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	journal      store.Journal
	poller       *appsync.Poller
	keys         *keys.KeyMap
	mailboxName  string
	dryRun       bool

	journalList journal.Model
	detail      detail.Model
	helpView    helpview.Model
	commandView command.Model
	rulesView   rulesview.Model
	configView  configview.Model

	ready            bool
	counts           map[string]int
	lastResult       *appsync.CycleResult
	authErrorMessage string
	statusMessage    string
}

// New creates the root model for a runtime. configPath is where the setup
// view saves settings.
func New(rt *Runtime, configPath string, logger zerolog.Logger) Model {
	k := keys.DefaultKeyMap()

	return Model{
		currentView: ViewList,
		journal:     rt.Journal,
		poller:      rt.Poller,
		keys:        k,
		mailboxName: rt.Mailbox.Name(),
		dryRun:      rt.Config.DryRun,
		journalList: journal.New(rt.Journal, k, 80, 24),
		detail:      detail.New(k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(paletteCommands, 80, 24),
		rulesView:   rulesview.New(rt.Rules, k, 80, 24),
		configView:  configview.New(rt.Config, configPath, k, logger, 80, 24),
	}
}

// NewSetup creates a root model that only shows the setup view and quits
// when it closes.
func NewSetup(cfgView configview.Model) Model {
	k := keys.DefaultKeyMap()
	return Model{
		currentView: ViewConfig,
		keys:        k,
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(paletteCommands, 80, 24),
		rulesView:   rulesview.New(nil, k, 80, 24),
		configView:  cfgView,
	}
}

// Init loads the journal and starts polling.
func (m Model) Init() tea.Cmd {
	if m.poller == nil {
		return m.configView.Init()
	}
	return tea.Batch(
		m.journalList.Init(),
		m.loadCounts(),
		m.poller.Start(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := msg.Width
		contentHeight := m.layout.ContentHeight()
		m.journalList.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.rulesView.SetSize(contentWidth, contentHeight)
		m.configView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case appsync.CycleResult:
		if msg.AuthError != nil {
			m.authErrorMessage = msg.AuthError.Message
		} else if msg.Error == nil {
			m.authErrorMessage = ""
		}
		m.lastResult = &msg
		m.statusMessage = ""

		return m, tea.Batch(
			m.journalList.Load(),
			m.loadCounts(),
			m.poller.WaitForNextResult(),
		)

	case countsMsg:
		m.counts = msg.counts
		return m, nil

	case journal.SelectedEntryMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetEntry(msg.Entry)
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case rulesview.CloseMsg:
		m.currentView = ViewList
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case configview.ConfigDoneMsg:
		if m.poller == nil {
			return m, tea.Quit
		}
		m.currentView = ViewList
		if msg.Saved {
			m.statusMessage = "Settings saved. Restart mailbot to apply them."
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if m.currentView == ViewCommand && msg.String() == "esc" {
			m.currentView = m.previousView
			return m, nil
		}
		if m.capturesKeys() {
			break
		}

		switch msg.String() {
		case "q":
			if m.currentView == ViewList {
				return m, m.quit()
			}
		case "?":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil
		case ":":
			if m.currentView == ViewCommand {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.commandView.Focus()
		case "r":
			if m.currentView == ViewList && m.poller != nil {
				m.statusMessage = "Polling..."
				return m, m.poller.Refresh()
			}
		case "v":
			if m.currentView == ViewList {
				m.previousView = m.currentView
				m.currentView = ViewRules
				return m, nil
			}
		case "c":
			if m.currentView == ViewList {
				m.previousView = m.currentView
				m.currentView = ViewConfig
				m.configView = m.configView.Reset()
				return m, m.configView.Init()
			}
		case "esc":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// capturesKeys reports whether the active view takes raw text input.
func (m Model) capturesKeys() bool {
	switch m.currentView {
	case ViewConfig, ViewCommand:
		return true
	case ViewList:
		return m.journalList.Searching()
	}
	return false
}

func (m Model) quit() tea.Cmd {
	if m.poller != nil {
		m.poller.Stop()
	}
	return tea.Quit
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewList:
		m.journalList, cmd = m.journalList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewConfig:
		m.configView, cmd = m.configView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewRules:
		m.rulesView, cmd = m.rulesView.Update(msg)
	}
	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.Header(m.mailboxName, m.dryRun, m.syncStatus())
	alert := m.authErrorMessage != "" && m.currentView == ViewList
	statusBar := m.layout.StatusBar(m.keyHints(), alert)

	return m.layout.Frame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewList:
		return m.journalList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewConfig:
		return m.configView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewRules:
		return m.rulesView.View()
	default:
		return ""
	}
}

// syncStatus describes the poller state and journal totals.
func (m Model) syncStatus() string {
	if m.poller == nil {
		return "not configured"
	}

	var state string
	switch st := m.poller.Status(); st.State {
	case appsync.SyncRunning:
		state = "polling"
	case appsync.SyncError:
		state = "⚠ unreachable"
	default:
		state = "idle"
		if !st.LastCycle.IsZero() {
			state += " since " + st.LastCycle.Format("15:04")
		}
	}

	if total := formatCounts(m.counts); total != "" {
		return state + " | " + total
	}
	return state
}

// formatCounts renders status counts in a stable order.
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	names := make([]string, 0, len(counts))
	for s := range counts {
		names = append(names, s)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, s := range names {
		parts[i] = fmt.Sprintf("%s %d", s, counts[s])
	}
	return strings.Join(parts, ", ")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	// Show auth error prominently when present.
	if m.authErrorMessage != "" && m.currentView == ViewList {
		return m.authErrorMessage
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewDetail:
		return "esc back | j/k scroll"
	case ViewConfig:
		return "enter next | esc cancel"
	case ViewRules:
		return "esc back | j/k scroll"
	default:
		if m.statusMessage != "" && m.lastResult == nil {
			return m.statusMessage
		}
		if m.lastResult != nil {
			filter := ""
			if s := m.journalList.StatusFilter(); s != "" {
				filter = " | filter: " + s
			}
			return m.lastResult.Summary() + filter
		}
		return "q quit | ? help | r poll | / search | v rules | 1-3 filter"
	}
}

// loadCounts returns a command that reads journal totals.
func (m Model) loadCounts() tea.Cmd {
	j := m.journal
	return func() tea.Msg {
		counts, err := j.CountByStatus(context.Background())
		if err != nil {
			return countsMsg{}
		}
		return countsMsg{counts: counts}
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch strings.ToLower(cmd) {
	case "poll", "refresh", "sync":
		if m.poller == nil {
			return nil
		}
		m.statusMessage = "Polling..."
		return m.poller.Refresh()
	case "rules", "vocabulary":
		m.previousView = ViewList
		m.currentView = ViewRules
		return nil
	case "setup", "config", "configure":
		m.previousView = ViewList
		m.currentView = ViewConfig
		m.configView = m.configView.Reset()
		return m.configView.Init()
	case "decided", "rejected", "failed":
		m.currentView = ViewList
		return m.journalList.SetStatusFilter(strings.ToLower(cmd))
	case "all":
		m.currentView = ViewList
		return m.journalList.SetStatusFilter("")
	case "quit", "q":
		return m.quit()
	default:
		m.statusMessage = fmt.Sprintf("Unknown command %q", cmd)
		return nil
	}
}

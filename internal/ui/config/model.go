package config

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/nhle/mailbot/internal/credential"
	"github.com/nhle/mailbot/internal/keys"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/source/email"
	"github.com/nhle/mailbot/internal/theme"
)

// ConfigMode represents the current state of the setup view.
type ConfigMode int

const (
	ModeForm           ConfigMode = iota // Editing settings
	ModeValidating                       // Testing connection
	ModeValidateResult                   // Show validation result
)

// validateTimeout bounds the IMAP login test.
const validateTimeout = 30 * time.Second

// ConfigDoneMsg signals the setup view should close.
type ConfigDoneMsg struct {
	Saved bool
}

// ValidateResultMsg carries the result of a connection validation attempt.
type ValidateResultMsg struct {
	Name string
	Err  error
}

// Saver persists credentials.
type Saver func(key, value string) error

type formBindings struct {
	imapHost string
	imapPort string
	username string
	password string
	tls      bool
	mailbox  string
	apiKey   string
	model    string
	baseURL  string
}

func bindingsFrom(cfg *model.AppConfig) *formBindings {
	return &formBindings{
		imapHost: cfg.Mailbox.Host,
		imapPort: strconv.Itoa(cfg.Mailbox.Port),
		username: cfg.Mailbox.Username,
		tls:      cfg.Mailbox.TLS,
		mailbox:  cfg.Mailbox.Mailbox,
		model:    cfg.AI.Model,
		baseURL:  cfg.AI.BaseURL,
	}
}

// Model is the Bubble Tea model for the setup form.
type Model struct {
	mode       ConfigMode
	cfg        *model.AppConfig
	configPath string
	form       *huh.Form
	saved      bool

	// Form field values (huh binds to these)
	fb *formBindings

	// Validation
	validResult string
	validError  error
	spinner     spinner.Model

	statusMsg string

	setCredential Saver
	logger        zerolog.Logger

	keys          *keys.KeyMap
	width, height int
}

// New creates a setup model pre-filled from cfg. Secrets are never
// pre-filled; leaving them empty keeps the stored value.
func New(cfg *model.AppConfig, configPath string, k *keys.KeyMap, logger zerolog.Logger, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		mode:          ModeForm,
		cfg:           cfg,
		configPath:    configPath,
		spinner:       sp,
		setCredential: credential.Set,
		logger:        logger,
		keys:          k,
		width:         width,
		height:        height,
	}
	return m.Reset()
}

// Reset returns the model with a fresh form filled from the current
// configuration.
func (m Model) Reset() Model {
	m.mode = ModeForm
	m.fb = bindingsFrom(m.cfg)
	m.validError = nil
	m.validResult = ""
	m.statusMsg = ""
	m.form = m.buildForm()
	return m
}

// WithCredentialSaver replaces the keyring writer.
func (m Model) WithCredentialSaver(s Saver) Model {
	m.setCredential = s
	return m
}

// Saved reports whether the settings were written.
func (m Model) Saved() bool {
	return m.saved
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ValidateResultMsg:
		m.mode = ModeValidateResult
		m.validResult = msg.Name
		m.validError = msg.Err
		return m, nil

	case spinner.TickMsg:
		if m.mode != ModeValidating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.mode {
		case ModeValidating:
			if key.Matches(msg, m.keys.Back) {
				return m, m.done()
			}
			return m, nil
		case ModeValidateResult:
			if msg.String() == "r" {
				m.mode = ModeValidating
				return m, tea.Batch(m.spinner.Tick, m.validate())
			}
			if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Select) {
				return m, m.done()
			}
			return m, nil
		}
	}

	if m.mode == ModeForm {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) done() tea.Cmd {
	saved := m.saved
	return func() tea.Msg { return ConfigDoneMsg{Saved: saved} }
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Description("IMAP server hostname").
				Placeholder("imap.example.com").
				Value(&m.fb.imapHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Description("IMAP server port (e.g., 993)").
				Placeholder("993").
				Value(&m.fb.imapPort).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Description("Email account username").
				Placeholder("user@example.com").
				Value(&m.fb.username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Account or app password. Leave empty to keep the stored one.").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.password),
			huh.NewConfirm().
				Title("Use TLS").
				Description("Connect with implicit TLS instead of STARTTLS").
				Affirmative("Yes").
				Negative("No").
				Value(&m.fb.tls),
			huh.NewInput().
				Title("Mailbox").
				Description("Mailbox to watch").
				Placeholder("INBOX").
				Value(&m.fb.mailbox),
		).Title("Mailbox"),
		huh.NewGroup(
			huh.NewInput().
				Title("API Key").
				Description("OpenAI-compatible API key. Leave empty to keep the stored one.").
				EchoMode(huh.EchoModePassword).
				Value(&m.fb.apiKey),
			huh.NewInput().
				Title("Model").
				Placeholder(model.DefaultAIModel).
				Value(&m.fb.model),
			huh.NewInput().
				Title("Base URL").
				Placeholder(model.DefaultAIBaseURL).
				Value(&m.fb.baseURL).
				Validate(validateOptionalURL),
		).Title("Language model"),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m.save()
	case huh.StateAborted:
		return m, m.done()
	}
	return m, cmd
}

// save stores the secrets in the keyring, writes the config file and
// starts the connection test.
func (m Model) save() (Model, tea.Cmd) {
	m.applyForm()

	if m.fb.password != "" {
		if err := m.setCredential(credential.IMAPKey(m.cfg.Mailbox.Username), m.fb.password); err != nil {
			m.statusMsg = fmt.Sprintf("Error saving IMAP password: %v", err)
			m.mode = ModeValidateResult
			m.validError = err
			return m, nil
		}
	}
	if m.fb.apiKey != "" {
		if err := m.setCredential(credential.KeyOpenAI, m.fb.apiKey); err != nil {
			m.statusMsg = fmt.Sprintf("Error saving API key: %v", err)
			m.mode = ModeValidateResult
			m.validError = err
			return m, nil
		}
	}

	if err := model.SaveConfig(m.configPath, m.cfg); err != nil {
		m.mode = ModeValidateResult
		m.validError = fmt.Errorf("saving config: %w", err)
		return m, nil
	}
	m.saved = true
	m.logger.Info().Str("path", m.configPath).Msg("Configuration saved")

	m.mode = ModeValidating
	return m, tea.Batch(m.spinner.Tick, m.validate())
}

func (m *Model) applyForm() {
	port, _ := strconv.Atoi(strings.TrimSpace(m.fb.imapPort))

	m.cfg.Mailbox.Host = strings.TrimSpace(m.fb.imapHost)
	m.cfg.Mailbox.Port = port
	m.cfg.Mailbox.Username = strings.TrimSpace(m.fb.username)
	m.cfg.Mailbox.TLS = m.fb.tls
	if mb := strings.TrimSpace(m.fb.mailbox); mb != "" {
		m.cfg.Mailbox.Mailbox = mb
	}
	if v := strings.TrimSpace(m.fb.model); v != "" {
		m.cfg.AI.Model = v
	}
	if v := strings.TrimSpace(m.fb.baseURL); v != "" {
		m.cfg.AI.BaseURL = strings.TrimRight(v, "/")
	}
}

// validate tests the IMAP login with the saved settings.
func (m Model) validate() tea.Cmd {
	mc := m.cfg.Mailbox
	password := m.fb.password
	logger := m.logger
	return func() tea.Msg {
		if password == "" {
			p, err := credential.IMAPPassword(mc.Username)
			if err != nil {
				return ValidateResultMsg{Err: fmt.Errorf("IMAP password: %w", err)}
			}
			password = p
		}

		ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
		defer cancel()

		adapter := email.NewAdapter(email.ConfigFromModel(mc, password), logger)
		err := adapter.ValidateConnection(ctx)
		return ValidateResultMsg{Name: adapter.Name(), Err: err}
	}
}

// View renders the setup UI based on the current mode.
func (m Model) View() string {
	switch m.mode {
	case ModeForm:
		return m.viewForm()
	case ModeValidating:
		return m.viewValidating()
	case ModeValidateResult:
		return m.viewValidateResult()
	default:
		return ""
	}
}

func (m Model) viewForm() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		titleStyle.Render("mailbot setup"),
		m.form.View(),
	)

	return lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m Model) viewValidating() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	content := fmt.Sprintf(
		"%s Testing connection...\n\nPress esc to skip.",
		m.spinner.View(),
	)

	return style.Render(content)
}

func (m Model) viewValidateResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	hint := lipgloss.NewStyle().Foreground(theme.ColorGray)

	var content string
	if m.validError != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n"
		if m.statusMsg != "" {
			content += lipgloss.NewStyle().Foreground(theme.ColorYellow).Render(m.statusMsg) + "\n\n"
		}
		content += hint.Render("r retry | enter/esc close")
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		content = okStyle.Render("Connection successful") + "\n\n" +
			fmt.Sprintf("Watching: %s", m.validResult) + "\n\n" +
			hint.Render("enter/esc close")
	}

	return style.Render(content)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

// --- Validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateOptionalURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validatePort(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("port is required")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("port must be a number")
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	return nil
}

package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/nhle/mailbot/internal/ai"
	"github.com/nhle/mailbot/internal/credential"
	"github.com/nhle/mailbot/internal/decision"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/rules"
	"github.com/nhle/mailbot/internal/source/email"
	"github.com/nhle/mailbot/internal/store"
	appsync "github.com/nhle/mailbot/internal/sync"
)

// Runtime holds the wired components of a running mailbot.
type Runtime struct {
	Config     *model.AppConfig
	Journal    *store.SQLiteStore
	Rules      *rules.Engine
	Decider    *decision.Orchestrator
	Classifier decision.Classifier
	Mailbox    *email.Adapter
	Poller     *appsync.Poller
}

// NewRuntime builds every component from cfg. Credentials are loaded from
// the environment or the system keyring. A missing API key is not fatal:
// messages no rule matches are then recorded as failed.
func NewRuntime(cfg *model.AppConfig, logger zerolog.Logger) (*Runtime, error) {
	engine, err := rules.FromConfig(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("loading rules: %w", err)
	}

	mailbox, err := NewMailbox(cfg, logger)
	if err != nil {
		return nil, err
	}

	classifier, err := NewClassifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	journal, err := OpenJournal(cfg)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:  cfg,
		Journal: journal,
		Rules:   engine,
		Decider: decision.New(engine, logger),
		Mailbox: mailbox,
	}
	// Avoid a typed nil inside the interface.
	if classifier != nil {
		rt.Classifier = classifier
	}
	rt.Poller = appsync.New(mailbox, rt.Decider, rt.Classifier, journal, appsync.ConfigFromModel(cfg), logger)
	return rt, nil
}

// Close releases the journal.
func (r *Runtime) Close() error {
	if r.Poller != nil {
		r.Poller.Stop()
	}
	return r.Journal.Close()
}

// NewClassifier creates the LM client. It returns nil without error when no
// API key is configured.
func NewClassifier(cfg *model.AppConfig, logger zerolog.Logger) (*ai.Classifier, error) {
	apiKey, err := credential.APIKey()
	if errors.Is(err, credential.ErrNotFound) {
		logger.Warn().Msg("No API key configured, classifier disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading API key: %w", err)
	}

	return ai.NewClassifier(apiKey, ai.Options{
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Logger:      logger,
	}), nil
}

// NewMailbox creates the IMAP adapter, loading the password from the
// environment or the system keyring.
func NewMailbox(cfg *model.AppConfig, logger zerolog.Logger) (*email.Adapter, error) {
	if cfg.Mailbox.Host == "" || cfg.Mailbox.Username == "" {
		return nil, errors.New("mailbox host and username are not configured, run 'mailbot setup'")
	}

	password, err := credential.IMAPPassword(cfg.Mailbox.Username)
	if err != nil {
		return nil, fmt.Errorf("loading IMAP password for %s: %w", cfg.Mailbox.Username, err)
	}

	return email.NewAdapter(email.ConfigFromModel(cfg.Mailbox, password), logger), nil
}

// OpenJournal opens the journal database, creating its directory.
func OpenJournal(cfg *model.AppConfig) (*store.SQLiteStore, error) {
	path := cfg.Journal.Path
	if path == "" {
		path = model.DefaultJournalPath()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}

	j, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	return j, nil
}

package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailbot/internal/decision"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/source"
	"github.com/nhle/mailbot/internal/store"
	"github.com/nhle/mailbot/internal/vocabulary"
)

// SyncState represents the current state of the poller.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return "unknown"
	}
}

// SyncStatus is a snapshot of the poller state.
type SyncStatus struct {
	State     SyncState
	LastCycle time.Time
	Error     error
}

// CycleResult is a tea.Msg sent when a poll cycle completes.
type CycleResult struct {
	Started  time.Time
	Finished time.Time

	// Fetched is the number of messages listed; Skipped of those already
	// had a final journal entry.
	Fetched int
	Skipped int

	// Counts holds the number of outcomes per status.
	Counts map[decision.Status]int

	// Applied is the number of decisions executed on the mailbox.
	Applied int

	Error     error
	AuthError *AuthErrorMsg
}

// Summary renders the result for a status bar.
func (r CycleResult) Summary() string {
	if r.Error != nil {
		return fmt.Sprintf("sync failed: %v", r.Error)
	}
	return fmt.Sprintf(
		"%d fetched, %d skipped, %d decided, %d rejected, %d failed, %d applied",
		r.Fetched,
		r.Skipped,
		r.Counts[decision.StatusDecided],
		r.Counts[decision.StatusRejected],
		r.Counts[decision.StatusFailed],
		r.Applied,
	)
}

// AuthErrorMsg is sent when the mailbox rejects the login.
type AuthErrorMsg struct {
	Mailbox string
	Message string
}

// fetchTimeout is the maximum time allowed for listing messages.
const fetchTimeout = 60 * time.Second

// Config controls a Poller.
type Config struct {
	LookbackDays int
	FetchLimit   int
	Interval     time.Duration

	// ClassifyTimeout bounds each classifier call. Zero means no timeout.
	ClassifyTimeout time.Duration

	Concurrency int
	DryRun      bool
}

// ConfigFromModel converts application configuration to poller settings.
func ConfigFromModel(cfg *model.AppConfig) Config {
	return Config{
		LookbackDays:    cfg.Mailbox.LookbackDays,
		FetchLimit:      cfg.Mailbox.FetchLimit,
		Interval:        time.Duration(cfg.Mailbox.PollIntervalSec) * time.Second,
		ClassifyTimeout: time.Duration(cfg.AI.TimeoutSec) * time.Second,
		Concurrency:     cfg.Concurrency,
		DryRun:          cfg.DryRun,
	}
}

// Poller periodically lists the mailbox, decides on new messages, applies
// the decisions and records every outcome in the journal.
type Poller struct {
	mailbox    source.Mailbox
	decider    *decision.Orchestrator
	classifier decision.Classifier
	journal    store.Journal
	cfg        Config
	logger     zerolog.Logger

	resultCh  chan CycleResult
	triggerCh chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}

	mu      gosync.Mutex
	running bool
	status  SyncStatus

	now func() time.Time
}

// New creates a Poller. A nil classifier leaves every message that no rule
// matches undecided.
func New(
	mailbox source.Mailbox,
	decider *decision.Orchestrator,
	classifier decision.Classifier,
	journal store.Journal,
	cfg Config,
	logger zerolog.Logger,
) *Poller {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 300 * time.Second
	}

	p := &Poller{
		mailbox:   mailbox,
		decider:   decider,
		journal:   journal,
		cfg:       cfg,
		logger:    logger.With().Str("module", "poller").Str("mailbox", mailbox.Name()).Logger(),
		resultCh:  make(chan CycleResult, 16),
		triggerCh: make(chan struct{}, 1),
		now:       time.Now,
	}
	if classifier != nil {
		p.classifier = p.withTimeout(classifier)
	}
	return p
}

// withTimeout bounds each call of c by the configured classifier timeout.
func (p *Poller) withTimeout(c decision.Classifier) decision.Classifier {
	if p.cfg.ClassifyTimeout <= 0 {
		return c
	}
	return decision.ClassifierFunc(func(ctx context.Context, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, p.cfg.ClassifyTimeout)
		defer cancel()
		return c.Classify(ctx, prompt)
	})
}

// Start runs the polling loop in the background and returns a tea.Cmd
// that waits for the first CycleResult.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.loop(ctx)
	}()

	return p.waitForResult()
}

// Stop halts the polling loop and waits for the current cycle to end.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
}

// Run polls in the foreground until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.loop(ctx)
	return ctx.Err()
}

// Refresh triggers an immediate cycle. A trigger already pending is not
// queued twice.
func (p *Poller) Refresh() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
	return nil
}

// Status returns the current poller state.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.cycle(ctx)
		case <-p.triggerCh:
			p.cycle(ctx)
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	result, _ := p.RunOnce(ctx)
	if ctx.Err() != nil {
		return
	}
	p.sendResult(result)
}

// RunOnce performs a single poll cycle. The returned error is only set when
// the mailbox could not be listed; per-message failures are recorded in the
// journal and counted in the result.
func (p *Poller) RunOnce(ctx context.Context) (CycleResult, error) {
	result := CycleResult{
		Started: p.now(),
		Counts:  make(map[decision.Status]int),
	}
	p.setStatus(SyncRunning, nil)

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	msgs, err := p.mailbox.FetchMessages(fetchCtx, source.FetchOptions{
		Since: p.now().AddDate(0, 0, -p.cfg.LookbackDays),
		Limit: p.cfg.FetchLimit,
	})
	cancel()
	if err != nil {
		err = fmt.Errorf("fetching messages: %w", err)
		p.logger.Error().Err(err).Msg("Poll cycle failed")
		p.setStatus(SyncError, err)

		result.Error = err
		if source.IsAuthError(err) {
			result.AuthError = &AuthErrorMsg{
				Mailbox: p.mailbox.Name(),
				Message: fmt.Sprintf(
					"%s: authentication failed. Run 'mailbot setup' to update the password.",
					p.mailbox.Name(),
				),
			}
		}
		result.Finished = p.now()
		return result, err
	}
	result.Fetched = len(msgs)

	var mu gosync.Mutex
	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	for _, m := range msgs {
		if ctx.Err() != nil {
			break
		}

		seen, err := p.journal.HasMessage(ctx, m.Mailbox, m.MessageID, m.UID)
		if err != nil {
			p.logger.Warn().Err(err).Uint32("uid", m.UID).Msg("Journal lookup failed")
		}
		if seen {
			result.Skipped++
			continue
		}

		g.Go(func() error {
			e := p.process(ctx, m)

			mu.Lock()
			defer mu.Unlock()
			result.Counts[decision.Status(e.Status)]++
			if e.Applied {
				result.Applied++
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Finished = p.now()
	p.setStatus(SyncIdle, nil)
	p.logger.Info().
		Int("fetched", result.Fetched).
		Int("skipped", result.Skipped).
		Int("applied", result.Applied).
		Dur("took", result.Finished.Sub(result.Started)).
		Msg("Poll cycle complete")
	return result, nil
}

// process decides on one message, applies the decision and records it.
func (p *Poller) process(ctx context.Context, m source.Message) model.JournalEntry {
	logger := p.logger.With().Uint32("uid", m.UID).Str("message_id", m.MessageID).Logger()

	outcome, err := p.decider.Decide(ctx, m.Snapshot, p.classifier)
	if err == nil && outcome.Status == decision.StatusNeedsBody {
		full, ferr := p.mailbox.FetchMessage(ctx, m.UID)
		if ferr != nil {
			logger.Error().Err(ferr).Msg("Fetching message body failed")
			return p.record(ctx, entryFor(m, outcome, ferr))
		}
		m.Snapshot = full.Snapshot
		outcome, err = p.decider.Decide(ctx, m.Snapshot, p.classifier)
	}

	e := entryFor(m, outcome, err)
	if outcome.Status != decision.StatusDecided {
		return p.record(ctx, e)
	}

	switch {
	case p.cfg.DryRun:
		e.DryRun = true
		logger.Info().Stringer("decision", outcome.Decision).Msg("Dry run, not applying")
	case outcome.Decision.Len() == 0:
		logger.Debug().Msg("Empty decision, nothing to apply")
	default:
		if err := p.mailbox.Apply(ctx, m.UID, outcome.Decision); err != nil {
			logger.Error().Err(err).Msg("Applying decision failed")
			e.Status = string(decision.StatusFailed)
			e.Error = err.Error()
			break
		}
		e.Applied = true
	}
	return p.record(ctx, e)
}

func (p *Poller) record(ctx context.Context, e model.JournalEntry) model.JournalEntry {
	e.DecidedAt = p.now()
	saved, err := p.journal.RecordDecision(context.WithoutCancel(ctx), e)
	if err != nil {
		p.logger.Error().Err(err).Uint32("uid", e.UID).Msg("Recording decision failed")
		return e
	}
	return saved
}

// entryFor builds the journal entry for an outcome.
func entryFor(m source.Message, o decision.Outcome, err error) model.JournalEntry {
	e := model.JournalEntry{
		MessageID: m.MessageID,
		Mailbox:   m.Mailbox,
		UID:       m.UID,
		Source:    string(o.Source),
		RuleName:  o.RuleName,
		Status:    string(o.Status),
	}
	if m.Snapshot != nil {
		e.Sender = m.Snapshot.From
		e.Subject = m.Snapshot.Subject
	}
	if o.Decision != nil {
		e.Actions = vocabulary.EncodeDecision(o.Decision)
	}
	if o.Rejection != nil {
		e.Reason = string(o.Rejection.Reason)
		e.Error = o.Rejection.Error()
	}
	if err != nil {
		e.Status = string(decision.StatusFailed)
		if e.Source == "" {
			e.Source = string(decision.SourceNone)
		}
		e.Error = err.Error()
	}
	return e
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle {
		p.status.LastCycle = p.now()
	}
}

// sendResult sends a CycleResult on the result channel without blocking.
func (p *Poller) sendResult(r CycleResult) {
	select {
	case p.resultCh <- r:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next cycle result.
// It should be called after handling a CycleResult to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}

package sync_test

import (
	"context"
	"errors"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbot/internal/decision"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/rules"
	"github.com/nhle/mailbot/internal/source"
	"github.com/nhle/mailbot/internal/store"
	"github.com/nhle/mailbot/internal/sync"
	"github.com/nhle/mailbot/tests/testutil"
)

type applied struct {
	uid      uint32
	decision string
}

type fakeMailbox struct {
	messages []source.Message
	bodies   map[uint32]string
	fetchErr error
	applyErr error

	mu        gosync.Mutex
	applied   []applied
	bodyLoads []uint32
}

func (f *fakeMailbox) Name() string { return "me@example.com/INBOX" }
func (f *fakeMailbox) ValidateConnection(ctx context.Context) error { return nil }

func (f *fakeMailbox) FetchMessages(ctx context.Context, opts source.FetchOptions) ([]source.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := make([]source.Message, len(f.messages))
	for i, m := range f.messages {
		snap := *m.Snapshot
		m.Snapshot = &snap
		out[i] = m
	}
	return out, nil
}

func (f *fakeMailbox) FetchMessage(ctx context.Context, uid uint32) (*source.Message, error) {
	f.mu.Lock()
	f.bodyLoads = append(f.bodyLoads, uid)
	f.mu.Unlock()

	for _, m := range f.messages {
		if m.UID != uid {
			continue
		}
		snap := *m.Snapshot
		snap.Partial = false
		snap.Body = f.bodies[uid]
		m.Snapshot = &snap
		return &m, nil
	}
	return nil, errors.New("no such message")
}

func (f *fakeMailbox) Apply(ctx context.Context, uid uint32, d *model.Decision) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, applied{uid: uid, decision: d.String()})
	return nil
}

func message(uid uint32, from, subject string) source.Message {
	return source.Message{
		UID:       uid,
		MessageID: "<" + subject + "@example.com>",
		Mailbox:   "INBOX",
		Snapshot: &model.MessageSnapshot{
			State:   model.StateReceived,
			From:    from,
			Subject: subject,
			Partial: true,
		},
	}
}

func newOrchestrator(t *testing.T) *decision.Orchestrator {
	t.Helper()
	engine, err := rules.New([]rules.Rule{{
		Name:           "news",
		SenderContains: "news@shop.example",
		Actions:        []model.Action{model.MarkAsRead(), model.MoveToArchive()},
	}})
	require.NoError(t, err)
	return decision.New(engine, zerolog.Nop())
}

func staticClassifier(answer string, calls *atomic.Int32) decision.Classifier {
	return decision.ClassifierFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return answer, nil
	})
}

func newPoller(
	t *testing.T,
	mb *fakeMailbox,
	c decision.Classifier,
	cfg sync.Config,
) (*sync.Poller, store.Journal) {
	t.Helper()
	j := testutil.NewTestJournal(t)
	return sync.New(mb, newOrchestrator(t), c, j, cfg, zerolog.Nop()), j
}

func TestRunOnceRuleAndClassifier(t *testing.T) {
	mb := &fakeMailbox{
		messages: []source.Message{
			message(1, "Shop <news@shop.example>", "deals"),
			message(2, "Alice <alice@example.com>", "lunch"),
		},
		bodies: map[uint32]string{2: "Lunch tomorrow?"},
	}
	var calls atomic.Int32
	p, j := newPoller(t, mb, staticClassifier(`[{"action":"flag","parameters":{"color":"blue"}}]`, &calls),
		sync.Config{Concurrency: 2})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Fetched)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, 2, res.Counts[decision.StatusDecided])
	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []uint32{2}, mb.bodyLoads)
	assert.ElementsMatch(t, []applied{
		{uid: 1, decision: "[markAsRead, moveToArchive]"},
		{uid: 2, decision: "[flag(blue)]"},
	}, mb.applied)

	entries, err := j.ListDecisions(context.Background(), store.DecisionFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	bySource := map[string]model.JournalEntry{}
	for _, e := range entries {
		bySource[e.Source] = e
	}
	assert.Equal(t, "news", bySource["rule"].RuleName)
	assert.True(t, bySource["rule"].Applied)
	assert.Equal(t, []model.WireAction{
		{Action: "flag", Parameters: map[string]string{"color": "blue"}},
	}, bySource["classifier"].Actions)
}

func TestRunOnceSkipsJournaledMessages(t *testing.T) {
	mb := &fakeMailbox{messages: []source.Message{message(1, "news@shop.example", "deals")}}
	var calls atomic.Int32
	p, _ := newPoller(t, mb, staticClassifier(`[]`, &calls), sync.Config{})

	_, err := p.RunOnce(context.Background())
	require.NoError(t, err)

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, res.Counts)
	assert.Len(t, mb.applied, 1)
}

func TestRunOnceRejectedResponse(t *testing.T) {
	mb := &fakeMailbox{messages: []source.Message{message(3, "bob@example.com", "hi")}}
	var calls atomic.Int32
	p, j := newPoller(t, mb, staticClassifier(`[{"action":"delete"}]`, &calls), sync.Config{})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts[decision.StatusRejected])
	assert.Empty(t, mb.applied)

	entries, err := j.ListDecisions(context.Background(), store.DecisionFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "unknown_action", entries[0].Reason)
	assert.Empty(t, entries[0].Actions)

	// Rejections are final.
	res, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
}

func TestRunOnceClassifierFailureIsRetried(t *testing.T) {
	mb := &fakeMailbox{messages: []source.Message{message(4, "bob@example.com", "hi")}}
	var calls atomic.Int32
	failing := decision.ClassifierFunc(func(ctx context.Context, prompt string) (string, error) {
		calls.Add(1)
		return "", errors.New("connection reset")
	})
	p, j := newPoller(t, mb, failing, sync.Config{})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts[decision.StatusFailed])

	res, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, int32(2), calls.Load())

	entries, err := j.ListDecisions(context.Background(), store.DecisionFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Error, "connection reset")
}

func TestRunOnceClassifierTimeout(t *testing.T) {
	mb := &fakeMailbox{messages: []source.Message{message(5, "bob@example.com", "slow")}}
	slow := decision.ClassifierFunc(func(ctx context.Context, prompt string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	p, _ := newPoller(t, mb, slow, sync.Config{ClassifyTimeout: 20 * time.Millisecond})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts[decision.StatusFailed])
}

func TestRunOnceDryRun(t *testing.T) {
	mb := &fakeMailbox{messages: []source.Message{message(1, "news@shop.example", "deals")}}
	var calls atomic.Int32
	p, j := newPoller(t, mb, staticClassifier(`[]`, &calls), sync.Config{DryRun: true})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts[decision.StatusDecided])
	assert.Equal(t, 0, res.Applied)
	assert.Empty(t, mb.applied)

	entries, err := j.ListDecisions(context.Background(), store.DecisionFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].DryRun)
	assert.False(t, entries[0].Applied)
}

func TestRunOnceApplyFailureIsRetried(t *testing.T) {
	mb := &fakeMailbox{
		messages: []source.Message{message(1, "news@shop.example", "deals")},
		applyErr: errors.New("no archive folder"),
	}
	var calls atomic.Int32
	p, _ := newPoller(t, mb, staticClassifier(`[]`, &calls), sync.Config{})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts[decision.StatusFailed])

	res, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Skipped)
}

func TestRunOnceNoClassifier(t *testing.T) {
	mb := &fakeMailbox{messages: []source.Message{message(6, "bob@example.com", "hi")}}
	p, _ := newPoller(t, mb, nil, sync.Config{})

	res, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Counts[decision.StatusFailed])
	assert.Empty(t, mb.applied)
}

func TestRunOnceAuthError(t *testing.T) {
	mb := &fakeMailbox{fetchErr: &source.AuthError{Server: "imap.example.com:993", Message: "bad password"}}
	p, _ := newPoller(t, mb, nil, sync.Config{})

	res, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.True(t, source.IsAuthError(err))
	require.NotNil(t, res.AuthError)
	assert.Equal(t, "me@example.com/INBOX", res.AuthError.Mailbox)
	assert.Equal(t, sync.SyncError, p.Status().State)
	assert.Contains(t, res.Summary(), "sync failed")
}

func TestStartDeliversCycleResult(t *testing.T) {
	mb := &fakeMailbox{messages: []source.Message{message(1, "news@shop.example", "deals")}}
	var calls atomic.Int32
	p, _ := newPoller(t, mb, staticClassifier(`[]`, &calls), sync.Config{Interval: time.Hour})

	cmd := p.Start()
	require.NotNil(t, cmd)
	defer p.Stop()

	msg := cmd()
	res, ok := msg.(sync.CycleResult)
	require.True(t, ok)
	assert.Equal(t, 1, res.Counts[decision.StatusDecided])
	assert.Nil(t, p.Start(), "second Start is a no-op")

	p.Refresh()
	res, ok = p.WaitForNextResult()().(sync.CycleResult)
	require.True(t, ok)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, sync.SyncIdle, p.Status().State)
}

func TestRunStopsOnCancel(t *testing.T) {
	mb := &fakeMailbox{}
	p, _ := newPoller(t, mb, nil, sync.Config{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := &model.AppConfig{
		AI:          model.AIConfig{TimeoutSec: 30},
		Mailbox:     model.MailboxConfig{LookbackDays: 3, FetchLimit: 50, PollIntervalSec: 120},
		Concurrency: 4,
		DryRun:      true,
	}
	got := sync.ConfigFromModel(cfg)
	assert.Equal(t, sync.Config{
		LookbackDays:    3,
		FetchLimit:      50,
		Interval:        2 * time.Minute,
		ClassifyTimeout: 30 * time.Second,
		Concurrency:     4,
		DryRun:          true,
	}, got)
}

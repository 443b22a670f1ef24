package decision_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailbot/internal/decision"
	"github.com/nhle/mailbot/internal/mapper"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/rules"
)

type fakeClassifier struct {
	response string
	err      error
	calls    atomic.Int32
	prompts  []string
	mu       sync.Mutex
}

func (f *fakeClassifier) Classify(_ context.Context, prompt string) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.response, f.err
}

func newOrchestrator(t *testing.T) *decision.Orchestrator {
	t.Helper()
	engine, err := rules.New([]rules.Rule{{
		Name:           "restaurant",
		SenderContains: "restaurant.com",
		Actions:        []model.Action{model.Flag(model.FlagRed), model.MoveToArchive()},
	}})
	require.NoError(t, err)
	return decision.New(engine, zerolog.New(zerolog.NewTestWriter(t)))
}

func snapshotFrom(from string) *model.MessageSnapshot {
	return &model.MessageSnapshot{
		State:      model.StateReceived,
		Encryption: model.EncryptionNotEncrypted,
		Subject:    "hello",
		From:       from,
		Body:       "body",
	}
}

func TestDecideRuleShortCircuits(t *testing.T) {
	o := newOrchestrator(t)
	fc := &fakeClassifier{response: `[{"action":"moveToTrash"}]`}

	out, err := o.Decide(context.Background(), snapshotFrom("billing@restaurant.com"), fc)
	require.NoError(t, err)
	assert.Equal(t, decision.StatusDecided, out.Status)
	assert.Equal(t, decision.SourceRule, out.Source)
	assert.Equal(t, "restaurant", out.RuleName)
	assert.Equal(t, model.NewDecision(model.Flag(model.FlagRed), model.MoveToArchive()), out.Decision)
	assert.Zero(t, fc.calls.Load(), "classifier must not be called on a rule hit")
}

func TestDecideRuleBeatsPartialSnapshot(t *testing.T) {
	o := newOrchestrator(t)
	s := snapshotFrom("billing@restaurant.com")
	s.Partial = true

	out, err := o.Decide(context.Background(), s, nil)
	require.NoError(t, err)
	assert.Equal(t, decision.StatusDecided, out.Status)
}

func TestDecideClassifierResponses(t *testing.T) {
	testCases := []struct {
		name       string
		response   string
		wantStatus decision.Status
		want       *model.Decision
		wantReason mapper.Reason
	}{
		{
			name:       "archive",
			response:   `[{"action":"moveToArchive"}]`,
			wantStatus: decision.StatusDecided,
			want:       model.NewDecision(model.MoveToArchive()),
		},
		{
			name:       "invalid color",
			response:   `[{"action":"flag","parameters":{"color":"teal"}}]`,
			wantStatus: decision.StatusRejected,
			wantReason: mapper.ReasonInvalidParameter,
		},
		{
			name:       "not json",
			response:   `not json`,
			wantStatus: decision.StatusRejected,
			wantReason: mapper.ReasonParseError,
		},
		{
			name:       "empty list",
			response:   `[]`,
			wantStatus: decision.StatusDecided,
			want:       model.NewDecision(),
		},
		{
			name:       "flag none",
			response:   `[{"action":"flag","parameters":{"color":"none"}}]`,
			wantStatus: decision.StatusRejected,
			wantReason: mapper.ReasonInvalidParameter,
		},
		{
			name:       "one bad element discards all",
			response:   `{"actions":[{"action":"markAsRead"},{"action":"shred"}]}`,
			wantStatus: decision.StatusRejected,
			wantReason: mapper.ReasonUnknownAction,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			o := newOrchestrator(t)
			fc := &fakeClassifier{response: tc.response}

			out, err := o.Decide(context.Background(), snapshotFrom("news@shop.example"), fc)
			require.NoError(t, err)
			assert.Equal(t, int32(1), fc.calls.Load())
			assert.Equal(t, tc.wantStatus, out.Status)
			assert.Equal(t, decision.SourceClassifier, out.Source)
			assert.Equal(t, tc.response, out.Response)
			assert.Equal(t, tc.want, out.Decision)
			if tc.wantStatus == decision.StatusRejected {
				require.NotNil(t, out.Rejection)
				assert.Equal(t, tc.wantReason, out.Rejection.Reason)
			} else {
				assert.Nil(t, out.Rejection)
			}
		})
	}
}

func TestDecideEmptyDecisionIsNotNoDecision(t *testing.T) {
	o := newOrchestrator(t)
	out, err := o.Decide(context.Background(), snapshotFrom("a@b.example"),
		decision.ClassifierFunc(func(context.Context, string) (string, error) {
			return "[]", nil
		}))
	require.NoError(t, err)
	require.NotNil(t, out.Decision)
	assert.Equal(t, 0, out.Decision.Len())
}

func TestDecideTransportError(t *testing.T) {
	o := newOrchestrator(t)
	transportErr := errors.New("HTTP 503")
	fc := &fakeClassifier{err: transportErr}

	out, err := o.Decide(context.Background(), snapshotFrom("news@shop.example"), fc)
	require.Error(t, err)
	assert.ErrorIs(t, err, transportErr)
	assert.Equal(t, decision.StatusFailed, out.Status)
	assert.Nil(t, out.Decision)
	assert.Equal(t, int32(1), fc.calls.Load(), "no retry")
}

func TestDecideCancelledContextIsFailure(t *testing.T) {
	o := newOrchestrator(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	classifier := decision.ClassifierFunc(func(ctx context.Context, _ string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return `[{"action":"moveToTrash"}]`, nil
	})

	out, err := o.Decide(ctx, snapshotFrom("news@shop.example"), classifier)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, decision.StatusFailed, out.Status)
	assert.Nil(t, out.Decision)
}

func TestDecidePartialWithoutRuleNeedsBody(t *testing.T) {
	o := newOrchestrator(t)
	fc := &fakeClassifier{response: `[]`}
	s := snapshotFrom("news@shop.example")
	s.Partial = true

	out, err := o.Decide(context.Background(), s, fc)
	require.NoError(t, err)
	assert.Equal(t, decision.StatusNeedsBody, out.Status)
	assert.Nil(t, out.Decision)
	assert.Zero(t, fc.calls.Load())
}

func TestDecideWithoutClassifier(t *testing.T) {
	o := newOrchestrator(t)
	out, err := o.Decide(context.Background(), snapshotFrom("news@shop.example"), nil)
	assert.ErrorIs(t, err, decision.ErrNoClassifier)
	assert.Equal(t, decision.StatusFailed, out.Status)
}

func TestDecidePromptCarriesMessage(t *testing.T) {
	o := newOrchestrator(t)
	fc := &fakeClassifier{response: `[]`}
	s := snapshotFrom("news@shop.example")
	s.Subject = "Weekly deals"

	_, err := o.Decide(context.Background(), s, fc)
	require.NoError(t, err)
	require.Len(t, fc.prompts, 1)
	assert.True(t, strings.HasPrefix(fc.prompts[0], "The permitted actions are:"))
	assert.Contains(t, fc.prompts[0], "Subject: Weekly deals\n")
	assert.True(t, strings.HasSuffix(fc.prompts[0], "Email Content:\nbody"))
}

func TestDecideConcurrent(t *testing.T) {
	o := newOrchestrator(t)
	fc := &fakeClassifier{response: `[{"action":"markAsRead"}]`}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := "news@shop.example"
			if i%2 == 0 {
				from = "billing@restaurant.com"
			}
			out, err := o.Decide(context.Background(), snapshotFrom(from), fc)
			assert.NoError(t, err)
			assert.Equal(t, decision.StatusDecided, out.Status)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(8), fc.calls.Load())
}

// Package decision ties rules, prompt building, classification and response
// mapping together into a single per-message decision.
package decision

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nhle/mailbot/internal/mapper"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/prompt"
	"github.com/nhle/mailbot/internal/rules"
)

// ErrNoClassifier is returned when a message needs the classifier but none
// was supplied.
var ErrNoClassifier = errors.New("no classifier configured")

// Classifier sends a prompt to a language model and returns its raw text
// answer. Any error is treated as a transport failure.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, prompt string) (string, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Status is the terminal state of one decision request.
type Status string

const (
	// StatusDecided carries a decision, possibly with zero actions.
	StatusDecided Status = "decided"
	// StatusRejected means the classifier answered but the answer was
	// discarded by the mapper.
	StatusRejected Status = "rejected"
	// StatusFailed means the classifier call itself failed.
	StatusFailed Status = "failed"
	// StatusNeedsBody asks the caller to load the full message and retry.
	StatusNeedsBody Status = "needs_body"
)

// Source names what produced a decision.
type Source string

const (
	SourceNone       Source = "none"
	SourceRule       Source = "rule"
	SourceClassifier Source = "classifier"
)

// Outcome is the result of Decide. Decision is nil unless Status is
// StatusDecided.
type Outcome struct {
	Status   Status
	Source   Source
	RuleName string
	Decision *model.Decision

	// Rejection is set for StatusRejected.
	Rejection *mapper.Rejection

	// Response is the raw classifier text, kept for diagnostics.
	Response string
}

// Orchestrator decides which actions to apply to a message. It holds no
// per-call state and may be shared between goroutines.
type Orchestrator struct {
	rules  *rules.Engine
	logger zerolog.Logger
}

// New creates an orchestrator. A nil engine behaves as an empty rule set.
func New(engine *rules.Engine, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		rules:  engine,
		logger: logger.With().Str("module", "decision").Logger(),
	}
}

// Decide runs the rule engine and, when no rule matches, the classifier.
// Only a classifier failure is returned as an error; rejected responses
// end in StatusRejected with a nil error.
func (o *Orchestrator) Decide(
	ctx context.Context,
	s *model.MessageSnapshot,
	classifier Classifier,
) (Outcome, error) {
	logger := o.logger.With().Str("from", s.From).Str("subject", s.Subject).Logger()

	if rule, ok := o.rules.Match(s.From); ok {
		d := rule.Decision()
		logger.Debug().Str("rule", rule.Name).Stringer("decision", d).Msg("Rule matched")
		return Outcome{
			Status:   StatusDecided,
			Source:   SourceRule,
			RuleName: rule.Name,
			Decision: d,
		}, nil
	}

	if s.Partial {
		logger.Debug().Msg("No rule matched, body required")
		return Outcome{Status: StatusNeedsBody, Source: SourceNone}, nil
	}
	if classifier == nil {
		return Outcome{Status: StatusFailed, Source: SourceClassifier},
			ErrNoClassifier
	}

	raw, err := classifier.Classify(ctx, prompt.Build(s))
	if err != nil {
		logger.Error().Err(err).Msg("Classifier call failed")
		return Outcome{Status: StatusFailed, Source: SourceClassifier},
			fmt.Errorf("classifying message: %w", err)
	}

	d, rej := mapper.Map(raw)
	if rej != nil {
		logger.Warn().EmbedObject(rej).Msg("Classifier response rejected")
		return Outcome{
			Status:    StatusRejected,
			Source:    SourceClassifier,
			Rejection: rej,
			Response:  raw,
		}, nil
	}

	logger.Debug().Stringer("decision", d).Msg("Classifier decided")
	return Outcome{
		Status:   StatusDecided,
		Source:   SourceClassifier,
		Decision: d,
		Response: raw,
	}, nil
}

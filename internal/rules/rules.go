// Package rules holds the sender-based override rules that are checked
// before any message is sent to the classifier.
package rules

import (
	"fmt"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailbot/internal/mapper"
	"github.com/nhle/mailbot/internal/model"
)

// Rule maps a sender substring to a fixed set of actions.
type Rule struct {
	Name           string
	SenderContains string
	Actions        []model.Action
}

// Decision returns a fresh copy of the rule's decision.
func (r Rule) Decision() *model.Decision {
	actions := make([]model.Action, len(r.Actions))
	copy(actions, r.Actions)
	return &model.Decision{Actions: actions}
}

type compiledRule struct {
	rule   Rule
	needle string
}

// Engine evaluates rules in declaration order. It is immutable once
// built and safe for concurrent use.
type Engine struct {
	rules []compiledRule
}

// New builds an engine from rules, keeping their order. A rule with an
// empty matcher would match every sender and is rejected.
func New(rules []Rule) (*Engine, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		needle := strings.ToLower(r.SenderContains)
		if needle == "" {
			return nil, fmt.Errorf("rule %d (%q): sender_contains must not be empty", i, r.Name)
		}
		if r.Name == "" {
			r.Name = needle
		}
		r.Actions = append([]model.Action(nil), r.Actions...)
		compiled = append(compiled, compiledRule{rule: r, needle: needle})
	}
	return &Engine{rules: compiled}, nil
}

// FromConfig validates configured rules, whose actions use the same wire
// format as classifier responses, and builds an engine from them.
func FromConfig(cfgs []model.RuleConfig) (*Engine, error) {
	rules := make([]Rule, 0, len(cfgs))
	for i, c := range cfgs {
		decision, rej := mapper.Validate(c.Actions)
		if rej != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, c.Name, rej)
		}
		rules = append(rules, Rule{
			Name:           c.Name,
			SenderContains: c.SenderContains,
			Actions:        decision.Actions,
		})
	}
	return New(rules)
}

// Match returns the first rule whose substring is contained in the
// sender address, compared case-insensitively. from may be a bare address
// or a "Name <address>" form; an empty or unparseable sender matches
// nothing.
func (e *Engine) Match(from string) (Rule, bool) {
	if e == nil || len(e.rules) == 0 {
		return Rule{}, false
	}
	addr, ok := senderAddress(from)
	if !ok {
		return Rule{}, false
	}
	for _, c := range e.rules {
		if strings.Contains(addr, c.needle) {
			return c.rule, true
		}
	}
	return Rule{}, false
}

// Rules returns the configured rules in evaluation order.
func (e *Engine) Rules() []Rule {
	if e == nil {
		return nil
	}
	out := make([]Rule, len(e.rules))
	for i, c := range e.rules {
		out[i] = c.rule
	}
	return out
}

// Len returns the number of rules.
func (e *Engine) Len() int {
	if e == nil {
		return 0
	}
	return len(e.rules)
}

func senderAddress(from string) (string, bool) {
	from = strings.TrimSpace(from)
	if from == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(from)
	if err != nil || addr.Address == "" {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}

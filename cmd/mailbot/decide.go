package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"github.com/nhle/mailbot/internal/app"
	"github.com/nhle/mailbot/internal/decision"
	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/rules"
	"github.com/nhle/mailbot/internal/source/email"
	"github.com/nhle/mailbot/internal/vocabulary"
)

type decideCmd struct {
	noLM  bool
	draft bool
}

func (*decideCmd) Name() string {
	return "decide"
}

func (*decideCmd) Synopsis() string {
	return "decide actions for a message file"
}

func (*decideCmd) Usage() string {
	return `decide [-no-lm] [-draft] <file|->:
	read an RFC 5322 message and print the decision as JSON,
	nothing is applied or journaled
`
}

func (d *decideCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&d.noLM, "no-lm", false, "only evaluate rules")
	f.BoolVar(&d.draft, "draft", false, "treat the message as a draft")
}

type decideOutput struct {
	Status   decision.Status    `json:"status"`
	Source   decision.Source    `json:"source"`
	Rule     string             `json:"rule,omitempty"`
	Actions  []model.WireAction `json:"actions"`
	Reason   string             `json:"reason,omitempty"`
	Error    string             `json:"error,omitempty"`
	Response string             `json:"response,omitempty"`
}

func (d *decideCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	name := f.Arg(0)
	if name == "" {
		return usage("message file required, use - for stdin")
	}

	cfg, closeLog, err := loadConfig()
	if err != nil {
		return fatal("Couldn't load configuration", err)
	}
	defer closeLog()

	raw, err := readInput(name)
	if err != nil {
		return fatal("Couldn't read message", err)
	}
	state := model.StateReceived
	if d.draft {
		state = model.StateDraft
	}
	snap, err := email.SnapshotFromRaw(raw, state)
	if err != nil {
		return fatal("Couldn't parse message", err)
	}
	email.TruncateBody(snap, cfg.Mailbox.MaxBodyBytes)

	engine, err := rules.FromConfig(cfg.Rules)
	if err != nil {
		return fatal("Couldn't load rules", err)
	}

	var classifier decision.Classifier
	if !d.noLM {
		c, err := app.NewClassifier(cfg, log.Logger)
		if err != nil {
			return fatal("Couldn't create classifier", err)
		}
		if c != nil {
			classifier = c
		}
	}

	out, err := decision.New(engine, log.Logger).Decide(ctx, snap, classifier)
	result := decideOutput{
		Status:   out.Status,
		Source:   out.Source,
		Rule:     out.RuleName,
		Actions:  vocabulary.EncodeDecision(out.Decision),
		Response: out.Response,
	}
	if result.Actions == nil {
		result.Actions = []model.WireAction{}
	}
	if out.Rejection != nil {
		result.Reason = out.Rejection.Error()
	}
	if err != nil {
		result.Error = err.Error()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fatal("Couldn't write result", err)
	}
	if out.Status == decision.StatusFailed && !errors.Is(err, decision.ErrNoClassifier) {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"github.com/nhle/mailbot/internal/app"
)

type runCmd struct {
	once   bool
	dryRun bool
}

func (*runCmd) Name() string {
	return "run"
}

func (*runCmd) Synopsis() string {
	return "poll the mailbox and apply decisions"
}

func (*runCmd) Usage() string {
	return `run [-once] [-dry-run]:
	poll the configured mailbox, decide actions for new messages,
	apply them and record every outcome in the journal
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.once, "once", false, "run a single cycle and exit")
	f.BoolVar(&r.dryRun, "dry-run", false, "record decisions without applying them")
}

func (r *runCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return fatal("Couldn't load configuration", err)
	}
	defer closeLog()
	if r.dryRun {
		cfg.DryRun = true
	}

	rt, err := app.NewRuntime(cfg, log.Logger)
	if err != nil {
		return fatal("Couldn't start", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error().Err(err).Msg("Closing journal")
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if r.once {
		res, err := rt.Poller.RunOnce(ctx)
		if err != nil {
			return fatal("Cycle failed", err)
		}
		fmt.Println(res.Summary())
		return subcommands.ExitSuccess
	}

	log.Info().Str("mailbox", cfg.Mailbox.Mailbox).Bool("dry_run", cfg.DryRun).
		Int("interval_sec", cfg.Mailbox.PollIntervalSec).Msg("Polling started")
	if err := rt.Poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fatal("Polling stopped", err)
	}
	log.Info().Msg("Polling stopped")
	return subcommands.ExitSuccess
}

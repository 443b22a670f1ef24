package main

import (
	"context"
	"flag"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/subcommands"

	"github.com/nhle/mailbot/internal/app"
)

type watchCmd struct{}

func (*watchCmd) Name() string {
	return "watch"
}

func (*watchCmd) Synopsis() string {
	return "poll in the background and browse the journal"
}

func (*watchCmd) Usage() string {
	return `watch:
	start the poller and open the interactive journal browser
`
}

func (*watchCmd) SetFlags(f *flag.FlagSet) {}

func (*watchCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return fatal("Couldn't load configuration", err)
	}
	defer closeLog()

	logger := tuiLogger()
	rt, err := app.NewRuntime(cfg, logger)
	if err != nil {
		return fatal("Couldn't start", err)
	}
	defer func() { _ = rt.Close() }()

	p := tea.NewProgram(app.New(rt, *configPath, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fatal("Interface error", err)
	}
	return subcommands.ExitSuccess
}

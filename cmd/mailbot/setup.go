package main

import (
	"context"
	"flag"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/subcommands"

	"github.com/nhle/mailbot/internal/app"
	"github.com/nhle/mailbot/internal/keys"
	configview "github.com/nhle/mailbot/internal/ui/config"
)

type setupCmd struct{}

func (*setupCmd) Name() string {
	return "setup"
}

func (*setupCmd) Synopsis() string {
	return "configure the mailbox and language model"
}

func (*setupCmd) Usage() string {
	return `setup:
	edit connection settings, store secrets in the system keyring
	and test the IMAP login
`
}

func (*setupCmd) SetFlags(f *flag.FlagSet) {}

func (*setupCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, closeLog, err := loadConfig()
	if err != nil {
		return fatal("Couldn't load configuration", err)
	}
	defer closeLog()

	view := configview.New(cfg, *configPath, keys.DefaultKeyMap(), tuiLogger(), 80, 24)
	p := tea.NewProgram(app.NewSetup(view), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fatal("Interface error", err)
	}
	return subcommands.ExitSuccess
}

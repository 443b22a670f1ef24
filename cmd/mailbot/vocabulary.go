package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/nhle/mailbot/internal/rules"
	rulesview "github.com/nhle/mailbot/internal/ui/rules"
	"github.com/nhle/mailbot/internal/vocabulary"
)

type vocabularyCmd struct {
	prompt bool
}

func (*vocabularyCmd) Name() string {
	return "vocabulary"
}

func (*vocabularyCmd) Synopsis() string {
	return "list configured rules and supported actions"
}

func (*vocabularyCmd) Usage() string {
	return `vocabulary [-prompt]:
	print the configured sender rules and the action vocabulary
`
}

func (v *vocabularyCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&v.prompt, "prompt", false, "print the vocabulary text sent to the language model")
}

func (v *vocabularyCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if v.prompt {
		fmt.Println(vocabulary.Description())
		return subcommands.ExitSuccess
	}

	cfg, closeLog, err := loadConfig()
	if err != nil {
		return fatal("Couldn't load configuration", err)
	}
	defer closeLog()

	engine, err := rules.FromConfig(cfg.Rules)
	if err != nil {
		return fatal("Couldn't load rules", err)
	}
	fmt.Println(rulesview.Render(engine))
	return subcommands.ExitSuccess
}

// Package main implements the mailbot command line.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nhle/mailbot/internal/model"
)

var (
	configPath = flag.String("config", model.DefaultConfigPath(), "path to the YAML configuration file")
	loglevel   = flag.String("loglevel", "", "debug, info, warn, or error (overrides config)")
	logfile    = flag.String("logfile", "stderr", "write log output to this file")
	logjson    = flag.Bool("logjson", false, "logs are written in JSON format")
)

func main() {
	subcommands.ImportantFlag("config")

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&watchCmd{}, "")
	subcommands.Register(&decideCmd{}, "")
	subcommands.Register(&setupCmd{}, "")
	subcommands.Register(&vocabularyCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

// loadConfig reads the configuration and sets up logging from it. The
// returned func closes the log file.
func loadConfig() (*model.AppConfig, func(), error) {
	cfg, err := model.LoadConfig(*configPath)
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Log.Level
	if *loglevel != "" {
		level = *loglevel
	}
	closeLog, err := openLog(level, *logfile, *logjson || cfg.Log.JSON)
	if err != nil {
		return nil, nil, err
	}
	return cfg, closeLog, nil
}

// openLog configures zerolog output, returns func to close logfile.
func openLog(level string, logfile string, json bool) (close func(), err error) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "", "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		return nil, fmt.Errorf("log level %q not one of: debug, info, warn, error", level)
	}
	close = func() {}
	var w io.Writer
	color := runtime.GOOS != "windows"
	switch logfile {
	case "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		logf, err := os.OpenFile(logfile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
		if err != nil {
			return nil, err
		}
		bw := bufio.NewWriter(logf)
		w = bw
		color = false
		close = func() {
			_ = bw.Flush()
			_ = logf.Close()
		}
	}
	w = zerolog.SyncWriter(w)
	if json {
		log.Logger = log.Output(w)
		return close, nil
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:     w,
		NoColor: !color,
	})
	return close, nil
}

// tuiLogger returns a logger for full-screen commands. Console output would
// corrupt the terminal, so it only logs when -logfile names a file.
func tuiLogger() zerolog.Logger {
	if *logfile == "stderr" || *logfile == "stdout" {
		return zerolog.Nop()
	}
	return log.Logger
}

func fatal(msg string, err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	return subcommands.ExitFailure
}

func usage(msg string) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, msg)
	return subcommands.ExitUsageError
}

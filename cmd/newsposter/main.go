package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"NewsPoster/internal/app"
	"NewsPoster/internal/config"
	"NewsPoster/internal/logging"
)

const usage = `usage: newsposter <command> [flags]

commands:
  migrate              apply the database schema
  ingest               fetch news from configured sites once
  generate             run one generation pass over stored news
  run                  ingest, then generate
  schedule             run ingest and generation on the cron schedule
  approvals            serve the review webhook and submit vetted drafts
  publisher            publish approved drafts from the queue
  publish [-targets twitter,linkedin] <draft-id>
                       publish one approved draft
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	application := app.New(cfg, logger)

	command := os.Args[1]
	var err error
	switch command {
	case "migrate":
		err = application.Migrate()
	case "ingest":
		err = application.Ingest(ctx)
	case "generate":
		err = application.Generate(ctx)
	case "run":
		err = application.Run(ctx)
	case "schedule":
		err = application.Schedule(ctx)
	case "approvals":
		err = application.Approvals(ctx)
	case "publisher":
		err = application.Publisher(ctx)
	case "publish":
		err = publishCommand(ctx, application, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("command failed", "command", command, "error", err)
		stop()
		os.Exit(1)
	}
}

func publishCommand(ctx context.Context, application *app.Application, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	targets := fs.String("targets", "", "comma-separated targets (defaults to publish.targets)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("publish expects exactly one draft id")
	}

	var names []string
	for _, name := range strings.Split(*targets, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return application.PublishDraft(ctx, fs.Arg(0), names)
}

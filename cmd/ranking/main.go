package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ranking-service/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, args, err := config.ParseClient(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ranking: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ranking: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "ranking: %v\n", err)
		os.Exit(1)
	}
}

const usage = `usage: ranking [global flags] <command> [flags]

commands:
  list                         show the ranking
  sync                         refetch the ranking from the server
  search -name N -artist A     fuzzy search; offers to create when nothing matches
  vote <id>                    vote for an item
  vote -name N -artist A       search and vote, creating the item if needed
  batch <id> [<id>...]         vote for several items at once
  votes                        show the votes this client already cast
  login -email E [-password P] sign in as editor (RANKING_PASSWORD env works too)
  logout                       forget the stored session
  edit <id> -name N [-artist A] rename an item (editor)
  delete <id> [-yes]           remove an item (editor)

global flags:
  -api URL  -n NAMESPACE  -store memory|file|redis  -state FILE  -redis URL
  -events CHANNEL  -locale TAG  -timeout D  -privileged  -debug
`

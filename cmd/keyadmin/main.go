package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Alias1177/marketfeed/internal/app"
	"github.com/Alias1177/marketfeed/internal/config"
	"github.com/Alias1177/marketfeed/internal/keypool"
	"github.com/Alias1177/marketfeed/internal/logging"
	"github.com/rs/zerolog/log"
)

const usage = `usage: keyadmin [-timeout d] <command> [key]

commands:
  list          print masked keys in rotation order
  add <key>     add a key to the pool
  remove <key>  remove a key from the pool
  status        probe every key and print its health
  test          report whether any key reaches the provider`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(argv []string, out io.Writer) int {
	fs := flag.NewFlagSet("keyadmin", flag.ContinueOnError)
	timeout := fs.Duration("timeout", 2*time.Minute, "overall command timeout")
	fs.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	args := fs.Args()
	if len(args) == 0 || ((args[0] == "add" || args[0] == "remove") && len(args) < 2) {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return 1
	}
	closer := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize")
		return 1
	}
	defer a.Close()

	switch args[0] {
	case "list":
		keys, cursor := a.Pool.Snapshot()
		for i, k := range keys {
			marker := " "
			if i == cursor {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %d %s\n", marker, i, keypool.Mask(k))
		}

	case "add", "remove":
		apply := a.Pool.Add
		if args[0] == "remove" {
			apply = a.Pool.Remove
		}
		ok, err := apply(ctx, args[1])
		if err != nil {
			log.Error().Err(err).Msgf("Failed to %s key", args[0])
			return 1
		}
		if !ok {
			fmt.Fprintf(out, "%s rejected for %s\n", args[0], keypool.Mask(args[1]))
			return 1
		}
		fmt.Fprintf(out, "%s ok for %s, pool has %d key(s)\n", args[0], keypool.Mask(args[1]), a.Pool.Len())

	case "status":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(a.Health.KeyStatuses(ctx)); err != nil {
			log.Error().Err(err).Msg("Failed to encode statuses")
			return 1
		}

	case "test":
		if !a.Health.TestConnection(ctx) {
			fmt.Fprintln(out, "connection failed")
			return 1
		}
		fmt.Fprintln(out, "connection ok")

	default:
		fs.Usage()
		return 2
	}
	return 0
}

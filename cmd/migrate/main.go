package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/basket/internal/storage/postgres"
	"github.com/vladislavdragonenkov/basket/internal/storage/seed"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "BASKET_POSTGRES_DSN"
)

type options struct {
	direction string
	steps     int
	dsn       string
	seedFile  string
}

func parseOptions(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.direction, "direction", "up", "migration direction: up|down|status|seed")
	fs.IntVar(&opts.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	fs.StringVar(&opts.seedFile, "seed", "", "YAML seed file for -direction=seed")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.direction = strings.ToLower(strings.TrimSpace(opts.direction))
	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" {
		opts.dsn = strings.TrimSpace(os.Getenv(envPostgresDSN))
	}
	if opts.dsn == "" {
		return options{}, errors.New(envPostgresDSN + " (or -dsn) is required")
	}
	switch opts.direction {
	case "up", "status":
	case "down":
		if opts.steps <= 0 {
			opts.steps = 1
		}
	case "seed":
		if strings.TrimSpace(opts.seedFile) == "" {
			return options{}, errors.New("-seed is required for -direction=seed")
		}
	default:
		return options{}, fmt.Errorf("unsupported direction: %s (use up|down|status|seed)", opts.direction)
	}
	return opts, nil
}

func run(ctx context.Context, opts options, out io.Writer) error {
	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	switch opts.direction {
	case "up":
		if err := store.MigrateUp(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
	case "down":
		if err := store.MigrateDown(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
	case "seed":
		data, err := seed.ReadFile(opts.seedFile)
		if err != nil {
			return err
		}
		if err := data.Apply(ctx, postgres.NewSeedSink(store)); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		_, _ = fmt.Fprintf(out, "seed ok: marts=%d products=%d addresses=%d\n",
			len(data.Marts), len(data.Products), len(data.Addresses))
		return nil
	}

	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, _ = fmt.Fprintf(out, "migrate %s ok: version=%d applied=%d pending=%d\n",
		opts.direction, state.Version, state.Applied, state.Pending)
	if len(state.Drifted) > 0 {
		_, _ = fmt.Fprintf(out, "warning: migrations modified after apply: %v\n", state.Drifted)
	}
	return nil
}

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fail("%v", err)
	}
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

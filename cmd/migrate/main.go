// Command migrate применяет и откатывает миграции схемы PostgreSQL витрины.
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

	"github.com/vladislavdragonenkov/bakery/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "BAKERY_POSTGRES_DSN"
)

// migrator — операции схемы, которые нужны CLI.
type migrator interface {
	MigrateUp(ctx context.Context, steps int) error
	MigrateDown(ctx context.Context, steps int) error
	MigrationStatus(ctx context.Context) (postgres.MigrationState, error)
}

// openMigrator подключается к базе; возвращённая функция закрывает подключение.
var openMigrator = func(ctx context.Context, dsn string) (migrator, func() error, error) {
	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres store: %w", err)
	}
	return store, store.Close, nil
}

type options struct {
	direction string
	steps     int
	dsn       string
	timeout   time.Duration
}

func main() {
	os.Exit(runMain(context.Background(), os.Args[1:], os.Getenv, os.Stdout, os.Stderr))
}

func runMain(ctx context.Context, args []string, getenv func(string) string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args, getenv, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 2
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	m, closeFn, err := openMigrator(ctx, opts.dsn)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	defer func() { _ = closeFn() }()

	summary, err := runMigration(ctx, m, opts.direction, opts.steps)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, summary)
	return 0
}

func parseOptions(args []string, getenv func(string) string, output io.Writer) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(output)

	var opts options
	fs.StringVar(&opts.direction, "direction", "up", "up, down or status")
	fs.IntVar(&opts.steps, "steps", 0, "migrations to apply (0 = all) or roll back (0 = one)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (default $"+envPostgresDSN+")")
	fs.DurationVar(&opts.timeout, "timeout", defaultTimeout, "overall deadline")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" && getenv != nil {
		opts.dsn = strings.TrimSpace(getenv(envPostgresDSN))
	}
	switch {
	case opts.dsn == "":
		return options{}, fmt.Errorf("%s (or -dsn) is required", envPostgresDSN)
	case opts.steps < 0:
		return options{}, fmt.Errorf("steps must be >= 0")
	case opts.timeout <= 0:
		return options{}, fmt.Errorf("timeout must be > 0")
	}
	return opts, nil
}

// runMigration выполняет команду direction и возвращает строку с итоговой версией схемы.
func runMigration(ctx context.Context, m migrator, direction string, steps int) (string, error) {
	direction = strings.ToLower(strings.TrimSpace(direction))

	var apply func() error
	switch direction {
	case "up":
		apply = func() error { return m.MigrateUp(ctx, steps) }
	case "down":
		apply = func() error { return m.MigrateDown(ctx, max(steps, 1)) }
	case "status":
	default:
		return "", fmt.Errorf("unsupported direction: %s (use up|down|status)", direction)
	}

	label := "migration status"
	if apply != nil {
		if err := apply(); err != nil {
			return "", fmt.Errorf("migrate %s failed: %w", direction, err)
		}
		label = "migrate " + direction + " ok"
	}

	state, err := m.MigrationStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("migration status failed: %w", err)
	}
	return fmt.Sprintf("%s: version=%d dirty=%t", label, state.Version, state.Dirty), nil
}

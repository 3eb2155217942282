package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/shipbox/billing/internal/infrastructure/config"
	"github.com/shipbox/billing/internal/infrastructure/logger"
	"github.com/shipbox/billing/internal/infrastructure/migration"
	"github.com/shipbox/billing/migrations"
	"go.uber.org/zap"
)

// dbCommand runs against a live postgres schema.
type dbCommand struct {
	usage string
	args  int
	run   func(m *migration.Migrator, log *zap.Logger, args []string) error
}

var dbCommands = map[string]dbCommand{
	"up": {usage: "up", run: func(m *migration.Migrator, _ *zap.Logger, _ []string) error {
		return m.Up()
	}},
	"down": {usage: "down", run: func(m *migration.Migrator, _ *zap.Logger, _ []string) error {
		return m.Down()
	}},
	"step": {usage: "step <n>", args: 1, run: func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		return m.Steps(n)
	}},
	"goto": {usage: "goto <version>", args: 1, run: func(m *migration.Migrator, _ *zap.Logger, args []string) error {
		v, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		return m.GoTo(uint(v))
	}},
	"version": {usage: "version", run: func(m *migration.Migrator, log *zap.Logger, _ []string) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}},
	"force": {usage: "force <version>", args: 1, run: func(m *migration.Migrator, log *zap.Logger, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q", args[0])
		}
		log.Warn("Forcing migration version, the schema is not touched", zap.Int("version", v))
		return m.Force(v)
	}},
}

func main() {
	migrationsPath := flag.String("path", "migrations", "Directory new migrations are written to")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{Level: *logLevel, Format: "console", TimeFormat: "2006-01-02 15:04:05"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	command, rest := args[0], args[1:]
	log = log.With(zap.String("command", command))

	switch command {
	case "create":
		err = create(log, *migrationsPath, rest)
	case "list":
		err = list(log)
	default:
		err = runDB(log, command, rest)
	}
	if err != nil {
		log.Fatal("Migration command failed", zap.Error(err))
	}
}

func create(log *zap.Logger, dir string, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: migrate create <name> [description]")
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.Uint("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func list(log *zap.Logger) error {
	files, err := migration.ListMigrations(migrations.FS)
	if err != nil {
		return err
	}
	log.Info("Embedded migrations", zap.Int("count", len(files)))
	for _, f := range files {
		fmt.Printf("  %06d %s\n", f.Version, f.Name)
	}
	return nil
}

func runDB(log *zap.Logger, command string, args []string) error {
	cmd, ok := dbCommands[command]
	if !ok {
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
	if len(args) < cmd.args {
		return fmt.Errorf("usage: migrate %s", cmd.usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("SQL migrations target postgres, got driver %q; sqlite schemas are created on server start", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	m, err := migration.New(db, migrations.FS, log)
	if err != nil {
		return err
	}
	defer m.Close()

	return cmd.run(m, log, args)
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Billing ledger migration tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  goto <version>        Migrate to a specific version
  version               Show the current version
  force <version>       Set the version without migrating
  create <name> [desc]  Write a new up/down migration pair
  list                  List the migrations embedded in this binary

Flags:
  -path string          Directory for new migrations (default: migrations)
  -log-level string     debug, info, warn or error (default: info)

Environment:
  BILLING_DATABASE_HOST, BILLING_DATABASE_PORT, BILLING_DATABASE_USER,
  BILLING_DATABASE_PASSWORD, BILLING_DATABASE_DBNAME, BILLING_DATABASE_SSLMODE
`)
}

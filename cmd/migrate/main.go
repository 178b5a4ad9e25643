package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/erp/gstbilling/internal/infrastructure/config"
	"github.com/erp/gstbilling/internal/infrastructure/logger"
	"github.com/erp/gstbilling/internal/infrastructure/migration"
	"github.com/golang-migrate/migrate/v4/source"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const defaultMigrationsDir = "migrations"

func main() {
	var (
		migrationsPath string
		databaseURL    string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Directory of migration scripts (default: scripts embedded in the binary)")
	flag.StringVar(&databaseURL, "database-url", "", "postgres:// URL overriding the configured database")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Usage = printUsage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(2)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
		Service:    "gstbilling-migrate",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	err = run(log, migrationsPath, databaseURL, args)
	_ = log.Sync()
	if err != nil {
		log.Error("Migration command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func run(log *zap.Logger, migrationsPath, databaseURL string, args []string) error {
	command := args[0]
	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("migrations_path", displayPath(migrationsPath)),
	)

	switch command {
	case "create":
		return create(log, migrationsPath, args[1:])
	case "list":
		return list(migrationsPath)
	}

	m, err := openMigrator(log, migrationsPath, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	switch command {
	case "up":
		return m.Up()
	case "down":
		return m.Down()
	case "step":
		n, err := intArg(args, "step <n>")
		if err != nil {
			return err
		}
		return m.Steps(n)
	case "goto":
		n, err := intArg(args, "goto <version>")
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("version must not be negative: %d", n)
		}
		return m.GoTo(uint(n))
	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if version == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	case "status":
		return status(log, m, migrationsPath)
	case "force":
		n, err := intArg(args, "force <version>")
		if err != nil {
			return err
		}
		return m.Force(n)
	case "drop":
		if !hasFlag(args[1:], "confirm") {
			return errors.New("drop cancelled; run 'migrate drop -confirm' to confirm")
		}
		return m.Drop()
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func create(log *zap.Logger, migrationsPath string, args []string) error {
	if len(args) == 0 {
		return errors.New("migration name required; usage: migrate create <name> [description]")
	}
	description := ""
	if len(args) > 1 {
		description = args[1]
	}
	if migrationsPath == "" {
		migrationsPath = defaultMigrationsDir
	}

	mf, err := migration.CreateMigration(migrationsPath, args[0], description)
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

func list(migrationsPath string) error {
	if migrationsPath == "" {
		migrationsPath = defaultMigrationsDir
	}
	found, err := migration.ListMigrations(migrationsPath)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Println("No migrations found in", migrationsPath)
		return nil
	}
	for _, m := range found {
		marker := ""
		if !m.HasDown {
			marker = " (no down script)"
		}
		fmt.Printf("  %s%s\n", m.BaseName(), marker)
	}
	return nil
}

func status(log *zap.Logger, m *migration.Migrator, migrationsPath string) error {
	var (
		src source.Driver
		err error
	)
	if migrationsPath == "" {
		src, err = migration.EmbeddedSource()
	} else {
		src, err = source.Open("file://" + migrationsPath)
	}
	if err != nil {
		return err
	}
	defer src.Close()

	st, err := m.Status(src)
	if err != nil {
		return err
	}
	log.Info("Migration status",
		zap.Uint("version", st.Version),
		zap.Uint("latest", st.Latest),
		zap.Bool("dirty", st.Dirty),
		zap.Bool("pending", st.Pending()),
	)
	return nil
}

func intArg(args []string, usage string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("argument required; usage: migrate %s", usage)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", args[1])
	}
	return n, nil
}

func hasFlag(args []string, name string) bool {
	for _, arg := range args {
		if arg == "-"+name || arg == "--"+name {
			return true
		}
	}
	return false
}

func displayPath(path string) string {
	if path == "" {
		return "(embedded)"
	}
	return path
}

func printUsage() {
	fmt.Println(`GST Billing Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (negative rolls back)
  goto <version>        Migrate to a specific version
  version               Show the applied version
  status                Compare the applied version with the newest script
  force <version>       Record a version without running scripts
  drop -confirm         Drop all database objects
  create <name> [desc]  Create the next script pair in ./migrations
  list                  List script pairs in ./migrations

Flags:
  -path string          Directory of migration scripts (default: embedded)
  -database-url string  postgres:// URL used instead of the configured database
  -log-level string     Log level: debug, info, warn, error (default: info)

Database settings come from config.toml or ERP_DATABASE_* variables.`)
}

func openMigrator(log *zap.Logger, migrationsPath, databaseURL string) (*migration.Migrator, error) {
	if databaseURL != "" {
		return migration.NewFromURL(databaseURL, migrationsPath, log)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return migration.New(db, migrationsPath, log)
}

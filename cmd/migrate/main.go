package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/farmlabor-backend/pkg/config"
	"github.com/angelmondragon/farmlabor-backend/pkg/db"
	"github.com/angelmondragon/farmlabor-backend/pkg/logger"
	"github.com/angelmondragon/farmlabor-backend/pkg/migrate"
)

type migrateFlags struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	var flags migrateFlags
	flag.StringVar(&flags.cmd, "cmd", "up", "migration command: up|down|status|redo|version|create|validate")
	flag.StringVar(&flags.dir, "dir", "", "migrations directory; defaults to the embedded set ("+migrate.DefaultDir+" for create)")
	flag.StringVar(&flags.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&flags.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	// create and validate only touch the filesystem.
	switch flags.cmd {
	case "create":
		if flags.name == "" {
			exitf("missing -name for create")
		}
		if flags.dir == "" {
			flags.dir = migrate.DefaultDir
		}
		path, err := migrate.CreateSQLMigration(flags.dir, flags.name)
		if err != nil {
			exitf("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateFS(source(flags.dir)); err != nil {
			exitf("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": flags.cmd,
		"dir": flags.dir,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	migrator, err := migrate.New(sqlDB, source(flags.dir))
	requireResource(ctx, logg, "migrations", err)

	if flags.cmd == "status" {
		statuses, err := migrator.Status(ctx)
		if err != nil {
			logg.Error(ctx, "migration status failed", err)
			os.Exit(1)
		}
		for _, st := range statuses {
			applied := "-"
			if !st.AppliedAt.IsZero() {
				applied = st.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%-10s %-25s %s\n", st.State, applied, st.Source.Path)
		}
		return
	}

	applied, err := run(ctx, migrator, flags)
	for _, a := range applied {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"version":     a.Version,
			"file":        a.File,
			"direction":   a.Direction,
			"duration_ms": a.Took.Milliseconds(),
		}), "migration applied")
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(logg.WithField(ctx, "applied", len(applied)), "migration finished")
}

func run(ctx context.Context, m *migrate.Migrator, flags migrateFlags) ([]migrate.Applied, error) {
	switch flags.cmd {
	case "up":
		return m.Up(ctx)
	case "down":
		return m.Down(ctx)
	case "redo":
		return m.Redo(ctx)
	case "version":
		if flags.version == "" {
			return nil, fmt.Errorf("missing -version for version command")
		}
		return m.To(ctx, flags.version)
	default:
		return nil, fmt.Errorf("unknown -cmd value %q", flags.cmd)
	}
}

// source reads migrations from dir when given, otherwise from the binary.
func source(dir string) fs.FS {
	if dir == "" {
		return migrate.Embedded()
	}
	return os.DirFS(dir)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/CaioWing/clientforge/internal/config"
	"github.com/CaioWing/clientforge/internal/repository/postgres"
)

func migrateCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "database-url",
			Usage: "PostgreSQL connection string; overrides database.url",
		},
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations",
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Flags: flags,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, log, err := migrateConfig(cmd)
					if err != nil {
						return err
					}
					if err := postgres.RunMigrations(cfg.Database.URL); err != nil {
						return err
					}
					log.Info("migrations applied")
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "Roll back the last migration",
				Flags: flags,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg, log, err := migrateConfig(cmd)
					if err != nil {
						return err
					}
					if err := postgres.MigrateDown(cfg.Database.URL); err != nil {
						return err
					}
					log.Info("rolled back one migration")
					return nil
				},
			},
		},
	}
}

func migrateConfig(cmd *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if v := cmd.String("database-url"); v != "" {
		cfg.Database.URL = v
	}
	if cfg.Database.URL == "" {
		return nil, nil, fmt.Errorf("database URL is required (set CLIENTFORGE_DATABASE_URL or --database-url)")
	}
	return cfg, log, nil
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/xsx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase writes the config template when none exists, then initializes the database and
// runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := r.configPath
	if configPath == "" {
		configPath = "config.toml"
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				r.setConfig(config)
			}
		}
	}

	config := r.config
	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	r.logger.Info("running database migrations")
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", config.Database.Path)

	r.writePlain("✓ Setup complete\n")
	r.writePlain("Config: %s\n", configPath)
	r.writePlain("Database: %s\n", config.Database.Path)
	if config.Source.Token == "" || config.Destination.Token == "" {
		r.writePlain("\nNext steps:\n")
		r.writePlain("1. Set [source] and [destination] domain and token in %s (or XSX_SOURCE_TOKEN / XSX_DEST_TOKEN)\n", configPath)
		r.writePlain("2. Run 'xsx check --account destination' to verify access\n")
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"

	"costtrack-backend/config"
	"costtrack-backend/database"
	"costtrack-backend/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "costctl",
	Short: "Administration CLI for the cost tracking backend",
	Long: `costctl runs maintenance tasks against the cost tracking database:
migrations, admin bootstrap, document counters, exports and the
Google Sheets sync.

Configuration is read from the environment (and a .env file if present),
the same way the API server reads it.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and opens the database.
func bootstrap(ctx context.Context) (*config.Config, *gorm.DB, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return nil, nil, err
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.ConnectRedis(ctx, cfg.RedisAddress); err != nil {
		log := logger.WithComponent("cmd")
		log.Warn().Err(err).Msg("redis unavailable; distributed locks disabled")
	}
	return cfg, db, nil
}

package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/trashposts/post-search/internal/config"
	"github.com/trashposts/post-search/internal/logger"
)

// bootstrap loads .env files, the config and the logger shared by every command.
func bootstrap() (*config.Config, *zap.Logger, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, logger.New(cfg.LogLevel, cfg.AppEnv()), nil
}

package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/termbridge/internal/bridge"
	"github.com/sandevgo/termbridge/internal/config"
	"github.com/sandevgo/termbridge/internal/core"
	"github.com/sandevgo/termbridge/internal/transport/httpapi"
	"github.com/sandevgo/termbridge/internal/transport/telegram"
	"github.com/sandevgo/termbridge/pkg/log"
	"github.com/sandevgo/termbridge/pkg/srv"
)

func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)
	services := make([]srv.Service, 0)

	// init env
	err := initEnv(ctx, config.GetRuntimePath())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)

	// 2. Session registry over the terminal child process
	sessions := bridge.NewRegistry(newChildFactory(appCfg))
	services = append(services, srv.NewCleanup(sessions.Close))

	// Spawn the shared default session now so a broken child binary
	// fails startup instead of the first request.
	if _, err := sessions.GetOrCreate(ctx, core.DefaultSession); err != nil {
		logger.Fatal().Err(err).Msg("failed to spawn default terminal session")
	}

	// 3. Transports
	transports, err := initTransports(ctx, appCfg, sessions)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize transports")
	}
	services = append(services, transports...)

	return services
}

// newChildFactory builds supervisors that re-exec this binary with the
// term subcommand, unless the child command is overridden by config.
func newChildFactory(cfg *config.AppConfig) bridge.Factory {
	command := cfg.ChildCommand
	args := cfg.ChildArgs
	if command == "" {
		exe, err := os.Executable()
		if err != nil {
			exe = os.Args[0]
		}
		command = exe
		args = []string{"term", "--no-color"}
	}

	return func(key string) *bridge.Supervisor {
		return bridge.New(bridge.Config{
			Command:    command,
			Args:       args,
			Env:        []string{"TB_SESSION=" + key},
			Prompt:     cfg.Prompt,
			RunTimeout: cfg.RunTimeout,
		})
	}
}

func initTransports(ctx context.Context, cfg *config.AppConfig, sessions *bridge.Registry) ([]srv.Service, error) {
	var services []srv.Service

	// HTTP + WebSocket
	if cfg.EnableHTTP {
		srvCfg := config.NewServerConfig(ctx)
		services = append(services, httpapi.NewServer(ctx, srvCfg, sessions, cfg.GetUploadPath()))
	}

	// Telegram Bot
	if cfg.EnableTelegram {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, sessions)
		if err != nil {
			return nil, err
		}
		services = append(services, bot)
	}

	return services, nil
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tutorlink/chat-server/internal/app"
	"github.com/tutorlink/chat-server/internal/config"
	"github.com/tutorlink/chat-server/internal/log"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "tutorchat-server",
	Short: "Realtime chat server for the tutoring marketplace.",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}

func runServer() {
	bootstrapLog := log.New("info")

	cfg, cfgPath, err := config.Load(bootstrapLog, configPath)
	if err != nil {
		bootstrapLog.Fatal().Err(err).Msg("failed to load config")
	}

	logger := log.New(cfg.LogLevel)
	logger.Info().Str("config", cfgPath).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize application")
	}

	logger.Info().Str("addr", cfg.Addr).Msg("starting chat server")
	if err := application.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dialer/internal/ari"
	"github.com/nextlevelbuilder/dialer/internal/callcenter"
	"github.com/nextlevelbuilder/dialer/internal/config"
	"github.com/nextlevelbuilder/dialer/internal/router"
	"github.com/nextlevelbuilder/dialer/internal/store"
	"github.com/nextlevelbuilder/dialer/internal/telemetry"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the call-routing core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logLevel := cfg.LogLevel
	if verbose {
		logLevel = "debug"
	}
	configureLogging(logLevel)

	backend := store.New(store.Config{Addr: cfg.RedisAddr(), Password: cfg.RedisPassword})
	defer backend.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := backend.Ping(pingCtx); err != nil {
		return err
	}

	repo := callcenter.New(backend)

	dialCtx, cancelDial := context.WithTimeout(ctx, 30*time.Second)
	defer cancelDial()
	media, err := ari.Dial(dialCtx, cfg.ARIHost, cfg.ARIPort, cfg.ARIUsername, cfg.ARIPassword)
	if err != nil {
		return err
	}
	defer media.Close()

	tel, err := telemetry.New()
	if err != nil {
		return err
	}

	rt := router.New(repo, media, tel, cfg.ARIAppName, 0)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("dialer: routing core started", "ari_app", cfg.ARIAppName, "ari_addr", cfg.ARIAddr())
	err = rt.Run(runCtx)
	if runCtx.Err() != nil {
		slog.Info("dialer: shutting down")
		return nil
	}
	return err
}

func configureLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

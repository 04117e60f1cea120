package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mymmrac/telego"
	"golang.org/x/sync/errgroup"

	"github.com/clipgrab/tikrelay/internal/channels/telegram"
	"github.com/clipgrab/tikrelay/internal/config"
	"github.com/clipgrab/tikrelay/internal/keepalive"
	"github.com/clipgrab/tikrelay/internal/pipeline"
	"github.com/clipgrab/tikrelay/internal/queue"
	"github.com/clipgrab/tikrelay/internal/ratelimit"
	"github.com/clipgrab/tikrelay/internal/resolver"
	"github.com/clipgrab/tikrelay/internal/store"
	"github.com/clipgrab/tikrelay/internal/telemetry"
	"github.com/clipgrab/tikrelay/internal/verify"
)

func runBot() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, Version)
	if err != nil {
		slog.Error("failed to set up telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	bot, err := telego.NewBot(cfg.Telegram.Token)
	if err != nil {
		slog.Error("failed to create telegram bot", "error", err)
		os.Exit(1)
	}

	limiter := ratelimit.New(cfg.Relay.RateWindow(), cfg.Relay.RateLimit)
	st := store.New(cfg.Telegram.AdminID)
	chain := resolver.NewChain(resolver.NewNormalizer(), resolver.FromNames(cfg.Relay.Providers)...)
	verifier := verify.New(cfg.Relay.MaxUploadMiB)
	sender := telegram.NewSender(bot)
	pipe := pipeline.New(chain, verifier, sender, st, cfg.Relay.DownloadDir)
	sched := queue.New(cfg.Relay.Concurrency, pipe)
	ch := telegram.New(bot, cfg.Telegram, limiter, st, sched)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return keepalive.New(cfg.KeepAlive.Host, cfg.KeepAlive.Port).Start(gctx)
	})
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})

	if err := ch.Start(gctx); err != nil {
		slog.Error("failed to start telegram channel", "error", err)
		cancel()
		g.Wait()
		os.Exit(1)
	}

	slog.Info("tikrelay started",
		"version", Version,
		"concurrency", cfg.Relay.Concurrency,
		"providers", cfg.Relay.Providers,
	)

	<-gctx.Done()
	slog.Info("graceful shutdown initiated")

	if err := ch.Stop(context.Background()); err != nil {
		slog.Warn("telegram channel stop", "error", err)
	}
	if err := g.Wait(); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("tikrelay stopped")
}

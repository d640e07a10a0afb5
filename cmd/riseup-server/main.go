package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"

	"riseup-backend/internal/channels"
	"riseup-backend/internal/chatbot"
	"riseup-backend/internal/config"
	"riseup-backend/internal/logging"
	"riseup-backend/internal/store"
)

func main() {
	logging.Preinit()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	closeLogs, err := logging.Init(cfg)
	if err != nil {
		slog.Error("logging init failed", "error", err)
		os.Exit(1)
	}
	defer closeLogs()

	if err := run(cfg); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	di := do.New()
	defer func() {
		if err := di.Shutdown(); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	do.ProvideValue(di, cfg)
	provide(di)

	httpServer, err := do.Invoke[*http.Server](di)
	if err != nil {
		return err
	}
	pruner, err := do.Invoke[*store.Pruner](di)
	if err != nil {
		return err
	}

	resolver := do.MustInvoke[*chatbot.Resolver](di)
	history := do.MustInvoke[transcripts](di).Transcript

	var bots []interface{ Run(context.Context) error }
	if cfg.Discord.Token != "" {
		bot, err := channels.NewDiscord(cfg.Discord, cfg.Chat.SiteBaseURL, resolver, history)
		if err != nil {
			return err
		}
		bots = append(bots, bot)
	}
	if cfg.Telegram.Token != "" {
		bot, err := channels.NewTelegram(cfg.Telegram, cfg.Chat.SiteBaseURL, resolver, history)
		if err != nil {
			return err
		}
		bots = append(bots, bot)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("riseup chatbot listening", "addr", httpServer.Addr, "store", cfg.Store.Driver, "mcp", cfg.MCPEnabled)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return pruner.Run(ctx) })
	for _, bot := range bots {
		g.Go(func() error { return bot.Run(ctx) })
	}

	return g.Wait()
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinforge/internal/api"
	"coinforge/internal/auth"
	"coinforge/internal/bot"
	"coinforge/internal/config"
	"coinforge/internal/db"
	"coinforge/internal/feed"
	"coinforge/internal/game"
	"coinforge/internal/scheduler"
	"coinforge/internal/store"
	"coinforge/internal/transport/discord"
	"coinforge/internal/transport/whatsapp"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	st, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("store open failed", "store", cfg.Store, "err", err)
		os.Exit(1)
	}
	defer st.Close()

	verifier, err := auth.NewTokenVerifier(cfg.APITokenHash)
	if err != nil {
		logger.Error("api token hash invalid", "err", err)
		os.Exit(1)
	}

	hub := feed.NewHub()
	var sink game.PriceSink = hub
	if cfg.RedisURL != "" {
		client, err := feed.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("redis connect failed", "err", err)
			os.Exit(1)
		}
		defer client.Close()
		sink = feed.NewRedisPublisher(client, cfg.PriceChannel)
		bridge := feed.NewRedisBridge(client, cfg.PriceChannel, hub, logger)
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error("price bridge stopped", "err", err)
			}
		}()
	}

	gameSvc := game.NewService(st, logger,
		game.WithSettings(cfg.GameSettings()),
		game.WithPriceSink(sink),
	)
	if err := gameSvc.SeedDefaults(ctx); err != nil {
		logger.Error("seed defaults failed", "err", err)
		os.Exit(1)
	}

	supervisor := scheduler.New(logger)
	tick := scheduler.Job{
		Name:       "market-tick",
		Every:      cfg.MarketTickEvery,
		Task:       gameSvc.RunMarketTick,
		Retries:    3,
		MinBackoff: 2 * time.Second,
		MaxBackoff: 30 * time.Second,
	}
	if cfg.RunOnce {
		if err := supervisor.RunOnce(ctx, tick); err != nil {
			logger.Error("tick failed", "err", err)
			os.Exit(1)
		}
		logger.Info("market run-once completed")
		return
	}
	go func() {
		if err := supervisor.Run(ctx, tick); err != nil {
			logger.Error("market scheduler stopped", "err", err)
		}
	}()

	router := bot.NewRouter(gameSvc, logger)
	if cfg.DiscordToken != "" {
		dc, err := discord.New(cfg.DiscordToken, router, logger)
		if err != nil {
			logger.Error("discord setup failed", "err", err)
			os.Exit(1)
		}
		go func() {
			if err := dc.Run(ctx); err != nil {
				logger.Error("discord bot stopped", "err", err)
			}
		}()
	}
	if cfg.WhatsAppEnabled {
		wa, err := whatsapp.New(ctx, cfg.WhatsAppStoreDSN, router, logger)
		if err != nil {
			logger.Error("whatsapp setup failed", "err", err)
			os.Exit(1)
		}
		go func() {
			if err := wa.Run(ctx); err != nil {
				logger.Error("whatsapp bot stopped", "err", err)
			}
		}()
	}

	server := api.New(cfg, logger, verifier, gameSvc, hub)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("coinforge api listening", "addr", cfg.Addr, "store", cfg.Store, "volatility", cfg.MarketVolatility)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg config.APIConfig) (store.Store, error) {
	switch cfg.Store {
	case "memory":
		return store.NewMemory(), nil
	case "sqlite":
		gdb, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store.NewSQLite(gdb)
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st, err := store.NewPostgres(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

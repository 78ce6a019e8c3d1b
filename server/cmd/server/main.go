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

	flag "github.com/spf13/pflag"

	"github.com/sysinv/sysinv/server/internal/api"
	"github.com/sysinv/sysinv/server/internal/auth"
	"github.com/sysinv/sysinv/server/internal/config"
	"github.com/sysinv/sysinv/server/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file; empty uses built-in defaults")
	port := flag.Int("port", 0, "override server.http_port")
	logLevel := flag.String("log-level", "info", "debug | info | warn | error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("sysinv-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.HTTPPort = *port
	}

	keys := cfg.Server.Auth.Keys()
	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"auth_keys", len(keys),
		"inventory_ttl", cfg.Server.Inventory.TTL,
	)
	if cfg.Server.Auth.Mode == "apikey" && len(keys) == 0 {
		slog.Warn("auth mode is apikey but no keys are set; accepting all agents",
			"key_env", cfg.Server.Auth.KeyEnv)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inventory store with background TTL eviction.
	st := store.New(cfg.Server.Inventory.TTL)
	go st.Run(ctx)

	handler := api.New(st, api.Options{
		MaxBodyBytes: cfg.Server.Inventory.MaxBodyBytes,
		Auth: auth.APIKeyMiddleware(
			cfg.Server.Auth.Mode,
			cfg.Server.Auth.EffectiveHeader(),
			keys,
		),
	})

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("sysinv-server shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/taskhive/taskhive/internal/app"
	"github.com/taskhive/taskhive/internal/config"
	"github.com/taskhive/taskhive/internal/discord"
	"github.com/taskhive/taskhive/internal/httpapi"
	"github.com/taskhive/taskhive/internal/storage/file"
	"github.com/taskhive/taskhive/internal/storage/postgres"
	"github.com/taskhive/taskhive/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Missing .env is fine; environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}).WithField("component", "server")

	stores, closeStores, err := buildStores(cfg, log)
	if err != nil {
		log.WithError(err).Error("storage init failed")
		os.Exit(1)
	}
	defer closeStores()

	application := app.New(stores, log)

	var interactions http.Handler
	if cfg.Auth.DiscordPublicKey != "" {
		interactions = discord.NewHandler(application, cfg.Auth.DiscordPublicKey, nil, log)
	} else {
		log.Warn("DISCORD_PUBLIC_KEY not set; interactions endpoint disabled")
	}

	handler := httpapi.NewHandler(application, httpapi.Options{
		BotSecret:    cfg.Auth.BotSecret,
		JWTSecret:    cfg.Auth.JWTSecret,
		Dev:          cfg.Dev,
		Log:          log,
		Interactions: interactions,
		RateLimit:    50,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).WithField("backend", cfg.Storage.Backend).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.WithError(err).Error("server stopped")
		os.Exit(1)
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
}

// buildStores selects the persistence backend from config. The returned
// closer releases backend resources and is safe to call once.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Storage.DatabaseURL)
		if err != nil {
			return app.Stores{}, nil, fmt.Errorf("open postgres: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return app.Stores{}, nil, fmt.Errorf("ping postgres: %w", err)
		}

		pg := postgres.New(db)
		return app.Stores{
			Users:    pg,
			Projects: pg,
			Tasks:    pg,
			Invites:  pg,
			Activity: pg,
		}, func() { db.Close() }, nil

	case "file":
		fs, err := file.Open(cfg.Storage.FilePath)
		if err != nil {
			return app.Stores{}, nil, fmt.Errorf("open file store: %w", err)
		}
		log.WithField("path", cfg.Storage.FilePath).Info("using file storage")
		return app.Stores{
			Users:    fs,
			Projects: fs,
			Tasks:    fs,
			Invites:  fs,
			Activity: fs,
		}, func() {}, nil

	default:
		log.Warn("using in-memory storage; data is lost on restart")
		return app.Stores{}, func() {}, nil
	}
}

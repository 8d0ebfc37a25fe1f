package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/sentiscope/backend/internal/app"
	"github.com/zhouzirui/sentiscope/backend/internal/config"
	"github.com/zhouzirui/sentiscope/backend/internal/handler"
	"github.com/zhouzirui/sentiscope/backend/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.New(nil, os.Getenv("LOG_LEVEL"))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}
	log = logging.New(nil, cfg.Log.Level)

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize services")
		return err
	}
	defer services.Close()

	router := handler.NewRouter(handler.Deps{
		Analyzer:     services.Analyzer,
		Pipeline:     services.Pipeline,
		Registry:     services.Registry,
		Conversation: services.Conversation,
		Log:          log,
	})

	if err := startServer(ctx, cfg.Server, router, log); err != nil {
		log.Error().Err(err).Msg("server error")
		return err
	}
	return nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *logging.Logger) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("sentiscope backend listening")
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

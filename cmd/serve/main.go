// Command serve exposes the orchestrator over HTTP.
//
// Endpoints:
//
//	POST /v1/prompt    submit a prompt, await its result
//	PUT  /v1/keys      apply API key updates atomically
//	GET  /v1/models    list available models per provider
//	PUT  /v1/fallback  replace the model fallback preference
//	GET  /healthz      liveness probe
//
// API keys are read from ALLM_<PROVIDER>_API_KEY environment variables
// (a .env file is honored) and can be changed at runtime via PUT /v1/keys.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/allmhq/allm/backend"
	"github.com/allmhq/allm/config"
	"github.com/allmhq/allm/failover"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	godotenv.Load()

	log, err := newLogger(*debug)
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	b := backend.New(backend.Config{
		Failover: failover.Config{Spacing: cfg.Failover.Spacing()},
		Logger:   log,
	})

	if specs := config.APIKeysFromEnv(); len(specs) > 0 {
		ack, err := b.SetAPIKeys(specs)
		if err != nil {
			log.Fatal("seed keys", zap.Error(err))
		}
		if _, err := ack.Await(context.Background()); err != nil {
			log.Fatal("seed keys", zap.Error(err))
		}
		log.Info("seeded API keys from environment", zap.Int("count", len(specs)))
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: newRouter(b, log),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if _, err := b.Shutdown().Await(shutdownCtx); err != nil {
		log.Warn("backend shutdown", zap.Error(err))
	}
	log.Info("stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

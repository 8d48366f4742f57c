package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nijaru/clipzaar/config"
	"github.com/nijaru/clipzaar/handlers"
	"github.com/nijaru/clipzaar/logger"
	"github.com/nijaru/clipzaar/middleware"
	"github.com/nijaru/clipzaar/services"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("Failed to load .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := services.Build(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize services")
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.WithError(err).Error("Database shutdown error")
		}
	}()

	opts := []handlers.Option{
		handlers.WithLogger(log),
		handlers.WithRequestTimeout(cfg.Server.RequestTimeout),
	}
	if svc.Archive != nil {
		opts = append(opts, handlers.WithArchiver(svc.Archive))
	}
	h := handlers.New(svc.Pipeline, svc.Chain, opts...)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      serverHandler(h.Routes(), cfg, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("Server shutdown error")
		}
	}()

	log.WithField("port", cfg.Server.Port).Info("Starting server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("Server error")
	}
}

// serverHandler wraps routes in the middleware chain. RequestID runs first so
// every later layer can log the ID.
func serverHandler(routes http.Handler, cfg *config.Config, log *logrus.Logger) http.Handler {
	return middleware.Chain(routes,
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logging(log),
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.RateLimit(cfg.Server.RateLimitInterval, cfg.Server.RateLimit),
	)
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"blog-portal/internal/app"
	"blog-portal/internal/config"
	"blog-portal/internal/lib/logger"
	"blog-portal/internal/lib/logger/sl"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg := config.MustLoad()

	log := logger.New(cfg.Env)

	log.Debug("initializing server...", slog.String("addr", cfg.HTTPServer.Address))

	// Init storage, services and handlers
	portal, err := app.New(log, cfg)
	if err != nil {
		log.Error("error initializing app", sl.Error(err))
		os.Exit(1)
	}
	defer portal.Close()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go func() {
		if err := portal.Web.Watch(ctx); err != nil {
			log.Error("error watching templates", sl.Error(err))
		}
	}()

	srv := http.Server{
		Handler:      portal,
		Addr:         cfg.HTTPServer.Address,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	var diag *http.Server
	if cfg.DiagServer.Address != "" {
		r := chi.NewRouter()
		r.Use(middleware.Recoverer)
		r.Handle("/metrics", portal.Metrics.Handler())

		diag = &http.Server{
			Handler: r,
			Addr:    cfg.DiagServer.Address,
		}
	}

	log.Debug("server initialized")
	log.Info("server is running...", slog.String("addr", cfg.HTTPServer.Address))

	// Gracefully shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGTERM, syscall.SIGINT, os.Interrupt)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting server", sl.Error(err))
			done <- syscall.SIGTERM
		}
	}()

	if diag != nil {
		go func() {
			log.Info("diag server is running...", slog.String("addr", diag.Addr))
			if err := diag.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("error starting diag server", sl.Error(err))
			}
		}()
	}

	<-done
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error stopping server", sl.Error(err))
	}
	if diag != nil {
		if err := diag.Shutdown(shutdownCtx); err != nil {
			log.Error("error stopping diag server", sl.Error(err))
		}
	}

	log.Info("server stopped")
}

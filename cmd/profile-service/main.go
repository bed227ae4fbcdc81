package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"healthchat/internal/auth"
	"healthchat/internal/config"
	"healthchat/internal/handlers"
	"healthchat/internal/metrics"
	"healthchat/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	setupLogging(cfg.Logging)

	svc, err := service.NewBuilder(cfg).Build()
	if err != nil {
		logrus.WithError(err).Fatal("failed to build service")
	}
	defer svc.Close()

	ph := handlers.NewProfileHandler(svc.Store)
	hh := handlers.NewHealthHandler(svc)
	jwtmw := auth.NewJWTMiddleware(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)

	r := mux.NewRouter()
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz/live", hh.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/healthz/ready", hh.Readiness).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/profiles/{user_id}", ph.GetProfile).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/profiles/{user_id}/known", ph.GetKnownProfile).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/profiles/{user_id}/properties/{key}", ph.GetProperty).Methods(http.MethodGet, http.MethodOptions)
	api.Handle("/profile/properties/{key}", jwtmw.Authenticate(http.HandlerFunc(ph.PutProperty))).Methods(http.MethodPut, http.MethodOptions)
	api.Handle("/profile/properties/{key}", jwtmw.Authenticate(http.HandlerFunc(ph.DeleteProperty))).Methods(http.MethodDelete, http.MethodOptions)
	api.Handle("/cache/flush", jwtmw.Authenticate(http.HandlerFunc(ph.FlushCache))).Methods(http.MethodPost, http.MethodOptions)

	var handler http.Handler = r
	handler = jwtmw.OptionalAuthenticate(handler)
	handler = handlers.CORSMiddleware(handler)
	handler = metrics.Middleware("api", handler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Service.Port),
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logrus.WithField("addr", srv.Addr).Info("starting profile service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("listen failed")
		}
	}()

	<-ctx.Done()
	logrus.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("server shutdown failed")
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logrus.SetOutput(os.Stdout)
}

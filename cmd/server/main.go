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

	accountrepo "city-report/backend/internal/account/repository"
	"city-report/backend/internal/audit"
	auditrepo "city-report/backend/internal/audit/repository"
	authhandler "city-report/backend/internal/auth/handler"
	"city-report/backend/internal/auth/service"
	"city-report/backend/internal/config"
	"city-report/backend/internal/db"
	"city-report/backend/internal/mail"
	"city-report/backend/internal/security"
	"city-report/backend/internal/server"
	sessionrepo "city-report/backend/internal/session/repository"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config", "err", err)
		os.Exit(1)
	}

	priv, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		logger.Error("parse private key", "err", err)
		os.Exit(1)
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		logger.Error("parse public key", "err", err)
		os.Exit(1)
	}
	tokens := security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	var mailer mail.Sender = mail.NoopSender{}
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, cfg.AppURL, logger)
	}

	svc := service.NewAuthService(
		accountrepo.NewPostgresRepository(pool),
		sessionrepo.NewPostgresRepository(pool),
		security.NewHasher(cfg.BcryptCost),
		tokens,
		audit.NewLogger(auditrepo.NewPostgresRepository(pool), logger),
		mailer,
	)

	router := server.NewRouter(authhandler.New(svc, cfg.CookieSecure), tokens, svc, server.Options{Logger: logger})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}
	logger.Info("http server stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"lfpappeals/web/internal/apiclient"
	"lfpappeals/web/internal/app"
	"lfpappeals/web/internal/config"
	"lfpappeals/web/internal/email"
	"lfpappeals/web/internal/evidence"
	"lfpappeals/web/internal/render"
	"lfpappeals/web/internal/session"
)

func main() {
	cfg := config.Load()
	configureLogging(cfg.LogLevel)
	ctx := context.Background()

	if err := cfg.CheckCookieSecret(); err != nil {
		log.WithError(err).Fatal("refusing to start")
	}
	if cfg.CookieSecret == config.DevCookieSecret {
		log.Warn("session cookies are signed with the development secret")
	}

	sessions, err := session.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
	if err != nil {
		log.WithError(err).Fatal("redis connection failed")
	}
	defer sessions.Close()

	evidenceStore, err := evidence.NewMinioStore(ctx, evidence.Config{
		Endpoint:  cfg.EvidenceEndpoint,
		AccessKey: cfg.EvidenceAccessKey,
		SecretKey: cfg.EvidenceSecretKey,
		Bucket:    cfg.EvidenceBucket,
		UseSSL:    cfg.EvidenceUseSSL,
	})
	if err != nil {
		log.WithError(err).Fatal("evidence storage unavailable")
	}

	renderer, err := render.New()
	if err != nil {
		log.WithError(err).Fatal("templates failed to parse")
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		log.Warn("SMTP is not configured; appeal emails will not be sent")
	}
	if cfg.DevUserEmail != "" {
		log.WithField("email", cfg.DevUserEmail).Warn("development sign-in is enabled")
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	server := app.NewServer(cfg, app.Dependencies{
		Sessions:  sessions,
		Renderer:  renderer,
		Appeals:   apiclient.NewAppealsClient(cfg.AppealsAPIURL, httpClient),
		Penalties: apiclient.NewPenaltiesClient(cfg.PenaltiesAPIURL, httpClient),
		Companies: apiclient.NewCompanyProfileClient(cfg.CompanyProfileAPIURL, httpClient),
		Email:     mailer,
		Evidence:  evidenceStore,
		Health:    map[string]app.Pinger{"redis": sessions},
	})

	httpServer := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.WebAddr).Info("appeals web listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
}

func configureLogging(level string) {
	log.SetFormatter(&log.JSONFormatter{})
	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown LOG_LEVEL, using info")
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}

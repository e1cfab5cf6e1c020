package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"journal/api/internal/app"
	"journal/api/internal/auth"
	"journal/api/internal/config"
	"journal/api/internal/export"
	"journal/api/internal/gitrepo"
	"journal/api/internal/journal"
	"journal/api/internal/logger"
	"journal/api/internal/metrics"
	"journal/api/internal/notify"
	"journal/api/internal/search"
	"journal/api/internal/session"
	"journal/api/internal/store"
	"journal/api/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zlog *zap.Logger) error {
	ctx := context.Background()

	editPolicy, err := workflow.ParseEditPolicy(cfg.EditPolicy)
	if err != nil {
		return err
	}

	pool, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := store.ApplyMigrations(cfg.DatabaseURL); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	client := journal.New(store.NewPostgres(pool),
		journal.WithLogger(zlog.Named("journal")),
		journal.WithMetrics(collector),
		journal.WithSlotPrecondition(cfg.SlotPrecondition),
	)

	rdb, err := auth.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	secret := []byte(cfg.JWTSecret)
	sessions := session.NewRegistry(func(key string) *session.Store {
		return session.New(auth.NewClient(secret, auth.NewRedisPersistence(rdb, key)), client, zlog.Named("session"))
	})
	defer sessions.Close()

	if err := os.MkdirAll(cfg.ReposDir, 0o755); err != nil {
		return err
	}
	history := gitrepo.New(cfg.ReposDir)

	var engine search.Engine
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, zlog.Named("search"))
		defer meili.Close()
		engine = meili
	}
	searchService := search.NewService(engine, client, collector, zlog.Named("search"))

	var objects export.ObjectStore
	if strings.TrimSpace(cfg.S3Endpoint) != "" {
		minioStore, err := export.NewMinioStore(ctx, export.MinioConfig{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			zlog.Warn("object storage disabled", zap.Error(err))
		} else {
			objects = minioStore
		}
	}
	exporter := export.NewService(client, export.ChromePrinter{}, objects, zlog.Named("export"))

	mailer := notify.New(notify.Config{
		Host:          cfg.SMTPHost,
		Port:          cfg.SMTPPort,
		Username:      cfg.SMTPUsername,
		Password:      cfg.SMTPPassword,
		From:          cfg.SMTPFrom,
		FromName:      cfg.SMTPFromName,
		SkipTLSVerify: cfg.SMTPSkipTLSVerify,
		BaseURL:       cfg.PublicURL,
	}, zlog.Named("notify"))

	service := app.NewService(client,
		app.WithHistory(history),
		app.WithSearch(searchService),
		app.WithExporter(exporter),
		app.WithNotifier(mailer),
		app.WithPinger(pool),
		app.WithMetrics(collector),
		app.WithLogger(zlog.Named("app")),
		app.WithEditPolicy(editPolicy),
	)

	httpServer := app.NewHTTPServer(service, sessions, app.HTTPConfig{
		CORSOrigin:    cfg.CORSOrigin,
		SessionCookie: cfg.SessionCookie,
		SecureCookie:  strings.HasPrefix(cfg.PublicURL, "https://"),
		RateLimit:     rate.Limit(cfg.RateLimit),
		RateBurst:     cfg.RateBurst,
		Metrics:       metrics.Handler(registry),
	})
	defer httpServer.Close()

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info("journal api listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		zlog.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

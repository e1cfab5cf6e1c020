// Command expire-slots marks overdue claimed review slots as expired. It runs
// once and exits, so a scheduler (cron, a Kubernetes CronJob) decides when.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"journal/api/internal/config"
	"journal/api/internal/journal"
	"journal/api/internal/logger"
	"journal/api/internal/slotexpiry"
	"journal/api/internal/store"
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("open database", zap.Error(err))
	}
	defer pool.Close()

	client := journal.New(store.NewPostgres(pool),
		journal.WithLogger(zlog.Named("journal")),
		journal.WithSlotPrecondition(cfg.SlotPrecondition),
	)
	report, err := slotexpiry.New(client, time.Now, zlog).Run(ctx)
	if err != nil {
		zlog.Error("slot expiry failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)

	if err != nil || len(report.Failed) > 0 {
		pool.Close()
		_ = zlog.Sync()
		os.Exit(1)
	}
}

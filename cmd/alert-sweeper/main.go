// cmd/alert-sweeper/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"catalyst-alerts/internal/alert"
	"catalyst-alerts/internal/channels"
	awsclients "catalyst-alerts/internal/common/aws"
	"catalyst-alerts/internal/common/config"
	"catalyst-alerts/internal/common/database"
	"catalyst-alerts/internal/common/logger"
	"catalyst-alerts/internal/common/observability"
	"catalyst-alerts/internal/common/slack"
	"catalyst-alerts/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	serve := flag.Bool("serve", false, "run the HTTP trigger server instead of a one-shot sweep")
	purge := flag.Bool("purge", false, "delete notification records past retention and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting alert sweeper...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("alert-sweeper")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		// The tier cache is an optimization; tier reads fall through to Postgres.
		zapLog.Warn("redis unavailable, continuing without tier cache", zap.Error(err))
		rdb = nil
	} else {
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")
	}

	ledger := store.NewLedger(pg.DB)

	if *purge {
		cutoff := time.Now().UTC().AddDate(0, 0, -cfg.Alerts.RetentionDays)
		deleted, err := ledger.PurgeOlderThan(ctx, cutoff)
		if err != nil {
			zapLog.Fatal("purge failed", zap.Error(err))
		}
		zapLog.Info("purge completed",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
		return
	}

	registry := channels.NewRegistry()
	channelTimeout := config.GetDuration(cfg.Alerts.ChannelTimeout)

	if cfg.Channels.Email.Enabled {
		sesClient, err := awsclients.NewSESClient(ctx, cfg.Channels.AWS.Region)
		if err != nil {
			zapLog.Fatal("SES client init failed", zap.Error(err))
		}
		registry.Register(channels.NewEmailChannel(sesClient, cfg.Channels.Email.FromEmail))
	}
	if cfg.Channels.SMS.Enabled {
		snsClient, err := awsclients.NewSNSClient(ctx, cfg.Channels.AWS.Region)
		if err != nil {
			zapLog.Fatal("SNS client init failed", zap.Error(err))
		}
		registry.Register(channels.NewSMSChannel(snsClient, cfg.Channels.SMS.SenderID))
	}
	if cfg.Channels.Slack.Enabled {
		registry.Register(channels.NewSlackChannel(slack.NewWebhookClient(channelTimeout)))
	}
	zapLog.Info("channels registered", zap.Strings("channels", registry.Names()))

	var tierCache *redis.Client
	if rdb != nil {
		tierCache = rdb.Client
	}
	prefStore := store.NewPreferenceStore(pg.DB, tierCache, time.Duration(cfg.Alerts.TierCacheTTL)*time.Second)
	searchStore := store.NewSearchStore(pg.DB)
	catalogStore := store.NewCatalogStore(pg.DB)

	gate := alert.NewPolicyGate(ledger, log)
	scanner := alert.NewScanner(catalogStore, ledger, cfg.Alerts.MaxMatchesPerSweep, log)
	dispatcher := alert.NewDispatcher(registry, prefStore, gate, ledger, channelTimeout, cfg.Alerts.DefaultDailyLimit, log)
	coordinator := alert.NewCoordinator(searchStore, scanner, dispatcher, cfg.App.BaseURL, cfg.Alerts.SweepConcurrency, log)

	if *serve {
		runServer(ctx, cfg, coordinator, obs, zapLog)
		return
	}

	stats, err := coordinator.RunSweep(ctx)
	obs.RecordSweep(ctx, stats.Status)
	obs.RecordSweepDuration(ctx, stats.CompletedAt.Sub(stats.StartedAt), stats.Status)

	report, _ := json.Marshal(stats)
	fmt.Println(string(report))

	if err != nil || stats.Status == alert.StatusFailed {
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg *config.Config, coordinator *alert.Coordinator, obs *observability.Observability, zapLog *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		stats, err := coordinator.RunSweep(r.Context())
		obs.RecordSweep(r.Context(), stats.Status)
		obs.RecordSweepDuration(r.Context(), stats.CompletedAt.Sub(stats.StartedAt), stats.Status)

		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(stats)
	})

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
	}

	go func() {
		zapLog.Info("trigger server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("server shutdown error", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}

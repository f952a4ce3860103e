package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"CryptoSentinel/internal/api"
	"CryptoSentinel/internal/calculator"
	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/config"
	"CryptoSentinel/internal/detector"
	"CryptoSentinel/internal/history"
	"CryptoSentinel/internal/logging"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/opportunity"
	"CryptoSentinel/internal/recorder"
	"CryptoSentinel/internal/scheduler"
	"CryptoSentinel/internal/subscriber"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logging.New("crypto-sentinel")
	logger.Info("CryptoSentinel starting...")

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid config")
	}

	// Init fetcher
	var fetcher collector.Fetcher
	switch cfg.DataSource.Provider {
	case "mock":
		fetcher = &collector.MockFetcher{Seed: time.Now().UnixNano()}
	default:
		cmc := collector.NewCoinMarketCapFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy, logger)
		cmc.Convert = cfg.DataSource.Convert
		fetcher = cmc
	}
	logger.WithField("source", fetcher.Name()).Info("Data source ready")

	// Detection pipeline
	store := history.NewStore(cfg.Monitor.HistorySize)
	scorer := calculator.NewScorer(calculator.TrendLookback(cfg.Monitor.TrendWindow, cfg.Monitor.PollInterval))
	det := detector.New(store, scorer, cfg.Monitor.ThresholdPct, logger)
	oppLog := opportunity.NewLog(opportunity.NewFileStateStore(cfg.Storage.OpportunitiesFile),
		cfg.Monitor.MaxOpportunities, cfg.Monitor.AlertInterval, logger)

	// Subscribers
	subs := subscriber.NewManager(newSubscriberStore(cfg, logger), logger)

	// Init Telegram notifier
	tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Proxy, logger)

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.Driver != "none" {
		sr, err := recorder.NewSQLRecorder(cfg.Database.Driver, cfg.Database.DSN, logger)
		if err != nil {
			logger.WithError(err).Warn("Init recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init scheduler
	sched := scheduler.NewScheduler(fetcher, store, det, oppLog, subs, tn, rec, scheduler.Options{
		PollInterval:     cfg.Monitor.PollInterval,
		AlertCheck:       cfg.Monitor.AlertCheck,
		AlertInterval:    cfg.Monitor.AlertInterval,
		FetchLimit:       cfg.DataSource.Limit,
		MaxOpportunities: cfg.Monitor.MaxOpportunities,
		BackoffInitial:   cfg.Monitor.BackoffInitial,
		BackoffMax:       cfg.Monitor.BackoffMax,
		RetentionDays:    cfg.Database.RetentionDays,
		MaintenanceCron:  cfg.Database.MaintenanceCron,
	}, logger)
	if err := sched.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}

	var wg sync.WaitGroup

	// Start Telegram polling
	wg.Add(1)
	go func() {
		defer wg.Done()
		tn.StartPolling(ctx, sched.HandleCommand)
	}()
	logger.Info("Telegram polling started")

	// Status API
	if cfg.HTTP.Addr != "-" {
		srv := api.NewServer(store, oppLog, subs, scorer, fetcher.Name(), logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, cfg.HTTP.Addr, cfg.HTTP.CORSOrigins); err != nil {
				logger.WithError(err).Error("Status API stopped")
			}
		}()
	}

	logger.Info("CryptoSentinel is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.WithField("signal", sig.String()).Info("Shutdown signal received, stopping...")
	cancel()
	sched.Stop()
	wg.Wait()
	logger.Info("CryptoSentinel stopped")
}

// newSubscriberStore prefers Redis when configured and reachable.
func newSubscriberStore(cfg *config.Config, logger *logrus.Logger) subscriber.Store {
	fileStore := subscriber.NewFileStore(cfg.Storage.SubscribersFile)
	if cfg.Storage.RedisAddr == "" {
		return fileStore
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).WithField("addr", cfg.Storage.RedisAddr).Warn("Redis unavailable, using file subscriber store")
		_ = client.Close()
		return fileStore
	}
	logger.WithField("addr", cfg.Storage.RedisAddr).Info("Using Redis subscriber store")
	return subscriber.NewRedisStore(client, cfg.Storage.RedisKey)
}

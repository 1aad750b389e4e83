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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-shop-orders.git/internal/config"
	"github.com/ariefcatur/go-shop-orders.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-orders.git/internal/kafka"
	"github.com/ariefcatur/go-shop-orders.git/internal/memstore"
	"github.com/ariefcatur/go-shop-orders.git/internal/metrics"
	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
	"github.com/ariefcatur/go-shop-orders.git/internal/outbox"
	"github.com/ariefcatur/go-shop-orders.git/internal/postgres"
	"github.com/ariefcatur/go-shop-orders.git/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config")
	}
	log := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, log)
	stop()
	if err != nil {
		log.WithError(err).Error("exit")
		os.Exit(1)
	}
}

// run serves until ctx is done or a component fails. Every resource it opens
// is released before it returns.
func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	store, source, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()
	cache := redisx.NewCache(rdb)

	// Kafka producer, fed only by the outbox relay
	prod := kafkax.NewProducer(cfg.KafkaBrokers)
	defer prod.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServerMetrics(reg)

	svc := orders.NewService(&redisx.CachedStore{Store: store, Cache: cache, Log: log}, cfg.ServiceName)
	router := httpx.NewRouter(log, m, reg)
	h := &httpx.Handler{
		Service: svc,
		Replay:  cache,
		Orders:  cache,
		Metrics: m,
		Log:     log,
		Timeout: cfg.RequestTimeout,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	relay := &outbox.Relay{
		Source:   source,
		Writer:   prod,
		Batch:    cfg.OutboxBatch,
		Interval: cfg.OutboxInterval,
		Log:      log.WithField("component", "outbox"),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "store": cfg.Store}).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore returns the configured store together with the outbox it writes to.
func openStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (orders.Store, outbox.Source, func(), error) {
	if cfg.Store == config.StoreMemory {
		ms := memstore.New()
		if cfg.SeedFile != "" {
			f, err := os.Open(cfg.SeedFile)
			if err != nil {
				return nil, nil, nil, err
			}
			defer f.Close()
			n, err := ms.LoadProducts(f)
			if err != nil {
				return nil, nil, nil, err
			}
			log.WithField("products", n).Info("memory store seeded")
		}
		return ms, ms, func() {}, nil
	}

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{})
	if err != nil {
		return nil, nil, nil, err
	}
	ps := postgres.NewStore(db)
	return ps, ps, db.Close, nil
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-shop-orders.git/internal/config"
	kafkax "github.com/ariefcatur/go-shop-orders.git/internal/kafka"
	"github.com/ariefcatur/go-shop-orders.git/internal/projector"
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
		log.WithError(err).Error("consumer exit")
		os.Exit(1)
	}
	log.Info("projector stopped")
}

func run(ctx context.Context, cfg config.Config, log *logrus.Logger) error {
	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &projector.Service{
		Cache:       redisx.NewCache(rdb),
		ServiceName: cfg.ServiceName + "-projector",
		Log:         log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ProjectorGroup, projector.Topics, cfg.ProjectorWorkers, log)
	log.WithFields(logrus.Fields{
		"group":   cfg.ProjectorGroup,
		"topics":  projector.Topics,
		"workers": cfg.ProjectorWorkers,
	}).Info("projector consumer started")

	return cons.Start(ctx, svc.Handle)
}

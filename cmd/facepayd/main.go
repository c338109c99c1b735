package main

import (
	"fmt"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/facepay/facepay/api"
	"github.com/facepay/facepay/config"
	"github.com/facepay/facepay/service"
	"github.com/facepay/facepay/storage"
	"github.com/facepay/facepay/storage/postgres"
)

func main() {
	cfg, err := config.ReadConfig("config")
	if err != nil {
		panic(err)
	}

	redisStorage, err := storage.NewRedisStorage(cfg)
	if err != nil {
		panic(err)
	}

	blockStorage, err := storage.NewBlockStorage(cfg)
	if err != nil {
		panic(err)
	}

	db, err := postgres.NewPostgresBackend(cfg.Database.DSN)
	if err != nil {
		panic(err)
	}

	sdClient, err := statsd.New(fmt.Sprintf("%s:%s", cfg.Datadog.Host, cfg.Datadog.Port))
	if err != nil {
		panic(err)
	}

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	client := asynq.NewClient(redisOpts)
	defer func() {
		if err := client.Close(); err != nil {
			logrus.Errorf("fail to close asynq client, err: %v", err)
		}
	}()

	payments := service.NewPaymentService(redisStorage, client, cfg.PaymentTTL())
	faces := service.NewFaceService(db, cfg.Payment.SimilarityThreshold)
	images := service.NewImageStore(blockStorage, redisStorage, cfg.PaymentTTL())

	server := api.NewServer(
		cfg.Server.Port,
		payments,
		faces,
		images,
		sdClient,
	)
	if err := server.StartServer(); err != nil {
		panic(err)
	}
}

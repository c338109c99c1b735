package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/facepay/facepay/config"
	"github.com/facepay/facepay/internal/tasks"
	"github.com/facepay/facepay/service"
	"github.com/facepay/facepay/storage"
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

	redisAddr := cfg.Redis.Host + ":" + cfg.Redis.Port
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     redisAddr,
			Username: cfg.Redis.User,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				tasks.QUEUE_NAME: 10,
			},
		},
	)

	logrus.WithFields(logrus.Fields{
		"redis": redisAddr,
	}).Info("Starting worker")

	payments := service.NewPaymentService(redisStorage, nil, cfg.PaymentTTL())
	worker := &Worker{payments: payments}

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePaymentExpire, worker.HandlePaymentExpire)

	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}

type Worker struct {
	payments *service.Payment
}

// HandlePaymentExpire removes the rendezvous records for a transaction
// whose expiry window has elapsed.
func (w *Worker) HandlePaymentExpire(ctx context.Context, t *asynq.Task) error {
	var p tasks.PaymentExpirePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	logrus.WithFields(logrus.Fields{
		"transactionId": p.TransactionID,
		"wallet":        p.WalletAddress,
	}).Info("expiring payment request")

	if err := w.payments.Expire(ctx, p.TransactionID, p.WalletAddress); err != nil {
		return fmt.Errorf("fail to expire payment request, err: %w", err)
	}
	return nil
}

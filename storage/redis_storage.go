package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/facepay/facepay/config"
	"github.com/facepay/facepay/internal/types"
)

const (
	transactionKeyPrefix  = "tx:"
	walletIndexKeyPrefix  = "wallet_tx:"
	walletStatusKeyPrefix = "wallet_status:"
)

// RedisStorage backs the rendezvous maps with Redis, relying on native
// key TTLs for the expiry window. It also exposes a small generic
// key-value surface used by the image token store.
type RedisStorage struct {
	cfg    *config.Config
	client *redis.Client
}

func NewRedisStorage(cfg *config.Config) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
		Username: cfg.Redis.User,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	status := client.Ping(context.Background())
	if status.Err() != nil {
		return nil, status.Err()
	}
	return &RedisStorage{
		cfg:    cfg,
		client: client,
	}, nil
}

func (r *RedisStorage) SetTransaction(ctx context.Context, tx *types.TransactionRequest, ttl time.Duration) error {
	buf, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("fail to serialize transaction request to json, err: %w", err)
	}
	if err := r.client.Set(ctx, transactionKeyPrefix+tx.TransactionID, string(buf), ttl).Err(); err != nil {
		return fmt.Errorf("fail to set transaction request, err: %w", err)
	}
	// wallet index lives at least as long as any transaction it points
	// to; stale ids are skipped on read
	indexKey := walletIndexKeyPrefix + tx.WalletAddress
	if err := r.client.SAdd(ctx, indexKey, tx.TransactionID).Err(); err != nil {
		return fmt.Errorf("fail to index transaction request, err: %w", err)
	}
	return r.client.Expire(ctx, indexKey, ttl).Err()
}

func (r *RedisStorage) GetTransaction(ctx context.Context, transactionID string) (*types.TransactionRequest, error) {
	buf, err := r.client.Get(ctx, transactionKeyPrefix+transactionID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fail to get transaction request, err: %w", err)
	}
	var tx types.TransactionRequest
	if err := json.Unmarshal([]byte(buf), &tx); err != nil {
		return nil, fmt.Errorf("fail to deserialize transaction request, err: %w", err)
	}
	return &tx, nil
}

func (r *RedisStorage) DeleteTransaction(ctx context.Context, transactionID string) error {
	return r.client.Del(ctx, transactionKeyPrefix+transactionID).Err()
}

func (r *RedisStorage) ListTransactionsByWallet(ctx context.Context, walletAddress string) ([]*types.TransactionRequest, error) {
	ids, err := r.client.SMembers(ctx, walletIndexKeyPrefix+walletAddress).Result()
	if err != nil {
		return nil, fmt.Errorf("fail to list wallet transactions, err: %w", err)
	}
	var out []*types.TransactionRequest
	for _, id := range ids {
		tx, err := r.GetTransaction(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// expired member, drop it from the index
			r.client.SRem(ctx, walletIndexKeyPrefix+walletAddress, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func (r *RedisStorage) SetWalletStatus(ctx context.Context, status *types.PaymentStatus, ttl time.Duration) error {
	buf, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("fail to serialize payment status to json, err: %w", err)
	}
	return r.client.Set(ctx, walletStatusKeyPrefix+status.WalletAddress, string(buf), ttl).Err()
}

func (r *RedisStorage) GetWalletStatus(ctx context.Context, walletAddress string) (*types.PaymentStatus, error) {
	buf, err := r.client.Get(ctx, walletStatusKeyPrefix+walletAddress).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fail to get payment status, err: %w", err)
	}
	var status types.PaymentStatus
	if err := json.Unmarshal([]byte(buf), &status); err != nil {
		return nil, fmt.Errorf("fail to deserialize payment status, err: %w", err)
	}
	return &status, nil
}

func (r *RedisStorage) DeleteWalletStatus(ctx context.Context, walletAddress string) error {
	return r.client.Del(ctx, walletStatusKeyPrefix+walletAddress).Err()
}

func (r *RedisStorage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	result, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return result, err
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStorage) Close() error {
	return r.client.Close()
}

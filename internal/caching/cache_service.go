package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stockledger/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// StockCache is a read-through cache of CurrentStock rows. PostgreSQL stays
// the source of truth; entries are dropped after every committed mutation.
type StockCache interface {
	GetStock(ctx context.Context, plantID, itemID uuid.UUID) (*models.CurrentStock, error)
	SetStock(ctx context.Context, stock *models.CurrentStock, ttl time.Duration) error
	InvalidateStock(ctx context.Context, pairs ...models.StockPair) error
	Ping(ctx context.Context) error
}

type redisCacheService struct {
	client *redis.Client
}

// NewRedisClient parses the address and connects. A failing ping is logged
// only, so the service still starts with a cold cache.
func NewRedisClient(addr, password string, db int, logger *logrus.Logger) *redis.Client {
	// Parse Redis URL to extract host:port if protocol is included
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if hostPort := strings.TrimPrefix(strings.TrimPrefix(addr, "redis://"), "rediss://"); hostPort != addr {
			parsedAddr = hostPort
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		logger.WithField("address", parsedAddr).Warnf("redis ping failed on initialization: %v", pingErr)
	} else {
		logger.WithField("address", parsedAddr).Info("redis connection established")
	}
	return client
}

func NewRedisCacheService(client *redis.Client) StockCache {
	return &redisCacheService{client: client}
}

func stockKey(plantID, itemID uuid.UUID) string {
	return fmt.Sprintf("stockledger:stock:%s:%s", plantID.String(), itemID.String())
}

func (r *redisCacheService) GetStock(ctx context.Context, plantID, itemID uuid.UUID) (*models.CurrentStock, error) {
	data, err := r.client.Get(ctx, stockKey(plantID, itemID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // cache miss
		}
		return nil, err
	}

	var stock models.CurrentStock
	if err := json.Unmarshal(data, &stock); err != nil {
		return nil, err
	}
	return &stock, nil
}

func (r *redisCacheService) SetStock(ctx context.Context, stock *models.CurrentStock, ttl time.Duration) error {
	data, err := json.Marshal(stock)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, stockKey(stock.PlantID, stock.ItemID), data, ttl).Err()
}

func (r *redisCacheService) InvalidateStock(ctx context.Context, pairs ...models.StockPair) error {
	if len(pairs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, stockKey(p.PlantID, p.ItemID))
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

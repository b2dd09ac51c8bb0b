package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/sam2008610/stock-performance-dashboard/config"
	"github.com/sam2008610/stock-performance-dashboard/internal/model"
	"github.com/sam2008610/stock-performance-dashboard/utils"
)

const (
	stockListKey      = "stock_list"
	stockListStaleKey = "stock_list:stale"
)

var ErrCacheMiss = errors.New("error cache miss")

// RedisCache holds the exchange stock list. The fresh copy expires after the
// configured TTL; a stale copy is kept without TTL so upstream outages can be
// served from it.
type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func (r *RedisCache) SetStockList(ctx context.Context, stocks []model.StockListEntry) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("start SetStockList", slog.String("rqID", rqID), slog.Int("count", len(stocks)))

	payload, err := json.Marshal(stocks)
	if err != nil {
		slog.Error("can't marshal stock list", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return errors.New("can't marshal stock list")
	}

	pipe := r.redis.Pipeline()
	pipe.Set(ctx, stockListKey, payload, r.cfg.Cache.StockListExpiration)
	pipe.Set(ctx, stockListStaleKey, payload, 0)

	_, err = pipe.Exec(ctx)
	if err != nil {
		slog.Error("failed on pipe.Exec", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetStockList completed", slog.String("rqID", rqID))

	return nil
}

func (r *RedisCache) GetStockList(ctx context.Context) ([]model.StockListEntry, error) {
	return r.getStockList(ctx, stockListKey)
}

// GetStaleStockList returns the last successfully fetched list regardless of
// age. Used as the fallback when upstream fails.
func (r *RedisCache) GetStaleStockList(ctx context.Context) ([]model.StockListEntry, error) {
	return r.getStockList(ctx, stockListStaleKey)
}

func (r *RedisCache) getStockList(ctx context.Context, key string) ([]model.StockListEntry, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	res, err := r.redis.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))
		return nil, err
	}

	var stocks []model.StockListEntry
	err = json.Unmarshal([]byte(res), &stocks)
	if err != nil {
		slog.Error("can't unmarshal stock list", slog.String("rqID", rqID), slog.String("key", key), slog.String("err", err.Error()))
		return nil, errors.New("can't unmarshal stock list")
	}

	return stocks, nil
}

func (r *RedisCache) ClearStockList(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	err := r.redis.Del(ctx, stockListKey, stockListStaleKey).Err()
	if err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("ClearStockList completed", slog.String("rqID", rqID))

	return nil
}

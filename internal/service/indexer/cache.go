package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"dydx-broker/internal/entity"
)

const defaultSnapshotTTL = 2 * time.Second

// CachedMarketData decorates a market data provider with a short-lived redis
// snapshot cache. Cache failures fall through to the underlying provider;
// the cache never makes a fetch fail.
type CachedMarketData struct {
	provider entity.MarketDataProvider
	rdb      *redis.Client
	ttl      time.Duration
}

func NewCachedMarketData(provider entity.MarketDataProvider, rdb *redis.Client, ttl time.Duration) *CachedMarketData {
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}

	return &CachedMarketData{
		provider: provider,
		rdb:      rdb,
		ttl:      ttl,
	}
}

func snapshotKey(marketID string) string {
	return fmt.Sprintf("market_snapshot:%s", marketID)
}

func (c *CachedMarketData) GetMarketSnapshot(ctx context.Context, marketID string) (entity.MarketSnapshot, error) {
	raw, err := c.rdb.Get(ctx, snapshotKey(marketID)).Bytes()
	if err == nil {
		var snapshot entity.MarketSnapshot
		if err := json.Unmarshal(raw, &snapshot); err == nil {
			return snapshot, nil
		}
		logrus.WithField("market", marketID).Warn("discarding undecodable cached snapshot")
	} else if !errors.Is(err, redis.Nil) {
		logrus.Warnf("snapshot cache read failed: %v", err)
	}

	snapshot, err := c.provider.GetMarketSnapshot(ctx, marketID)
	if err != nil {
		return entity.MarketSnapshot{}, err
	}

	c.StoreSnapshot(ctx, snapshot)

	return snapshot, nil
}

// StoreSnapshot writes a snapshot through to the cache. Used both on the
// fetch path and by the websocket market feed.
func (c *CachedMarketData) StoreSnapshot(ctx context.Context, snapshot entity.MarketSnapshot) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		logrus.Warnf("snapshot cache encode failed: %v", err)
		return
	}

	if err := c.rdb.Set(ctx, snapshotKey(snapshot.MarketID), payload, c.ttl).Err(); err != nil {
		logrus.Warnf("snapshot cache write failed: %v", err)
	}
}

// CurrentBlockHeight is never cached; the chain head moves every block.
func (c *CachedMarketData) CurrentBlockHeight(ctx context.Context) (uint32, error) {
	return c.provider.CurrentBlockHeight(ctx)
}

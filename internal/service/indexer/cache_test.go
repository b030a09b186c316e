package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"dydx-broker/internal/entity"
)

type fakeProvider struct {
	snapshot    entity.MarketSnapshot
	snapshotErr error
	height      uint32
	calls       int
}

func (f *fakeProvider) GetMarketSnapshot(ctx context.Context, marketID string) (entity.MarketSnapshot, error) {
	f.calls++
	return f.snapshot, f.snapshotErr
}

func (f *fakeProvider) CurrentBlockHeight(ctx context.Context) (uint32, error) {
	return f.height, nil
}

// unreachable redis: every cache operation fails and must fall through.
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
}

func TestCachedMarketData_FallsThroughOnCacheFailure(t *testing.T) {
	provider := &fakeProvider{
		snapshot: entity.MarketSnapshot{
			MarketID:    "ETH-USD",
			ClobPairID:  1,
			OraclePrice: decimal.RequireFromString("1750"),
		},
	}
	cache := NewCachedMarketData(provider, deadRedis(), 0)

	snapshot, err := cache.GetMarketSnapshot(context.Background(), "ETH-USD")
	if err != nil {
		t.Fatalf("GetMarketSnapshot() error = %v", err)
	}
	if snapshot.MarketID != "ETH-USD" {
		t.Errorf("market id = %s, want ETH-USD", snapshot.MarketID)
	}
	if provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls)
	}
}

func TestCachedMarketData_ProviderErrorSurfaces(t *testing.T) {
	wantErr := errors.New("indexer down")
	provider := &fakeProvider{snapshotErr: wantErr}
	cache := NewCachedMarketData(provider, deadRedis(), 0)

	_, err := cache.GetMarketSnapshot(context.Background(), "ETH-USD")
	if !errors.Is(err, wantErr) {
		t.Errorf("error = %v, want %v", err, wantErr)
	}
}

func TestCachedMarketData_BlockHeightBypassesCache(t *testing.T) {
	provider := &fakeProvider{height: 777}
	cache := NewCachedMarketData(provider, deadRedis(), 0)

	height, err := cache.CurrentBlockHeight(context.Background())
	if err != nil {
		t.Fatalf("CurrentBlockHeight() error = %v", err)
	}
	if height != 777 {
		t.Errorf("height = %d, want 777", height)
	}
}

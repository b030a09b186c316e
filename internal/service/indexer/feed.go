package indexer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"dydx-broker/internal/constant"
	"dydx-broker/internal/entity"
)

const (
	feedReconnectMinDelay = 1 * time.Second
	feedReconnectMaxDelay = 15 * time.Second
	feedReconnectFactor   = 2.0
)

// Feed subscribes to the indexer websocket markets channel and writes oracle
// price updates through to the snapshot cache. The broker works without it;
// the feed just keeps the cache warm between REST fetches.
type Feed struct {
	wsURL    string
	provider entity.MarketDataProvider
	cache    *CachedMarketData
}

func NewFeed(wsURL string, provider entity.MarketDataProvider, cache *CachedMarketData) *Feed {
	return &Feed{
		wsURL:    strings.TrimSpace(wsURL),
		provider: provider,
		cache:    cache,
	}
}

type feedMessage struct {
	Type     string `json:"type"`
	Channel  string `json:"channel"`
	Contents struct {
		Markets      map[string]marketPayload `json:"markets"`
		OraclePrices map[string]struct {
			OraclePrice string `json:"oraclePrice"`
		} `json:"oraclePrices"`
	} `json:"contents"`
}

// Run blocks until ctx is cancelled, reconnecting with exponential backoff
// and jitter on read or dial failures.
func (f *Feed) Run(ctx context.Context) error {
	wsHost, err := url.Parse(f.wsURL)
	if err != nil {
		return fmt.Errorf("invalid indexer ws url: %w", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		logrus.Infof("connecting to %s", wsHost.String())
		conn, _, err := websocket.DefaultDialer.Dial(wsHost.String(), nil)
		if err != nil {
			wait := feedReconnectDelay(attempt, rng)
			attempt++
			logrus.WithFields(logrus.Fields{"retry_in": wait.String(), "attempt": attempt}).Warnf("indexer ws dial failed: %v", err)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		attempt = 0
		conn.SetPongHandler(func(string) error {
			return nil
		})

		subscribe := map[string]any{
			"type":    "subscribe",
			"channel": constant.MarketFeedChannel,
		}
		if err := conn.WriteJSON(subscribe); err != nil {
			conn.Close()
			wait := feedReconnectDelay(attempt, rng)
			attempt++
			logrus.WithFields(logrus.Fields{"retry_in": wait.String(), "attempt": attempt}).Warnf("indexer ws subscribe failed: %v", err)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return nil
			}
		}

		stopPing := make(chan struct{})
		go func(c *websocket.Conn) {
			ticker := time.NewTicker(2 * time.Minute)
			defer ticker.Stop()

			for {
				select {
				case <-ticker.C:
					if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
						logrus.Error(err)
						return
					}
				case <-ctx.Done():
					return
				case <-stopPing:
					return
				}
			}
		}(conn)

		ctxDone := make(chan struct{})
		go func(c *websocket.Conn) {
			select {
			case <-ctx.Done():
				_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				_ = c.Close()
			case <-ctxDone:
			}
		}(conn)

		readErr := false
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					close(stopPing)
					close(ctxDone)
					return nil
				}

				readErr = true
				logrus.Errorf("indexer ws read failed: %v", err)
				break
			}

			if err := f.HandleMessage(ctx, message); err != nil {
				logrus.Errorf("indexer ws handle message failed: %v", err)
				continue
			}
		}

		close(stopPing)
		close(ctxDone)
		_ = conn.Close()

		if !readErr {
			continue
		}

		wait := feedReconnectDelay(attempt, rng)
		attempt++
		logrus.WithFields(logrus.Fields{"retry_in": wait.String(), "attempt": attempt}).Warn("reconnecting indexer ws")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil
		}
	}
}

// HandleMessage decodes a single markets-channel message. The subscribed
// message carries full market payloads; channel_data carries incremental
// oracle price updates applied on top of the cached snapshot.
func (f *Feed) HandleMessage(ctx context.Context, message []byte) error {
	var payload feedMessage
	if err := json.Unmarshal(message, &payload); err != nil {
		return err
	}

	switch payload.Type {
	case "subscribed":
		for _, market := range payload.Contents.Markets {
			snapshot, err := mapMarketPayload(market)
			if err != nil {
				logrus.Warnf("skipping malformed market payload: %v", err)
				continue
			}
			f.cache.StoreSnapshot(ctx, snapshot)
		}
	case "channel_data":
		for marketID, update := range payload.Contents.OraclePrices {
			price, err := decimal.NewFromString(update.OraclePrice)
			if err != nil {
				logrus.Warnf("skipping malformed oracle price for %s: %v", marketID, err)
				continue
			}

			snapshot, err := f.provider.GetMarketSnapshot(ctx, marketID)
			if err != nil {
				logrus.Warnf("skipping oracle update for unknown market %s: %v", marketID, err)
				continue
			}

			snapshot.OraclePrice = price
			f.cache.StoreSnapshot(ctx, snapshot)
		}
	}

	return nil
}

func feedReconnectDelay(attempt int, rng *rand.Rand) time.Duration {
	backoff := float64(feedReconnectMinDelay) * math.Pow(feedReconnectFactor, float64(attempt))
	if backoff > float64(feedReconnectMaxDelay) {
		backoff = float64(feedReconnectMaxDelay)
	}

	base := time.Duration(backoff)
	if feedReconnectMaxDelay <= feedReconnectMinDelay {
		return base
	}

	jitterWindow := feedReconnectMaxDelay - feedReconnectMinDelay
	jitter := time.Duration(rng.Int63n(int64(jitterWindow) + 1))
	result := base + jitter
	if result > feedReconnectMaxDelay {
		return feedReconnectMaxDelay
	}

	return result
}

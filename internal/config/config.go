package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

var (
	ServiceName    = "dydx-broker"
	ServiceVersion = ""
)

var (
	Env *EnvConfig
)

type EnvConfig struct {
	Env                     string              `mapstructure:"env"`
	Log                     LogConfig           `mapstructure:"log"`
	GracefulShutdownTimeout time.Duration       `mapstructure:"graceful_shutdown_timeout"`
	APIKeys                 []APIKeyConfig      `mapstructure:"api_keys"`
	Port                    map[string]string   `mapstructure:"port"`
	Wallet                  WalletConfig        `mapstructure:"wallet"`
	Network                 NetworkConfig       `mapstructure:"network"`
	Broker                  BrokerConfig        `mapstructure:"broker"`
	Redis                   RedisConfig         `mapstructure:"redis"`
	NatsJetstream           NatsJetstreamConfig `mapstructure:"nats_jetstream"`
}

type LogConfig struct {
	ShowCaller bool   `mapstructure:"show_caller"`
	LogLevel   string `mapstructure:"log_level"`
}

type APIKeyConfig struct {
	Name      string `mapstructure:"name"`
	Key       string `mapstructure:"key"`
	Active    bool   `mapstructure:"active"`
	ExpiredAt any    `mapstructure:"expired_at"`
}

type WalletConfig struct {
	Address          string `mapstructure:"address"`
	Mnemonic         string `mapstructure:"mnemonic"`
	SubaccountNumber uint32 `mapstructure:"subaccount_number"`
}

type NetworkConfig struct {
	RestIndexer      string `mapstructure:"rest_indexer"`
	WebsocketIndexer string `mapstructure:"websocket_indexer"`
	ChainRest        string `mapstructure:"chain_rest"`
}

type BrokerConfig struct {
	Submitter       string          `mapstructure:"submitter"` // "paper" or "relay"
	RelayURL        string          `mapstructure:"relay_url"`
	RelayAPIKey     string          `mapstructure:"relay_api_key"`
	DefaultSlippage decimal.Decimal `mapstructure:"default_slippage"` // fraction, e.g. 0.01 for 1%
	SnapshotTTL     time.Duration   `mapstructure:"snapshot_ttl"`
}

type RedisConfig struct {
	CacheDSN        string        `mapstructure:"cache_dsn"`
	ReconnectFactor float64       `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration `mapstructure:"min_jitter"`
	MaxJitter       time.Duration `mapstructure:"max_jitter"`
	MaxRetry        int           `mapstructure:"max_retry"`
}

type NatsJetstreamConfig struct {
	URL             string                   `mapstructure:"url"`
	MaxRetries      int                      `mapstructure:"max_retries"`
	ReconnectFactor float64                  `mapstructure:"reconnect_factor"`
	MinJitter       time.Duration            `mapstructure:"min_jitter"`
	MaxJitter       time.Duration            `mapstructure:"max_jitter"`
	TimeoutHandler  map[string]time.Duration `mapstructure:"timeout_handler"`
}

func LoadConfig(configPath string) error {
	viper.Reset()

	configPath = strings.TrimSpace(configPath)
	if configPath == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yml")
		viper.AddConfigPath(".")
	} else {
		ext := strings.ToLower(filepath.Ext(configPath))
		if ext == ".yml" || ext == ".yaml" {
			viper.SetConfigFile(configPath)
		} else {
			viper.SetConfigName(filepath.Base(configPath))
			viper.SetConfigType("yml")
			configDir := filepath.Dir(configPath)
			if configDir == "." || configDir == "" {
				viper.AddConfigPath(".")
			} else {
				viper.AddConfigPath(configDir)
			}
		}
	}

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// decimal fields decode through TextUnmarshaler; the duration and slice
	// hooks are viper defaults that must be re-added alongside it
	err = viper.Unmarshal(&Env, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)))
	if err != nil {
		return fmt.Errorf("failed to unmarshal config file: %w", err)
	}

	return nil
}

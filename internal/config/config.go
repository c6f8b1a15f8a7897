// Package config loads Janus's server configuration: the set of
// brokerage accounts to connect, market-data defaults, and the
// reconnect/refresh tunables the adapters use. Loading itself (files,
// env, flags) is viper-backed the way the upstream project wires it;
// only the shape of the Config struct is Janus-specific.
package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BrokerKind names one of the two supported broker families.
type BrokerKind string

const (
	BrokerA BrokerKind = "broker_a"
	BrokerB BrokerKind = "broker_b"
)

// TradeEventsConfig configures broker-A's gRPC trade-events stream.
type TradeEventsConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Host     string `mapstructure:"host"`
	RegionID string `mapstructure:"region_id"`
}

// AccountConfig is one configured brokerage account.
type AccountConfig struct {
	Broker          BrokerKind         `mapstructure:"broker"`
	Alias           string             `mapstructure:"alias"`
	Username        string             `mapstructure:"username"`
	Password        string             `mapstructure:"password"`
	Host            string             `mapstructure:"host"`
	Port            int                `mapstructure:"port"`
	AllowShort      bool               `mapstructure:"allow_short"`
	LocateRequired  bool               `mapstructure:"locate_required"`
	Default         bool               `mapstructure:"default"`
	TradeEvents     TradeEventsConfig  `mapstructure:"trade_events"`
}

// MarketDataConfig holds the global market-data defaults.
type MarketDataConfig struct {
	DefaultSymbols []string `mapstructure:"default_symbols"`
	UseRTH         bool     `mapstructure:"use_rth"`
}

// ReconnectConfig tunes adapter reconnect behavior.
type ReconnectConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// DatabaseConfig is the Postgres connection the symbol registry uses.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RPCConfig is the websocket request/reply + publisher listener.
type RPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Config is the root Janus server configuration.
type Config struct {
	Accounts          []AccountConfig  `mapstructure:"accounts"`
	MarketData        MarketDataConfig `mapstructure:"market_data"`
	Reconnect         ReconnectConfig  `mapstructure:"reconnect"`
	RefreshDebounceMs int              `mapstructure:"refresh_debounce_ms"`
	Database          DatabaseConfig   `mapstructure:"database"`
	RPC               RPCConfig        `mapstructure:"rpc"`
	LogLevel          string           `mapstructure:"log_level"`
}

var (
	config *Config
	once   sync.Once
)

// Load loads the configuration from the named path (directory or file
// stem, viper-resolved) over built-in defaults: file values override
// the defaults, and JANUS_-prefixed environment variables override
// values for keys the file sets. Unlike the registry, which
// hard-fails on store unavailability, a missing config *file* is not
// fatal here — only a missing account list is, and that check belongs
// to the caller.
func Load(configPath string) (*Config, error) {
	var err error

	once.Do(func() {
		config = &Config{}
		setDefaults()

		v := viper.New()
		v.SetConfigName("janus")
		v.SetConfigType("yaml")

		if configPath != "" {
			v.AddConfigPath(configPath)
		} else {
			v.AddConfigPath(".")
			v.AddConfigPath("./config")
			v.AddConfigPath("/etc/janus")
		}

		v.AutomaticEnv()
		v.SetEnvPrefix("JANUS")

		if readErr := v.ReadInConfig(); readErr != nil {
			if _, ok := readErr.(viper.ConfigFileNotFoundError); !ok {
				err = fmt.Errorf("read config: %w", readErr)
				return
			}
		}

		if unmarshalErr := v.Unmarshal(config); unmarshalErr != nil {
			err = fmt.Errorf("unmarshal config: %w", unmarshalErr)
			return
		}
	})

	return config, err
}

func setDefaults() {
	config.MarketData.UseRTH = false
	config.Reconnect.IntervalSeconds = 10
	config.RefreshDebounceMs = 1500
	config.Database.Host = "localhost"
	config.Database.Port = 5432
	config.Database.User = "postgres"
	config.Database.Name = "janus"
	config.Database.SSLMode = "disable"
	config.RPC.Host = "0.0.0.0"
	config.RPC.Port = 7070
	config.LogLevel = "info"
}

// DefaultAccount returns the account marked default, or the first
// configured account if none is marked.
func (c *Config) DefaultAccount() (AccountConfig, bool) {
	if len(c.Accounts) == 0 {
		return AccountConfig{}, false
	}
	for _, a := range c.Accounts {
		if a.Default {
			return a, true
		}
	}
	return c.Accounts[0], true
}

// NewLogger builds the zap logger cmd/server passes to each component,
// matching the upstream project's level-to-preset mapping.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	switch cfg.LogLevel {
	case "debug":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}

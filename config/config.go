package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Market   MarketConfig   `mapstructure:"market"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
}

type ServerConfig struct {
	Host        string   `mapstructure:"host"`
	Port        int      `mapstructure:"port"`
	Mode        string   `mapstructure:"mode"`         // debug, release, test
	CORSOrigins []string `mapstructure:"cors_origins"` // "*" allows any origin; empty disables CORS
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"` // apply embedded migrations on startup
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// MarketConfig controls the exchange feed and the price cache.
type MarketConfig struct {
	StreamURL      string        `mapstructure:"stream_url"` // all-market mini ticker stream
	KlineURL       string        `mapstructure:"kline_url"`  // base URL, "<pair>@kline_<interval>" is appended
	HistoryTTL     time.Duration `mapstructure:"history_ttl"`
	PriceTimeout   time.Duration `mapstructure:"price_timeout"`
	StreamInterval time.Duration `mapstructure:"stream_interval"`
	Symbols        []string      `mapstructure:"symbols"`
	RelayEnabled   bool          `mapstructure:"relay_enabled"`
}

// LedgerConfig controls wallet seeding and settlement bounds.
type LedgerConfig struct {
	StartingCash  string        `mapstructure:"starting_cash"` // decimal USDT amount
	SettleTimeout time.Duration `mapstructure:"settle_timeout"`
}

// StartingCashAmount parses StartingCash without going through a float.
func (c LedgerConfig) StartingCashAmount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(c.StartingCash))
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger.starting_cash %q: %w", c.StartingCash, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("ledger.starting_cash must not be negative, got %s", amount)
	}
	return amount, nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CRYPTA_.
// Nested keys use underscore: CRYPTA_DATABASE_HOST, CRYPTA_JWT_SECRET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "crypta")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrate", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "24h")
	v.SetDefault("jwt.issuer", "crypta-wallet")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("market.stream_url", "wss://stream.binance.com:9443/ws/!miniTicker@arr")
	v.SetDefault("market.kline_url", "wss://stream.binance.com:9443/ws/")
	v.SetDefault("market.history_ttl", "1h")
	v.SetDefault("market.price_timeout", "2s")
	v.SetDefault("market.stream_interval", "1s")
	v.SetDefault("market.symbols", []string{"BTC", "ETH", "BNB", "SOL", "XRP", "ADA", "DOGE", "TRX", "DOT", "LTC"})
	v.SetDefault("market.relay_enabled", true)
	v.SetDefault("ledger.starting_cash", "100000")
	v.SetDefault("ledger.settle_timeout", "5s")

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: CRYPTA_DATABASE_HOST -> database.host
	v.SetEnvPrefix("CRYPTA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if _, err := cfg.Ledger.StartingCashAmount(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

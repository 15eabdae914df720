package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Configはアプリ全体の設定
type Config struct {
	Port  string // サーバーポート（8080）
	GoEnv string // dev/prod

	StoreDriver string // postgres / memory
	SeedFile    string // memory のときの初期商品（JSON、任意）

	DatabaseURL      string // あれば POSTGRES_* より優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string // disable

	TxMaxAttempts    uint          // 競合時の最大試行回数
	TxInitialBackoff time.Duration // 初回の待ち
	TxMaxBackoff     time.Duration // 待ちの上限

	LogLevel string

	KafkaBrokers     []string // 空ならKafkaは使わない
	KafkaGroupID     string
	OrderEventsTopic string
	StockAlertsTopic string
}

// Loadは環境変数
func Load() (Config, error) {
	pgPort, err := atoiDefault("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	attempts, err := atoiDefault("TX_MAX_ATTEMPTS", 5)
	if err != nil {
		return Config{}, err
	}
	initialMS, err := atoiDefault("TX_INITIAL_BACKOFF_MS", 10)
	if err != nil {
		return Config{}, err
	}
	maxMS, err := atoiDefault("TX_MAX_BACKOFF_MS", 200)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:  getenv("PORT", "8080"),
		GoEnv: getenv("GO_ENV", "dev"),

		StoreDriver: strings.ToLower(getenv("STORE_DRIVER", StoreDriverPostgres)),
		SeedFile:    os.Getenv("SEED_FILE"),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		TxInitialBackoff: time.Duration(initialMS) * time.Millisecond,
		TxMaxBackoff:     time.Duration(maxMS) * time.Millisecond,

		LogLevel: getenv("LOG_LEVEL", "info"),

		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaGroupID:     getenv("KAFKA_GROUP_ID", "stockledger"),
		OrderEventsTopic: getenv("ORDER_EVENTS_TOPIC", "orders.lifecycle"),
		StockAlertsTopic: getenv("STOCK_ALERTS_TOPIC", "stock.alerts"),
	}

	//必須チェック
	if attempts < 1 {
		return Config{}, fmt.Errorf("TX_MAX_ATTEMPTS must be >= 1")
	}
	cfg.TxMaxAttempts = uint(attempts)
	if cfg.TxInitialBackoff < 0 || cfg.TxMaxBackoff < cfg.TxInitialBackoff {
		return Config{}, fmt.Errorf("TX_MAX_BACKOFF_MS must be >= TX_INITIAL_BACKOFF_MS")
	}

	switch cfg.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			if cfg.PostgresUser == "" {
				return Config{}, fmt.Errorf("POSTGRES_USER is required")
			}
			if cfg.PostgresPassword == "" {
				return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
			}
			if cfg.PostgresDB == "" {
				return Config{}, fmt.Errorf("POSTGRES_DB is required")
			}
		}
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}

	return cfg, nil
}

// Addr は echo に渡す listen アドレス
func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// DSN は DATABASE_URL か POSTGRES_* から組み立てる
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

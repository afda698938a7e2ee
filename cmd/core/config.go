package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/pkg/mysql"
)

// LedgerType 設定使用哪種帳本
type LedgerType string

const (
	LedgerTypeMySQL       LedgerType = "mysql"        // Level 0: 資料庫列鎖
	LedgerTypeMemoryMutex LedgerType = "memory_mutex" // Level 1: 每帳戶 Mutex + WAL
	LedgerTypeMemoryActor LedgerType = "memory_actor" // Level 2: 每帳戶單寫者 goroutine + WAL
)

const defaultConfigPath = "config/config.yaml"

type Config struct {
	HTTP struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	GRPC struct {
		Port int `yaml:"port"`
	} `yaml:"grpc"`
	Ledger struct {
		Type   LedgerType `yaml:"type"`
		WALDir string     `yaml:"wal_dir"`
	} `yaml:"ledger"`
	Accounts []domain.Account `yaml:"accounts"`
	MySQL    mysql.Config     `yaml:"mysql"`
	Kafka    struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// loadConfig 讀取設定
//
// 順序: .env (若存在) -> yaml 設定檔 (CONFIG_PATH，不存在時全用預設) -> 環境變數覆寫 -> 預設值
func loadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}

	var cfg Config
	cfgData, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		slog.Warn("config file not found, using defaults", slog.String("path", path))
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// applyEnv 環境變數覆寫設定檔
func applyEnv(cfg *Config) error {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		cfg.HTTP.Port = port
	}
	if v := os.Getenv("GRPC_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRPC_PORT: %w", err)
		}
		cfg.GRPC.Port = port
	}
	if v := os.Getenv("LEDGER_TYPE"); v != "" {
		cfg.Ledger.Type = LedgerType(v)
	}
	if v, ok := os.LookupEnv("WAL_DIR"); ok {
		cfg.Ledger.WALDir = v
	}
	if v := os.Getenv("MYSQL_HOST"); v != "" {
		cfg.MySQL.Host = v
	}
	if v := os.Getenv("MYSQL_PASSWORD"); v != "" {
		cfg.MySQL.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// applyDefaults 補全設定檔沒寫的欄位
func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.GRPC.Port == 0 {
		cfg.GRPC.Port = 50051
	}
	if cfg.Ledger.Type == "" {
		cfg.Ledger.Type = LedgerTypeMemoryMutex
	}
	if len(cfg.Accounts) == 0 {
		cfg.Accounts = domain.DefaultAccounts
	}
	cfg.MySQL = cfg.MySQL.WithDefaults()
}

// newLogger 建立 JSON 格式的 slog.Logger
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

package config

import (
	"fmt"

	"github.com/spf13/viper"
)

const (
	StorageMemory = "memory"
	StorageMySQL  = "mysql"

	LedgerStorage = "storage"
	LedgerRedis   = "redis"
)

type Config struct {
	HTTPPort      string `mapstructure:"HTTP_PORT"`
	StorageDriver string `mapstructure:"STORAGE_DRIVER"`
	LedgerDriver  string `mapstructure:"LEDGER_DRIVER"`
	MySQLDSN      string `mapstructure:"MYSQL_DSN"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	KafkaBrokers  string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic    string `mapstructure:"KAFKA_TOPIC"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	LogFormat     string `mapstructure:"LOG_FORMAT"`
}

// Load reads configuration from the environment with sane local defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("STORAGE_DRIVER", StorageMySQL)
	v.SetDefault("LEDGER_DRIVER", LedgerStorage)
	v.SetDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/shop?parseTime=true")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_TOPIC", "order-events")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	switch cfg.StorageDriver {
	case StorageMemory, StorageMySQL:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	switch cfg.LedgerDriver {
	case LedgerStorage, LedgerRedis:
	default:
		return nil, fmt.Errorf("unknown LEDGER_DRIVER %q", cfg.LedgerDriver)
	}
	return &cfg, nil
}

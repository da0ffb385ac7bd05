// Package config собирает настройки сервиса из переменных окружения.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ServiceName    = "marketplace"
	ServiceVersion = "0.1.0"
)

// StorageType какое хранилище поднимать при старте
type StorageType string

const (
	StorageFile     StorageType = "file"
	StorageDatabase StorageType = "database"
)

// Config настройки HTTP, хранилища, логов и трассировки
type Config struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration

	Storage StorageType
	DBPath  string
	DataDir string

	LogLevel  string
	LogFormat string

	// пустой endpoint: экспорт трейсов выключен
	OtelEndpoint string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Load читает окружение, подставляя значения по умолчанию
func Load() (Config, error) {
	c := Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":9091"),
		ShutdownTimeout: time.Duration(atoienv("SHUTDOWN_TIMEOUT", 5)) * time.Second,
		Storage:         StorageType(strings.ToLower(getenv("STORAGE_TYPE", string(StorageFile)))),
		DBPath:          getenv("DB_PATH", "marketplace.db"),
		DataDir:         getenv("DATA_DIR", "data"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
		OtelEndpoint:    getenv("OTEL_ENDPOINT", ""),
	}
	switch c.Storage {
	case StorageFile, StorageDatabase:
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_TYPE %q (want %q or %q)", c.Storage, StorageFile, StorageDatabase)
	}
	return c, nil
}

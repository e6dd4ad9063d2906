package config

import "time"

const (
	StoreBackendRedis  = "redis"
	StoreBackendMemory = "memory"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetRedisURL() string
	GetStoreTimeout() time.Duration
}

type Store struct {
	Backend  string        `env:"STORE_BACKEND" envDefault:"redis"`
	RedisURL string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	Timeout  time.Duration `env:"STORE_TIMEOUT" envDefault:"2s"`
}

var _ StoreConfig = Store{}

func (s Store) GetStoreBackend() string {
	return s.Backend
}

func (s Store) GetRedisURL() string {
	return s.RedisURL
}

func (s Store) GetStoreTimeout() time.Duration {
	return s.Timeout
}

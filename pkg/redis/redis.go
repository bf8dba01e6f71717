package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hotvault/hotvault-backend/config"
	"github.com/hotvault/hotvault-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	connectTimeout = 5 * time.Second
	defaultPort    = "6379"
)

// Addr returns host:port for cfg, defaulting the port.
func Addr(cfg *config.RedisConfig) string {
	port := cfg.Port
	if port == "" {
		port = defaultPort
	}
	return net.JoinHostPort(cfg.Host, port)
}

// Connect opens a client and checks it with PING. The caller owns the client
// and must close it.
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	addr := Addr(cfg)
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": addr,
		"db":   cfg.DB,
	})

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: connectTimeout,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logger.Info("Redis connection established", map[string]interface{}{
		"addr": addr,
	})
	return client, nil
}

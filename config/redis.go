// config/redis.go
package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

var redisLogger = log.New(os.Stdout, "[REDIS] ", log.LstdFlags)

// ConnectRedis dials Redis and verifies the connection before returning.
// Callers receive an error rather than a client that silently drops
// commands, so startup can fail loudly when the limiter backend is gone.
func ConnectRedis() (*redis.Client, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	redisLogger.Printf("Connected to Redis at %s", addr)
	return client, nil
}

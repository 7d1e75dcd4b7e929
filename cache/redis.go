package cache

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisCtx    = context.Background()
	initOnce    sync.Once
	initialized bool

	// mock mode state, used when Redis is unreachable
	mockMode  bool
	mockMutex sync.Mutex
	mockData  = make(map[string]string)
)

// InitRedis initializes the Redis connection. When the server is unreachable
// the cache degrades to an in-process mock so the API keeps working.
func InitRedis() error {
	var initErr error

	initOnce.Do(func() {
		if os.Getenv("REDIS_MOCK") == "true" {
			log.Println("forcing Redis mock mode")
			mockMode = true
			initialized = true
			return
		}

		redisAddr := os.Getenv("REDIS_ADDR")
		redisPassword := os.Getenv("REDIS_PASSWORD")
		redisDb := 0

		if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
			if db, err := strconv.Atoi(dbStr); err == nil {
				redisDb = db
			}
		}

		if redisAddr == "" {
			redisAddr = "localhost:6379"
		}

		log.Printf("initializing Redis connection, addr: %s", redisAddr)

		client := redis.NewClient(&redis.Options{
			Addr:        redisAddr,
			Password:    redisPassword,
			DB:          redisDb,
			DialTimeout: 3 * time.Second,
			ReadTimeout: 3 * time.Second,
			PoolSize:    10,
		})

		if _, err := client.Ping(redisCtx).Result(); err != nil {
			log.Printf("Redis connection failed: %v, falling back to mock mode", err)
			mockMode = true
			initialized = true
			return
		}

		redisClient = client
		initialized = true
		mockMode = false
		log.Println("Redis connection initialized")
	})

	return initErr
}

// GetClient returns the real Redis client, or an error in mock mode.
func GetClient() (*redis.Client, error) {
	if !initialized {
		return nil, fmt.Errorf("Redis client not initialized")
	}
	if mockMode {
		return nil, ErrRedisNotAvailable
	}
	return redisClient, nil
}

// IsMockMode reports whether the cache is running without a Redis server.
func IsMockMode() bool {
	return mockMode
}

// Set stores a value with a TTL.
func Set(key, value string, expiration time.Duration) error {
	if !initialized {
		return fmt.Errorf("Redis client not initialized")
	}

	if mockMode {
		mockMutex.Lock()
		defer mockMutex.Unlock()
		mockData[key] = value
		return nil
	}
	return redisClient.Set(redisCtx, key, value, expiration).Err()
}

// Get reads a value, returning ErrKeyNotFound for missing keys.
func Get(key string) (string, error) {
	if !initialized {
		return "", fmt.Errorf("Redis client not initialized")
	}

	if mockMode {
		mockMutex.Lock()
		defer mockMutex.Unlock()
		value, ok := mockData[key]
		if !ok {
			return "", ErrKeyNotFound
		}
		return value, nil
	}

	value, err := redisClient.Get(redisCtx, key).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	}
	return value, err
}

// CloseRedis shuts down the connection.
func CloseRedis() {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Printf("failed to close Redis connection: %v", err)
		}
	}
}

package cache

import "errors"

var (
	// ErrRedisNotAvailable means the cache is running in mock mode.
	ErrRedisNotAvailable = errors.New("redis not available")

	// ErrLockNotAcquired means the distributed lock is held elsewhere.
	ErrLockNotAcquired = errors.New("could not acquire distributed lock")

	// ErrKeyNotFound means the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
)

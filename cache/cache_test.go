package cache

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initMock(t *testing.T) {
	t.Helper()
	os.Setenv("REDIS_MOCK", "true")
	require.NoError(t, InitRedis())
	require.True(t, IsMockMode())
}

func TestMockSetGet(t *testing.T) {
	initMock(t)

	require.NoError(t, Set("k", "v", time.Minute))
	value, err := Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	_, err = Get("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestTurnoutRoundTrip(t *testing.T) {
	initMock(t)

	require.NoError(t, SetTurnout(Turnout{Total: 1500, Completed: 321}))
	turnout, err := GetTurnout()
	require.NoError(t, err)
	assert.Equal(t, int64(1500), turnout.Total)
	assert.Equal(t, int64(321), turnout.Completed)
}

func TestWithLock_LocalFallbackExcludes(t *testing.T) {
	initMock(t)
	service := GetLockService()

	var inside, maxInside int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := service.WithLock("lock:test", time.Second, func() error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside, "critical section must never overlap")
}

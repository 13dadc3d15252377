package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex
	var wg sync.WaitGroup
	counters := map[string]int{}
	var countersMu sync.Mutex
	inside := map[string]int{}

	for i := 0; i < 50; i++ {
		for _, key := range []string{"a", "b"} {
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				unlock := k.Lock(key)
				defer unlock()

				countersMu.Lock()
				inside[key]++
				assert.Equal(t, 1, inside[key], "two holders of %q", key)
				countersMu.Unlock()

				countersMu.Lock()
				counters[key]++
				inside[key]--
				countersMu.Unlock()
			}(key)
		}
	}
	wg.Wait()

	assert.Equal(t, 50, counters["a"])
	assert.Equal(t, 50, counters["b"])
	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}

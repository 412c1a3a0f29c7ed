package dedup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Drops fragment",
			input:    "https://mantech.co.za/ProductInfo.aspx?Item=42#details",
			expected: "https://mantech.co.za/ProductInfo.aspx?Item=42",
		},
		{
			name:     "Keeps query string",
			input:    "https://mantech.co.za/Stock.aspx?Query=RELAY&Page=2",
			expected: "https://mantech.co.za/Stock.aspx?Query=RELAY&Page=2",
		},
		{
			name:     "Plain URL unchanged",
			input:    "https://mantech.co.za/",
			expected: "https://mantech.co.za/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CanonicalURL(tt.input))
		})
	}
}

func TestMemorySetFirstSeenWins(t *testing.T) {
	set := NewMemorySet()
	ctx := context.Background()

	assert.True(t, set.ShouldProcess(ctx, "mantech:res-1k0"))
	assert.False(t, set.ShouldProcess(ctx, "mantech:res-1k0"))
	assert.True(t, set.ShouldProcess(ctx, "mantech:cap-100-25"))
	assert.Equal(t, 2, set.Size())
}

func TestMemorySetConcurrentAccess(t *testing.T) {
	set := NewMemorySet()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if set.ShouldProcess(ctx, fmt.Sprintf("key-%d", j)) {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}(i)
	}
	wg.Wait()

	// Each distinct key is accepted exactly once across all workers.
	assert.Equal(t, 100, accepted)
	assert.Equal(t, 100, set.Size())
}

func TestRedisSetDegradesToProcessOnError(t *testing.T) {
	// A client pointed at a closed port fails every command.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
	})
	defer client.Close()

	set := NewRedisSet(client, time.Hour, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.True(t, set.ShouldProcess(context.Background(), "mantech:res-1k0"))
	assert.True(t, set.ShouldProcess(context.Background(), "mantech:res-1k0"))
}

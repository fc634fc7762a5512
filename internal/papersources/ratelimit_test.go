package papersources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	t.Run("burst passes without waiting", func(t *testing.T) {
		rl := NewRateLimiter(0.1, 3)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		for i := 0; i < 3; i++ {
			assert.NoError(t, rl.Wait(ctx), "request %d within burst", i+1)
		}
	})

	t.Run("wait honours context deadline", func(t *testing.T) {
		rl := NewRateLimiter(0.1, 1)
		require.NoError(t, rl.Wait(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.Error(t, rl.Wait(ctx))
	})
}

package budget

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudget_FailsOnMPlusOne(t *testing.T) {
	for _, m := range []int{1, 3, 10} {
		b := New(m)
		for i := 0; i < m; i++ {
			require.NoError(t, b.Increment(), "call %d of %d", i+1, m)
		}
		assert.True(t, b.Exhausted())

		err := b.Increment()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Contains(t, err.Error(), "limit")

		// Refusals keep refusing and keep counting.
		assert.ErrorIs(t, b.Increment(), ErrExhausted)
		assert.Equal(t, int64(m+2), b.Count())
		assert.Equal(t, int64(0), b.Remaining())
	}
}

func TestBudget_Unlimited(t *testing.T) {
	for _, m := range []int{0, -5} {
		b := New(m)
		for i := 0; i < 1000; i++ {
			require.NoError(t, b.Increment())
		}
		assert.Equal(t, int64(0), b.Max())
		assert.Equal(t, int64(-1), b.Remaining())
		assert.False(t, b.Exhausted())
	}
}

func TestBudget_Remaining(t *testing.T) {
	b := New(5)
	assert.Equal(t, int64(5), b.Remaining())
	require.NoError(t, b.Increment())
	require.NoError(t, b.Increment())
	assert.Equal(t, int64(3), b.Remaining())
	assert.Equal(t, int64(2), b.Count())
}

func TestBudget_ConcurrentIncrements(t *testing.T) {
	const max = 50
	b := New(max)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Increment() == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, max, admitted)
	assert.Equal(t, int64(200), b.Count())
}

package idx

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsValidAndUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := New()
		require.Len(t, id, 26)
		require.True(t, Valid(id))
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNewAt_SortsByTime(t *testing.T) {
	earlier := NewAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	later := NewAt(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}

func TestNew_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	ids := make(chan string, 200)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- New()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		_, dup := seen[id]
		assert.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestParse(t *testing.T) {
	id := New()

	got, err := Parse(strings.ToLower(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	for _, bad := range []string{"", "   ", "abc", "507f1f77bcf86cd799439011", id + "X"} {
		_, err := Parse(bad)
		assert.ErrorIs(t, err, ErrInvalid, "input %q", bad)
		assert.False(t, Valid(bad))
	}
}

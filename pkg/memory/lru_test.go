package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetDelete(t *testing.T) {
	s := NewLRU(10)

	s.Set("tickets:open", []byte("v1"))

	entry, ok := s.Get("tickets:open")
	require.True(t, ok)
	assert.Equal(t, "tickets:open", entry.Key)
	assert.Equal(t, []byte("v1"), entry.Value)
	assert.Nil(t, entry.ExpiresAt)
	assert.False(t, entry.CreatedAt.IsZero())

	// Overwrite keeps CreatedAt and refreshes the value.
	s.Set("tickets:open", []byte("v2"))
	entry2, ok := s.Get("tickets:open")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), entry2.Value)
	assert.Equal(t, entry.CreatedAt, entry2.CreatedAt)

	_, ok = s.Get("missing")
	assert.False(t, ok)

	assert.True(t, s.Delete("tickets:open"))
	assert.False(t, s.Delete("tickets:open"))
	_, ok = s.Get("tickets:open")
	assert.False(t, ok)
}

func TestLRUEviction(t *testing.T) {
	s := NewLRU(3)

	s.Set("a", []byte("1"))
	s.Set("b", []byte("2"))
	s.Set("c", []byte("3"))
	assert.Equal(t, 3, s.Len())

	// Touch "a" so "b" becomes least recently used.
	_, ok := s.Get("a")
	require.True(t, ok)

	s.Set("d", []byte("4"))
	assert.Equal(t, 3, s.Len())

	_, ok = s.Get("b")
	assert.False(t, ok, "b should have been evicted as LRU")
	for _, k := range []string{"a", "c", "d"} {
		_, ok = s.Get(k)
		assert.True(t, ok, k)
	}
}

func TestUnboundedStore(t *testing.T) {
	s := NewLRU(0)
	for i := 0; i < 100; i++ {
		s.Set(fmt.Sprintf("k%d", i), nil)
	}
	assert.Equal(t, 100, s.Len())
}

func TestTTLExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewLRU(10, WithClock(func() time.Time { return now }))

	s.Set("short", []byte("x"), WithTTL(time.Minute))
	s.Set("long", []byte("y"), WithTTL(time.Hour))

	_, ok := s.Get("short")
	require.True(t, ok)

	now = now.Add(2 * time.Minute)

	_, ok = s.Get("short")
	assert.False(t, ok, "short entry should have expired")
	assert.Equal(t, 1, s.Len(), "expired entry is dropped on read")

	_, ok = s.Get("long")
	assert.True(t, ok)
}

func TestDeletePrefixAndKeys(t *testing.T) {
	s := NewLRU(10)
	s.Set("tickets:open", nil)
	s.Set("tickets:closed", nil)
	s.Set("notifications:u1", nil)

	assert.Equal(t, []string{"notifications:u1", "tickets:closed", "tickets:open"}, s.Keys())
	assert.Equal(t, 2, s.DeletePrefix("tickets:"))
	assert.Equal(t, []string{"notifications:u1"}, s.Keys())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Keys())
}

func TestConcurrentAccess(t *testing.T) {
	s := NewLRU(50)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%75)
				s.Set(key, []byte{byte(i)})
				s.Get(key)
				if i%10 == 0 {
					s.Delete(key)
				}
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.Len(), 50)
}

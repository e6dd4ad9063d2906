package memstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/memauth/kvstore"
	"github.com/jrsteele09/memauth/kvstore/memstore"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSetGetExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := memstore.New(memstore.WithNowTime(clk.Now))

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	v, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v", v)

	clk.Advance(time.Minute)
	_, ok, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok, "key must expire exactly at its ttl")

	require.NoError(t, s.Set(ctx, "forever", "v", 0))
	clk.Advance(24 * time.Hour)
	_, ok, _ = s.Get(ctx, "forever")
	require.True(t, ok)
}

func TestDeleteReportsExistence(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))
	deleted, err := s.Delete(ctx, "k")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = s.Delete(ctx, "k")
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestReplaceOnlyExisting(t *testing.T) {
	ctx := context.Background()
	clk := &clock{now: time.Now()}
	s := memstore.New(memstore.WithNowTime(clk.Now))

	ok, err := s.Replace(ctx, "missing", "v", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
	_, found, _ := s.Get(ctx, "missing")
	require.False(t, found)

	require.NoError(t, s.Set(ctx, "k", "old", time.Minute))
	clk.Advance(50 * time.Second)
	ok, err = s.Replace(ctx, "k", "new", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	clk.Advance(50 * time.Second)
	v, found, _ := s.Get(ctx, "k")
	require.True(t, found, "replace must reset the ttl")
	require.Equal(t, "new", v)
}

func TestDeleteMatching(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	for _, k := range []string{"session:u1:a", "session:u1:b", "session:u2:a", "session:u1x:a", "oauth_state:x"} {
		require.NoError(t, s.Set(ctx, k, "1", time.Minute))
	}

	n, err := s.DeleteMatching(ctx, "session:"+kvstore.EscapePattern("u1")+":*")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 3, s.Len())

	n, err = s.DeleteMatching(ctx, "session:nobody:*")
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestEscapedPatternIsLiteral(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	require.NoError(t, s.Set(ctx, "session:a:1", "1", time.Minute))
	require.NoError(t, s.Set(ctx, "session:*:1", "1", time.Minute))

	n, err := s.DeleteMatching(ctx, "session:"+kvstore.EscapePattern("*")+":*")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, ok, _ := s.Get(ctx, "session:a:1")
	require.True(t, ok)
}

func TestConcurrentDeleteHasOneWinner(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	require.NoError(t, s.Set(ctx, "once", "1", time.Minute))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Delete(ctx, "once")
			require.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestDeleteMatchingFollowsRedisGlob(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		pattern string
		keys    []string
		want    int
	}{
		{"star crosses slash", "session:u1:*", []string{"session:u1:a/b", "session:u1:a", "session:u2:a/b"}, 2},
		{"question mark", "k?", []string{"k1", "k/", "k12"}, 2},
		{"class and range", "k[a-c]", []string{"ka", "kc", "kd"}, 2},
		{"negated class", "k[^a]", []string{"ka", "kb"}, 1},
		{"escaped star", `k\*`, []string{"k*", "kx"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memstore.New()
			for _, k := range tt.keys {
				require.NoError(t, s.Set(ctx, k, "1", time.Minute))
			}
			n, err := s.DeleteMatching(ctx, tt.pattern)
			require.NoError(t, err)
			require.Equal(t, tt.want, n)
		})
	}
}

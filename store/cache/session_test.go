package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMetadata(uid string) *SessionMetadata {
	return &SessionMetadata{
		UID:         uid,
		UserID:      "user-1",
		Name:        "Research",
		Icon:        "📁",
		MemoryCount: 3,
		CreatedTs:   1700000000,
	}
}

func testMemories() []*MemoryItem {
	return []*MemoryItem{
		{UID: "m1", ProcessedText: "first memory", CreatedTs: 1700000001},
		{UID: "m2", ProcessedText: "second memory", CreatedTs: 1700000002},
	}
}

func TestSessionCacheRoundTrip(t *testing.T) {
	client, _ := setupClient(t)
	sc := NewSessionCache(client)
	ctx := context.Background()

	require.True(t, sc.PutSession(ctx, testMetadata("abc")))

	got, ok := sc.GetSession(ctx, "abc")
	require.True(t, ok)
	assert.Equal(t, "Research", got.Name)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, 3, got.MemoryCount)
}

func TestSessionCacheMemoriesRoundTrip(t *testing.T) {
	client, _ := setupClient(t)
	sc := NewSessionCache(client)
	ctx := context.Background()

	require.True(t, sc.PutMemories(ctx, "abc", testMemories()))

	got, ok := sc.GetMemories(ctx, "abc")
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "first memory", got[0].ProcessedText)
}

func TestSessionCacheKeyLayout(t *testing.T) {
	client, mr := setupClient(t)
	sc := NewSessionCache(client)
	ctx := context.Background()

	sc.PutSession(ctx, testMetadata("abc"))
	sc.PutMemories(ctx, "abc", testMemories())
	sc.PutDescription(ctx, "abc", "a session about testing")

	// Key patterns are part of the external interface and must stay
	// bit-exact for interop with existing deployments.
	assert.True(t, mr.Exists("session:abc"))
	assert.True(t, mr.Exists("session:abc:memories"))
	assert.True(t, mr.Exists("session:abc:description"))
}

func TestSessionCacheTTLs(t *testing.T) {
	client, mr := setupClient(t)
	sc := NewSessionCache(client)
	ctx := context.Background()

	sc.PutSession(ctx, testMetadata("abc"))
	sc.PutMemories(ctx, "abc", testMemories())
	sc.PutDescription(ctx, "abc", "a session about testing")

	// 11 minutes: memories list (10 min TTL) is gone, metadata (1h) remains.
	mr.FastForward(11 * time.Minute)
	_, ok := sc.GetMemories(ctx, "abc")
	assert.False(t, ok)
	_, ok = sc.GetSession(ctx, "abc")
	assert.True(t, ok)

	// 24 hours: metadata expired, description still present since it has no
	// TTL and is only removed by explicit invalidation.
	mr.FastForward(24 * time.Hour)
	_, ok = sc.GetSession(ctx, "abc")
	assert.False(t, ok)
	description, ok := sc.GetDescription(ctx, "abc")
	assert.True(t, ok)
	assert.Equal(t, "a session about testing", description)
}

func TestSessionCacheInvalidateMemories(t *testing.T) {
	client, _ := setupClient(t)
	sc := NewSessionCache(client)
	ctx := context.Background()

	sc.PutMemories(ctx, "abc", testMemories())
	sc.PutDescription(ctx, "abc", "description")

	sc.InvalidateMemories(ctx, "abc")

	_, ok := sc.GetMemories(ctx, "abc")
	assert.False(t, ok)
	// Description invalidation is a separate signal.
	_, ok = sc.GetDescription(ctx, "abc")
	assert.True(t, ok)
}

func TestSessionCacheInvalidateAll(t *testing.T) {
	client, _ := setupClient(t)
	sc := NewSessionCache(client)
	ctx := context.Background()

	sc.PutSession(ctx, testMetadata("abc"))
	sc.PutMemories(ctx, "abc", testMemories())
	sc.PutDescription(ctx, "abc", "description")

	sc.InvalidateAll(ctx, "abc")

	_, ok := sc.GetSession(ctx, "abc")
	assert.False(t, ok)
	_, ok = sc.GetMemories(ctx, "abc")
	assert.False(t, ok)
	_, ok = sc.GetDescription(ctx, "abc")
	assert.False(t, ok)
}

func TestSessionCacheWarm(t *testing.T) {
	client, _ := setupClient(t)
	sc := NewSessionCache(client)
	ctx := context.Background()

	sc.Warm(ctx, testMetadata("abc"), testMemories())

	_, ok := sc.GetSession(ctx, "abc")
	assert.True(t, ok)
	memories, ok := sc.GetMemories(ctx, "abc")
	assert.True(t, ok)
	assert.Len(t, memories, 2)
}

func TestSessionCacheDisabledBackend(t *testing.T) {
	sc := NewSessionCache(NewClient(Config{}))
	ctx := context.Background()

	// Everything is a no-op; nothing panics or errors.
	assert.False(t, sc.PutSession(ctx, testMetadata("abc")))
	_, ok := sc.GetSession(ctx, "abc")
	assert.False(t, ok)
	sc.InvalidateAll(ctx, "abc")
	sc.Warm(ctx, testMetadata("abc"), testMemories())
}

package store

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/NikhilTirunagiri/petal-v1/internal/profile"
	"github.com/NikhilTirunagiri/petal-v1/store/cache"
)

// memDriver is an in-memory Driver for exercising the cache behavior of the
// Store without a real database.
type memDriver struct {
	mu       sync.Mutex
	sessions map[string]*Session
	memories []*Memory

	sessionReads int
	memoryReads  int
}

func newMemDriver() *memDriver {
	return &memDriver{sessions: map[string]*Session{}}
}

func (d *memDriver) GetDB() *sql.DB                  { return nil }
func (d *memDriver) Close() error                    { return nil }
func (d *memDriver) Migrate(_ context.Context) error { return nil }

func (d *memDriver) CreateSession(_ context.Context, create *Session) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = int32(len(d.sessions) + 1)
	create.UpdatedTs = create.CreatedTs
	d.sessions[create.UID] = create
	return create, nil
}

func (d *memDriver) ListSessions(_ context.Context, find *FindSession) ([]*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionReads++
	list := []*Session{}
	for _, session := range d.sessions {
		if find.UID != nil && session.UID != *find.UID {
			continue
		}
		if find.UserID != nil && session.UserID != *find.UserID {
			continue
		}
		list = append(list, session)
	}
	return list, nil
}

func (d *memDriver) GetSession(ctx context.Context, find *FindSession) (*Session, error) {
	list, err := d.ListSessions(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (d *memDriver) UpdateSession(_ context.Context, update *UpdateSession) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	session, ok := d.sessions[update.UID]
	if !ok {
		return nil, errors.Errorf("session %s not found", update.UID)
	}
	if update.Name != nil {
		session.Name = *update.Name
	}
	if update.Description != nil {
		session.Description = *update.Description
	}
	session.UpdatedTs = update.UpdatedTs
	return session, nil
}

func (d *memDriver) DeleteSession(_ context.Context, del *DeleteSession) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[del.UID]; !ok {
		return errors.Errorf("session %s not found", del.UID)
	}
	kept := d.memories[:0]
	for _, memory := range d.memories {
		if memory.SessionUID != del.UID {
			kept = append(kept, memory)
		}
	}
	d.memories = kept
	delete(d.sessions, del.UID)
	return nil
}

func (d *memDriver) CountSessionMemories(_ context.Context, sessionUID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 0
	for _, memory := range d.memories {
		if memory.SessionUID == sessionUID {
			count++
		}
	}
	return count, nil
}

func (d *memDriver) CreateMemory(_ context.Context, create *Memory) (*Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = int32(len(d.memories) + 1)
	d.memories = append(d.memories, create)
	return create, nil
}

func (d *memDriver) ListMemories(_ context.Context, find *FindMemory) ([]*Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.memoryReads++
	list := []*Memory{}
	for _, memory := range d.memories {
		if find.UID != nil && memory.UID != *find.UID {
			continue
		}
		if find.SessionUID != nil && memory.SessionUID != *find.SessionUID {
			continue
		}
		list = append(list, memory)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if find.OrderByCreatedTsDesc {
			return list[i].CreatedTs > list[j].CreatedTs
		}
		return list[i].CreatedTs < list[j].CreatedTs
	})
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (d *memDriver) CountMemories(ctx context.Context, find *FindMemory) (int, error) {
	list, err := d.ListMemories(ctx, find)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

func (d *memDriver) DeleteMemory(_ context.Context, delete *DeleteMemory) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, memory := range d.memories {
		if memory.UID == delete.UID {
			d.memories = append(d.memories[:i], d.memories[i+1:]...)
			return nil
		}
	}
	return errors.Errorf("memory %s not found", delete.UID)
}

func (d *memDriver) VectorSearchMemories(_ context.Context, _ *VectorSearchOptions) ([]*MemoryWithScore, error) {
	return nil, errors.New("not implemented")
}

func setupStore(t *testing.T) (*Store, *memDriver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	kv := cache.NewClient(cache.Config{Addr: mr.Addr()})
	t.Cleanup(func() { _ = kv.Close() })
	driver := newMemDriver()
	return New(driver, kv, &profile.Profile{Mode: "dev"}), driver, mr
}

func seedSession(t *testing.T, s *Store, uid string) *Session {
	t.Helper()
	session, err := s.CreateSession(context.Background(), &Session{
		UID:    uid,
		UserID: "default",
		Name:   "research",
	})
	require.NoError(t, err)
	return session
}

func TestGetSessionCacheAside(t *testing.T) {
	ctx := context.Background()
	s, driver, mr := setupStore(t)
	seedSession(t, s, "sess-1")

	first, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, first)
	require.True(t, mr.Exists("session:sess-1"))
	reads := driver.sessionReads

	second, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, first.UID, second.UID)
	require.Equal(t, reads, driver.sessionReads, "cache hit must not touch the driver")
}

func TestGetSessionMissing(t *testing.T) {
	s, _, _ := setupStore(t)
	session, err := s.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, session)
}

func TestCreateMemoryInvalidatesDerivedCaches(t *testing.T) {
	ctx := context.Background()
	s, _, mr := setupStore(t)
	seedSession(t, s, "sess-1")

	require.NoError(t, s.WarmSessionCache(ctx, "sess-1"))
	s.CacheDescription(ctx, "sess-1", "a session about testing")
	require.True(t, mr.Exists("session:sess-1"))
	require.True(t, mr.Exists("session:sess-1:memories"))
	require.True(t, mr.Exists("session:sess-1:description"))

	_, err := s.CreateMemory(ctx, &Memory{
		SessionUID:    "sess-1",
		UserID:        "default",
		OriginalText:  "raw",
		ProcessedText: "processed",
		Source:        "smart_copy",
	})
	require.NoError(t, err)

	require.False(t, mr.Exists("session:sess-1:memories"), "memories cache must be invalidated on write")
	require.False(t, mr.Exists("session:sess-1:description"), "description cache must be invalidated on write")
}

func TestDeleteMemoryInvalidatesDerivedCaches(t *testing.T) {
	ctx := context.Background()
	s, _, mr := setupStore(t)
	seedSession(t, s, "sess-1")
	memory, err := s.CreateMemory(ctx, &Memory{SessionUID: "sess-1", ProcessedText: "x"})
	require.NoError(t, err)

	require.NoError(t, s.WarmSessionCache(ctx, "sess-1"))
	s.CacheDescription(ctx, "sess-1", "desc")

	require.NoError(t, s.DeleteMemory(ctx, &DeleteMemory{UID: memory.UID}))
	require.False(t, mr.Exists("session:sess-1:memories"))
	require.False(t, mr.Exists("session:sess-1:description"))
}

func TestDeleteSessionInvalidatesEverything(t *testing.T) {
	ctx := context.Background()
	s, _, mr := setupStore(t)
	seedSession(t, s, "sess-1")

	require.NoError(t, s.WarmSessionCache(ctx, "sess-1"))
	s.CacheDescription(ctx, "sess-1", "desc")

	require.NoError(t, s.DeleteSession(ctx, &DeleteSession{UID: "sess-1"}))
	require.False(t, mr.Exists("session:sess-1"))
	require.False(t, mr.Exists("session:sess-1:memories"))
	require.False(t, mr.Exists("session:sess-1:description"))
}

func TestUpdateSessionInvalidatesMetadata(t *testing.T) {
	ctx := context.Background()
	s, _, mr := setupStore(t)
	seedSession(t, s, "sess-1")

	_, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, mr.Exists("session:sess-1"))

	name := "renamed"
	_, err = s.UpdateSession(ctx, &UpdateSession{UID: "sess-1", Name: &name})
	require.NoError(t, err)
	require.False(t, mr.Exists("session:sess-1"))

	session, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "renamed", session.Name)
}

func TestListRecentMemoriesCacheAside(t *testing.T) {
	ctx := context.Background()
	s, driver, _ := setupStore(t)
	seedSession(t, s, "sess-1")

	_, err := s.CreateMemory(ctx, &Memory{SessionUID: "sess-1", ProcessedText: "one", CreatedTs: 1})
	require.NoError(t, err)
	_, err = s.CreateMemory(ctx, &Memory{SessionUID: "sess-1", ProcessedText: "two", CreatedTs: 2})
	require.NoError(t, err)

	first, err := s.ListRecentMemories(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, "two", first[0].ProcessedText, "newest first")
	reads := driver.memoryReads

	second, err := s.ListRecentMemories(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, second, 2)
	require.Equal(t, reads, driver.memoryReads, "cache hit must not touch the driver")

	// A write invalidates, so the next read sees the new memory.
	_, err = s.CreateMemory(ctx, &Memory{SessionUID: "sess-1", ProcessedText: "three", CreatedTs: 3})
	require.NoError(t, err)
	third, err := s.ListRecentMemories(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, third, 3)
	require.Equal(t, "three", third[0].ProcessedText)
}

func TestKeywordSearchMemories(t *testing.T) {
	ctx := context.Background()
	s, _, _ := setupStore(t)
	seedSession(t, s, "sess-1")

	for _, text := range []string{
		"notes about redis caching strategies",
		"go concurrency patterns with channels",
		"redis cluster setup and go clients",
	} {
		_, err := s.CreateMemory(ctx, &Memory{SessionUID: "sess-1", ProcessedText: text})
		require.NoError(t, err)
	}

	results, err := s.KeywordSearchMemories(ctx, "sess-1", "redis go", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "redis cluster setup and go clients", results[0].Memory.ProcessedText)
	require.InDelta(t, 1.0, results[0].Score, 0.001)
	require.InDelta(t, 0.5, results[1].Score, 0.001)

	none, err := s.KeywordSearchMemories(ctx, "sess-1", "quantum", 10)
	require.NoError(t, err)
	require.Empty(t, none)

	empty, err := s.KeywordSearchMemories(ctx, "sess-1", "   ", 10)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestStoreWorksWithoutCacheBackend(t *testing.T) {
	ctx := context.Background()
	kv := cache.NewClient(cache.Config{})
	s := New(newMemDriver(), kv, &profile.Profile{Mode: "dev"})
	seedSession(t, s, "sess-1")

	session, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	require.NotNil(t, session)

	_, err = s.CreateMemory(ctx, &Memory{SessionUID: "sess-1", ProcessedText: "x"})
	require.NoError(t, err)

	memories, err := s.ListRecentMemories(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, memories, 1)
}

package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/NikhilTirunagiri/petal-v1/internal/profile"
	"github.com/NikhilTirunagiri/petal-v1/store/cache"
)

// recentMemoriesLimit is the size of the recent-memories list kept in cache.
const recentMemoriesLimit = 50

// Store provides database access to all raw objects, with a cache-aside read
// path and write-through invalidation on every mutation: writes remove the
// dependent cache entries before returning, they never update them in place.
type Store struct {
	profile *profile.Profile
	driver  Driver

	kv           *cache.Client
	sessionCache *cache.SessionCache
}

// New creates a new instance of Store.
func New(driver Driver, kv *cache.Client, profile *profile.Profile) *Store {
	return &Store{
		driver:       driver,
		profile:      profile,
		kv:           kv,
		sessionCache: cache.NewSessionCache(kv),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Migrate applies the database schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// CreateSession creates a session, assigning a UID when absent.
func (s *Store) CreateSession(ctx context.Context, create *Session) (*Session, error) {
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	if create.Icon == "" {
		create.Icon = "📁"
	}
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	return s.driver.CreateSession(ctx, create)
}

// ListSessions lists sessions without touching the cache.
func (s *Store) ListSessions(ctx context.Context, find *FindSession) ([]*Session, error) {
	return s.driver.ListSessions(ctx, find)
}

// GetSession returns a session with its memory count, cache-aside: the
// metadata cache is consulted first and repopulated on miss. Cache failures
// never block the read.
func (s *Store) GetSession(ctx context.Context, uid string) (*Session, error) {
	if metadata, ok := s.sessionCache.GetSession(ctx, uid); ok {
		return sessionFromMetadata(metadata), nil
	}

	session, err := s.driver.GetSession(ctx, &FindSession{UID: &uid})
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}

	count, err := s.driver.CountSessionMemories(ctx, uid)
	if err != nil {
		return nil, err
	}
	session.MemoryCount = count

	s.sessionCache.PutSession(ctx, metadataFromSession(session))
	return session, nil
}

// UpdateSession updates a session and invalidates its cached metadata.
func (s *Store) UpdateSession(ctx context.Context, update *UpdateSession) (*Session, error) {
	if update.UpdatedTs == 0 {
		update.UpdatedTs = time.Now().Unix()
	}
	session, err := s.driver.UpdateSession(ctx, update)
	if err != nil {
		return nil, err
	}
	s.sessionCache.InvalidateSession(ctx, update.UID)
	return session, nil
}

// DeleteSession deletes a session (memories cascade) and removes every cache
// entry for it: metadata plus all derived keys, so no reader observes a
// partially-invalidated session.
func (s *Store) DeleteSession(ctx context.Context, delete *DeleteSession) error {
	if err := s.driver.DeleteSession(ctx, delete); err != nil {
		return err
	}
	s.sessionCache.InvalidateAll(ctx, delete.UID)
	return nil
}

// CreateMemory persists a memory, then invalidates the session's memories
// cache and description cache, in that order. Both happen before this call
// returns: a subsequent read must never observe stale cached memories after
// a successful write.
func (s *Store) CreateMemory(ctx context.Context, create *Memory) (*Memory, error) {
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}

	memory, err := s.driver.CreateMemory(ctx, create)
	if err != nil {
		return nil, err
	}

	s.sessionCache.InvalidateMemories(ctx, create.SessionUID)
	s.sessionCache.InvalidateDescription(ctx, create.SessionUID)
	return memory, nil
}

// ListMemories lists memories without touching the cache.
func (s *Store) ListMemories(ctx context.Context, find *FindMemory) ([]*Memory, error) {
	return s.driver.ListMemories(ctx, find)
}

// CountMemories counts memories matching find.
func (s *Store) CountMemories(ctx context.Context, find *FindMemory) (int, error) {
	return s.driver.CountMemories(ctx, find)
}

// ListRecentMemories returns the newest memories of a session, cache-aside
// against the short-lived memories cache. Entries served from cache carry
// only UID, ProcessedText and CreatedTs.
func (s *Store) ListRecentMemories(ctx context.Context, sessionUID string, limit int) ([]*Memory, error) {
	if limit <= 0 || limit > recentMemoriesLimit {
		limit = recentMemoriesLimit
	}

	if items, ok := s.sessionCache.GetMemories(ctx, sessionUID); ok {
		if len(items) > limit {
			items = items[:limit]
		}
		return memoriesFromItems(sessionUID, items), nil
	}

	memories, err := s.driver.ListMemories(ctx, &FindMemory{
		SessionUID:           &sessionUID,
		Limit:                intPtr(recentMemoriesLimit),
		OrderByCreatedTsDesc: true,
	})
	if err != nil {
		return nil, err
	}

	s.sessionCache.PutMemories(ctx, sessionUID, itemsFromMemories(memories))
	if len(memories) > limit {
		memories = memories[:limit]
	}
	return memories, nil
}

// DeleteMemory deletes a memory and invalidates the owning session's
// memories and description caches.
func (s *Store) DeleteMemory(ctx context.Context, delete *DeleteMemory) error {
	memories, err := s.driver.ListMemories(ctx, &FindMemory{UID: &delete.UID})
	if err != nil {
		return err
	}
	if len(memories) == 0 {
		return errors.Errorf("memory %s not found", delete.UID)
	}
	sessionUID := memories[0].SessionUID

	if err := s.driver.DeleteMemory(ctx, delete); err != nil {
		return err
	}

	s.sessionCache.InvalidateMemories(ctx, sessionUID)
	s.sessionCache.InvalidateDescription(ctx, sessionUID)
	return nil
}

// VectorSearchMemories performs semantic search via the driver.
func (s *Store) VectorSearchMemories(ctx context.Context, opts *VectorSearchOptions) ([]*MemoryWithScore, error) {
	return s.driver.VectorSearchMemories(ctx, opts)
}

// KeywordSearchMemories scores a session's memories by the fraction of query
// words present in the processed text, highest first.
func (s *Store) KeywordSearchMemories(ctx context.Context, sessionUID, query string, limit int) ([]*MemoryWithScore, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return nil, nil
	}

	memories, err := s.driver.ListMemories(ctx, &FindMemory{SessionUID: &sessionUID})
	if err != nil {
		return nil, err
	}

	results := []*MemoryWithScore{}
	for _, memory := range memories {
		text := strings.ToLower(memory.ProcessedText)
		matches := 0
		for _, word := range words {
			if strings.Contains(text, word) {
				matches++
			}
		}
		if matches > 0 {
			results = append(results, &MemoryWithScore{
				Memory: memory,
				Score:  float32(matches) / float32(len(words)),
			})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetCachedDescription returns the generated session description, if cached.
func (s *Store) GetCachedDescription(ctx context.Context, sessionUID string) (string, bool) {
	return s.sessionCache.GetDescription(ctx, sessionUID)
}

// CacheDescription caches a generated session description until invalidated.
func (s *Store) CacheDescription(ctx context.Context, sessionUID, description string) {
	s.sessionCache.PutDescription(ctx, sessionUID, description)
}

// WarmSessionCache proactively populates the metadata and memories caches for
// a session the client is switching focus to. Best-effort.
func (s *Store) WarmSessionCache(ctx context.Context, sessionUID string) error {
	session, err := s.driver.GetSession(ctx, &FindSession{UID: &sessionUID})
	if err != nil {
		return err
	}
	if session == nil {
		return errors.Errorf("session %s not found", sessionUID)
	}

	count, err := s.driver.CountSessionMemories(ctx, sessionUID)
	if err != nil {
		return err
	}
	session.MemoryCount = count

	memories, err := s.driver.ListMemories(ctx, &FindMemory{
		SessionUID:           &sessionUID,
		Limit:                intPtr(recentMemoriesLimit),
		OrderByCreatedTsDesc: true,
	})
	if err != nil {
		return err
	}

	s.sessionCache.Warm(ctx, metadataFromSession(session), itemsFromMemories(memories))
	return nil
}

func metadataFromSession(session *Session) *cache.SessionMetadata {
	return &cache.SessionMetadata{
		UID:         session.UID,
		UserID:      session.UserID,
		Name:        session.Name,
		Icon:        session.Icon,
		Description: session.Description,
		MemoryCount: session.MemoryCount,
		CreatedTs:   session.CreatedTs,
		UpdatedTs:   session.UpdatedTs,
	}
}

func sessionFromMetadata(metadata *cache.SessionMetadata) *Session {
	return &Session{
		UID:         metadata.UID,
		UserID:      metadata.UserID,
		Name:        metadata.Name,
		Icon:        metadata.Icon,
		Description: metadata.Description,
		MemoryCount: metadata.MemoryCount,
		CreatedTs:   metadata.CreatedTs,
		UpdatedTs:   metadata.UpdatedTs,
	}
}

func itemsFromMemories(memories []*Memory) []*cache.MemoryItem {
	items := make([]*cache.MemoryItem, len(memories))
	for i, memory := range memories {
		items[i] = &cache.MemoryItem{
			UID:           memory.UID,
			ProcessedText: memory.ProcessedText,
			CreatedTs:     memory.CreatedTs,
		}
	}
	return items
}

func memoriesFromItems(sessionUID string, items []*cache.MemoryItem) []*Memory {
	memories := make([]*Memory, len(items))
	for i, item := range items {
		memories[i] = &Memory{
			UID:           item.UID,
			SessionUID:    sessionUID,
			ProcessedText: item.ProcessedText,
			CreatedTs:     item.CreatedTs,
		}
	}
	return memories
}

func intPtr(i int) *int {
	return &i
}

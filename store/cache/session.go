package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const (
	// SessionTTL is the expiry for session metadata.
	SessionTTL = time.Hour
	// MemoriesTTL is short because the recent-memories list changes with
	// every capture.
	MemoriesTTL = 10 * time.Minute
	// DescriptionTTL is zero: a generated description costs one LLM call and
	// is stable until memories change, so it lives until explicit
	// invalidation.
	DescriptionTTL = 0
)

// SessionMetadata is the cached shape of a session.
type SessionMetadata struct {
	UID         string `json:"uid"`
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description,omitempty"`
	MemoryCount int    `json:"memory_count"`
	CreatedTs   int64  `json:"created_ts"`
	UpdatedTs   int64  `json:"updated_ts"`
}

// MemoryItem is the cached shape of a recent memory.
type MemoryItem struct {
	UID           string `json:"uid"`
	ProcessedText string `json:"processed_text"`
	CreatedTs     int64  `json:"created_ts"`
}

// SessionCache caches session metadata, recent-memories lists and generated
// descriptions, each under its own key pattern and TTL.
type SessionCache struct {
	kv *Client
}

// NewSessionCache creates a session cache on top of the shared client.
func NewSessionCache(kv *Client) *SessionCache {
	return &SessionCache{kv: kv}
}

func sessionKey(sessionUID string) string {
	return fmt.Sprintf("session:%s", sessionUID)
}

func memoriesKey(sessionUID string) string {
	return fmt.Sprintf("session:%s:memories", sessionUID)
}

func descriptionKey(sessionUID string) string {
	return fmt.Sprintf("session:%s:description", sessionUID)
}

// GetSession returns cached session metadata.
func (c *SessionCache) GetSession(ctx context.Context, sessionUID string) (*SessionMetadata, bool) {
	raw, ok := c.kv.Get(ctx, sessionKey(sessionUID))
	if !ok {
		return nil, false
	}
	var metadata SessionMetadata
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		slog.Warn("failed to decode cached session", "session", sessionUID, "error", err)
		return nil, false
	}
	return &metadata, true
}

// PutSession caches session metadata for one hour.
func (c *SessionCache) PutSession(ctx context.Context, metadata *SessionMetadata) bool {
	raw, err := json.Marshal(metadata)
	if err != nil {
		slog.Warn("failed to encode session for cache", "session", metadata.UID, "error", err)
		return false
	}
	return c.kv.Set(ctx, sessionKey(metadata.UID), string(raw), SessionTTL)
}

// GetMemories returns the cached recent-memories list.
func (c *SessionCache) GetMemories(ctx context.Context, sessionUID string) ([]*MemoryItem, bool) {
	raw, ok := c.kv.Get(ctx, memoriesKey(sessionUID))
	if !ok {
		return nil, false
	}
	var memories []*MemoryItem
	if err := json.Unmarshal([]byte(raw), &memories); err != nil {
		slog.Warn("failed to decode cached memories", "session", sessionUID, "error", err)
		return nil, false
	}
	return memories, true
}

// PutMemories caches the recent-memories list for ten minutes.
func (c *SessionCache) PutMemories(ctx context.Context, sessionUID string, memories []*MemoryItem) bool {
	raw, err := json.Marshal(memories)
	if err != nil {
		slog.Warn("failed to encode memories for cache", "session", sessionUID, "error", err)
		return false
	}
	return c.kv.Set(ctx, memoriesKey(sessionUID), string(raw), MemoriesTTL)
}

// GetDescription returns the cached generated description.
func (c *SessionCache) GetDescription(ctx context.Context, sessionUID string) (string, bool) {
	return c.kv.Get(ctx, descriptionKey(sessionUID))
}

// PutDescription caches a generated description with no expiry.
func (c *SessionCache) PutDescription(ctx context.Context, sessionUID, description string) bool {
	return c.kv.Set(ctx, descriptionKey(sessionUID), description, DescriptionTTL)
}

// InvalidateMemories removes the recent-memories list. Called after any
// memory is added or removed.
func (c *SessionCache) InvalidateMemories(ctx context.Context, sessionUID string) {
	c.kv.Delete(ctx, memoriesKey(sessionUID))
	slog.Debug("invalidated memories cache", "session", sessionUID)
}

// InvalidateDescription removes the generated description. Called whenever
// memories change, since the description is derived from them.
func (c *SessionCache) InvalidateDescription(ctx context.Context, sessionUID string) {
	c.kv.Delete(ctx, descriptionKey(sessionUID))
	slog.Debug("invalidated description cache", "session", sessionUID)
}

// InvalidateSession removes the cached metadata only.
func (c *SessionCache) InvalidateSession(ctx context.Context, sessionUID string) {
	c.kv.Delete(ctx, sessionKey(sessionUID))
	slog.Debug("invalidated session cache", "session", sessionUID)
}

// InvalidateAll removes the metadata key and pattern-deletes every derived
// key so no reader observes a partially-invalidated session.
func (c *SessionCache) InvalidateAll(ctx context.Context, sessionUID string) {
	c.kv.DeleteByPattern(ctx, sessionKey(sessionUID)+":*")
	c.kv.Delete(ctx, sessionKey(sessionUID))
	slog.Info("invalidated all cache for session", "session", sessionUID)
}

// Warm proactively populates the metadata and memories caches ahead of the
// first read. Best-effort: it never fails the triggering request.
func (c *SessionCache) Warm(ctx context.Context, metadata *SessionMetadata, memories []*MemoryItem) {
	c.PutSession(ctx, metadata)
	c.PutMemories(ctx, metadata.UID, memories)
	slog.Info("warmed session cache", "session", metadata.UID, "memories", len(memories))
}

package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	// Session model related methods.
	CreateSession(ctx context.Context, create *Session) (*Session, error)
	ListSessions(ctx context.Context, find *FindSession) ([]*Session, error)
	GetSession(ctx context.Context, find *FindSession) (*Session, error)
	UpdateSession(ctx context.Context, update *UpdateSession) (*Session, error)
	DeleteSession(ctx context.Context, delete *DeleteSession) error
	CountSessionMemories(ctx context.Context, sessionUID string) (int, error)

	// Memory model related methods.
	CreateMemory(ctx context.Context, create *Memory) (*Memory, error)
	ListMemories(ctx context.Context, find *FindMemory) ([]*Memory, error)
	CountMemories(ctx context.Context, find *FindMemory) (int, error)
	DeleteMemory(ctx context.Context, delete *DeleteMemory) error

	// VectorSearchMemories performs semantic search using vector similarity.
	// Results are ranked by similarity descending and filtered by threshold.
	VectorSearchMemories(ctx context.Context, opts *VectorSearchOptions) ([]*MemoryWithScore, error)
}

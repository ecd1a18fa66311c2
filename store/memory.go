package store

// Memory is a captured text snippet plus its derived summary and optional
// embedding vector.
type Memory struct {
	ID            int32
	UID           string
	SessionUID    string
	UserID        string
	OriginalText  string
	ProcessedText string
	Source        string
	// Embedding is nil when embedding generation failed or is disabled.
	Embedding []float32
	CreatedTs int64
}

// FindMemory specifies the conditions for finding memories.
type FindMemory struct {
	UID        *string
	SessionUID *string
	UserID     *string
	Limit      *int
	Offset     *int
	// OrderByCreatedTsDesc returns newest memories first.
	OrderByCreatedTsDesc bool
}

// DeleteMemory specifies the memory to delete.
type DeleteMemory struct {
	UID string
}

// VectorSearchOptions holds the parameters for a similarity search.
// Exactly one of SessionUID or UserID scopes the search.
type VectorSearchOptions struct {
	SessionUID string
	UserID     string
	Vector     []float32
	// Threshold is the minimum cosine similarity (0-1) for a match.
	Threshold float32
	Limit     int
}

// MemoryWithScore is a memory with its search relevance score.
type MemoryWithScore struct {
	Memory *Memory
	Score  float32
}

package store

// Session is a user-defined named container for related captured memories.
type Session struct {
	ID        int32
	UID       string
	UserID    string
	Name      string
	Icon      string
	// Description is the user-supplied description. The generated description
	// lives in the session cache, not here.
	Description string
	CreatedTs   int64
	UpdatedTs   int64

	// MemoryCount is populated on detail reads only.
	MemoryCount int
}

// FindSession specifies the conditions for finding sessions.
type FindSession struct {
	ID     *int32
	UID    *string
	UserID *string
	Limit  *int
	Offset *int
}

// UpdateSession specifies the fields to update. Nil fields are left unchanged.
type UpdateSession struct {
	UID         string
	Name        *string
	Icon        *string
	Description *string
	UpdatedTs   int64
}

// DeleteSession specifies the session to delete. Memories cascade.
type DeleteSession struct {
	UID string
}

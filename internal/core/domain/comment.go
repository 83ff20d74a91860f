package domain

import "time"

// Comment is a note left by one user on one task.
type Comment struct {
	ID        int64
	TaskID    int64
	UserID    int64
	Text      string
	CreatedAt time.Time
	// Username is the author's name, filled in by list queries.
	Username string
}

package notification

import "time"

// Notification is a per-user message row (e.g. "student X enrolled in your
// course"). Read state is a simple flag flipped by its owner.
type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

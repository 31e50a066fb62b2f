package entity

import "time"

// Recipe is kept minimal: the account service only consumes the per-user
// count for profile display.
type Recipe struct {
	ID          int64
	UserID      int64
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

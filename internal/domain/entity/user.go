package entity

import (
	"time"
)

// User is the canonical identity record for an account.
// Password holds the value as known to the user store; authentication
// comparisons happen in the credential directory, which stores a hash.
type User struct {
	ID        int64
	Name      string
	Email     string
	Password  string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

package repository

import "context"

// RecipeCatalog is the read-only slice of the recipe domain this service
// needs: how many recipes a user owns.
type RecipeCatalog interface {
	CountForUser(ctx context.Context, userID int64) (int64, error)
}

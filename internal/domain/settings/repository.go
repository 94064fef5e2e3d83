package settings

import (
	"context"
)

// Repository persists the single school settings row.
type Repository interface {
	// Get returns the settings row, or shared.ErrNotFound when the
	// deployment has not been initialised yet.
	Get(ctx context.Context) (*SchoolSettings, error)

	// Save inserts or updates the settings row.
	Save(ctx context.Context, s *SchoolSettings) error
}

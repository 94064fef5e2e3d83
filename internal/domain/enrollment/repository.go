package enrollment

import (
	"context"

	"github.com/google/uuid"
	"github.com/schoolerp/backend/internal/domain/shared"
	"github.com/schoolerp/backend/internal/domain/shared/valueobject"
)

// Repository defines the interface for enrollment record persistence
type Repository interface {
	// FindByID finds an enrollment record by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)

	// FindByPupilAndSession finds a pupil's enrollment for a session.
	// Returns shared.ErrNotFound when the pupil is not enrolled
	FindByPupilAndSession(ctx context.Context, pupilID uuid.UUID, session valueobject.Session) (*Record, error)

	// FindByClassAndSession finds all enrollments in a class for a session
	FindByClassAndSession(ctx context.Context, classID string, session valueobject.Session, filter shared.Filter) ([]Record, error)

	// FindBySession finds all enrollments for a session
	FindBySession(ctx context.Context, session valueobject.Session, filter shared.Filter) ([]Record, error)

	// Save creates or updates an enrollment record
	Save(ctx context.Context, r *Record) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, r *Record) error

	// Delete deletes an enrollment record
	Delete(ctx context.Context, id uuid.UUID) error

	// CountBySession counts enrollments for a session
	CountBySession(ctx context.Context, session valueobject.Session) (int64, error)

	// CountByClassAndSession counts enrollments in a class for a session
	CountByClassAndSession(ctx context.Context, classID string, session valueobject.Session) (int64, error)
}

package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/repair-shop-service/internal/domain"
)

var (
	// ErrNotFound is returned when no document matches the identifier.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate is returned when the store rejects a second active account for an email.
	ErrDuplicate = errors.New("email already in use")
)

// UserRepository defines persistence access for user accounts. Identifiers
// passed in are expected to satisfy domain.ValidUserID.
type UserRepository interface {
	// Insert persists user and assigns its ID.
	Insert(ctx context.Context, user *domain.User) error
	// List returns summaries ordered by identifier ascending.
	List(ctx context.Context) ([]domain.UserSummary, error)
	// FindSummaryByID returns the projected user or ErrNotFound.
	FindSummaryByID(ctx context.Context, id string) (*domain.UserSummary, error)
	// FindByID returns the full stored user or ErrNotFound.
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// Update overwrites the given fields, or ErrNotFound when nothing matched.
	// An empty patch only checks existence.
	Update(ctx context.Context, id string, patch domain.UserPatch) error
}

package registration

import (
	"context"
	"errors"

	domain "github.com/TSV-Bitzfeld/Zeltlager-2025/internal/domain/registration"
)

// ErrNotFound signals a lookup for an id that does not exist. Callers decide
// the user-facing wording.
var ErrNotFound = errors.New("registration not found")

// Store persists Registration state. All mutations run in a transaction;
// a failed commit rolls back and leaves no partial state.
type Store interface {
	Create(ctx context.Context, value domain.Registration) error
	List(ctx context.Context) ([]domain.Registration, error)
	GetByID(ctx context.Context, id string) (domain.Registration, error)
	Update(ctx context.Context, value domain.Registration) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
}

package users

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no user matches the lookup
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when the email is already registered
	ErrEmailTaken = errors.New("email already registered")
)

// Store persists user records. Implementations must enforce email uniqueness
// themselves and report violations as ErrEmailTaken; the service's
// check-then-create sequence is not atomic.
type Store interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, id string, upd Update) (*User, error)
	Delete(ctx context.Context, id string) error
}

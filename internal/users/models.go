package users

import "time"

// User is a stored account. PasswordHash never leaves the process.
type User struct {
	ID           string    `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Age          int       `json:"age"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Update holds the mutable fields of a User; nil means unchanged.
type Update struct {
	FirstName    *string
	LastName     *string
	Age          *int
	PasswordHash *string
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Age == nil && u.PasswordHash == nil
}

// RegisterRequest is the request payload for creating an account
type RegisterRequest struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Age       *int   `json:"age" validate:"required,gte=0,lte=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
}

// RegisterResponse is returned after a successful registration
type RegisterResponse struct {
	ID string `json:"id"`
}

// LoginRequest is the request payload for logging in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued session token
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
}

// UpdateProfileRequest is the request payload for a partial profile update.
// Email is accepted only to reject it explicitly.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Age       *int    `json:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	Password  *string `json:"password,omitempty"`
	Email     *string `json:"email,omitempty"`
}

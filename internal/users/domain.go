package users

import "time"

// Roles recognised by the API.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User is an account as exposed over the API. The password hash never
// leaves the package.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is a user together with its stored credentials.
type Account struct {
	User
	PasswordHash string
}

// CreateInput carries the fields for a new account.
type CreateInput struct {
	Name     string
	Password string
	Role     string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

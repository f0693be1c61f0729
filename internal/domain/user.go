package domain

import "time"

// UserRole enumerates supported roles.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User represents an authenticated account within the platform. Balance is the
// per-user credit count debited per paid operation.
type User struct {
	ID        string
	Email     string
	Name      string
	Locale    string
	Role      UserRole
	Balance   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

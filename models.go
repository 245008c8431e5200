package sessiongate

import (
	"github.com/google/uuid"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleGuest is an unauthenticated visitor; it never grants an area
	RoleGuest UserRole = "guest"
	// RoleClient is a booking customer
	RoleClient UserRole = "client"
	// RoleBarber is a service provider with a working calendar
	RoleBarber UserRole = "barber"
	// RoleAdmin manages barbers, services, and clients
	RoleAdmin UserRole = "admin"
)

// User is the server's view of the current identity. It is never
// constructed client-side and goes stale the moment the server changes it,
// which is why guards re-fetch it on every area entry.
type User struct {
	ID    uuid.UUID `json:"id,omitempty"`
	Name  string    `json:"name,omitempty"`
	Email string    `json:"email,omitempty"`
	Role  UserRole  `json:"role,omitempty"`
}

// IsValid checks if the role is one of the predefined valid roles
func (u *User) IsValid() bool {
	if u == nil {
		return false
	}
	_, ok := ParseRole(u.Role)
	return ok
}

// RoleIsValid checks if the role is one of the recognized roles
func RoleIsValid(r UserRole) bool {
	switch r {
	case RoleGuest, RoleClient, RoleBarber, RoleAdmin:
		return true
	default:
		return false
	}
}

// GetAllRoles returns all recognized roles
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleGuest,
		RoleClient,
		RoleBarber,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(roleStr)
	return role, RoleIsValid(role)
}

package domain

import "fmt"

type Role string

const (
	RoleVisitor Role = "visitor"
	RoleReferee Role = "referee"
	RoleAdmin   Role = "admin"
)

// ParseRole maps a free-form role string onto a known role. Unknown values
// become visitors.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin, RoleReferee:
		return Role(s)
	default:
		return RoleVisitor
	}
}

// Actor is the authenticated identity of a session.
type Actor struct {
	Id   string
	Role Role
}

func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// Owns reports whether the actor may mutate an entity owned by userId.
func (a *Actor) Owns(userId string) bool {
	if a == nil {
		return false
	}
	return a.Id == userId || a.IsAdmin()
}

func (a *Actor) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tRole: %s", a.Id, a.Role)
}

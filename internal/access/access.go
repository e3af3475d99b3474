package access

// Role is assigned once at registration and never changes.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

func ParseRole(s string) Role {
	if s == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleUser
}

// CanView is the single ownership check. Every component exposing
// cross-user data must go through it.
func CanView(role Role, owner, requester string) bool {
	if role == RoleAdmin {
		return true
	}
	return owner == requester
}

func CanDelete(role Role) bool {
	return role == RoleAdmin
}

package service

import "github.com/estatehub/marketplace/internal/app/domain/user"

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID string
	Role   user.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == user.RoleAdmin
}

// CanManage reports whether the actor owns a resource or administers it.
func (a Actor) CanManage(ownerID string) bool {
	return a.IsAdmin() || (a.UserID != "" && a.UserID == ownerID)
}

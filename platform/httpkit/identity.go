package httpkit

import (
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Identity is the caller attached by AuthRequired or OptionalAuth. The zero
// value is an anonymous caller.
type Identity struct {
	UserID uuid.UUID
	Roles  []string
}

// Authenticated reports whether a valid token was presented.
func (i Identity) Authenticated() bool { return i.UserID != uuid.Nil }

// HasRole reports whether the token carried role.
func (i Identity) HasRole(role string) bool { return slices.Contains(i.Roles, role) }

// Reporter returns the caller's user id for attribution, or nil for
// unauthenticated callers.
func (i Identity) Reporter() *uuid.UUID {
	if !i.Authenticated() {
		return nil
	}
	id := i.UserID
	return &id
}

// GetIdentity reads the identity stored on c by the auth middleware.
func GetIdentity(c *gin.Context) Identity {
	var id Identity
	if v, ok := c.Get(ContextUserIDKey); ok {
		id.UserID, _ = v.(uuid.UUID)
	}
	if v, ok := c.Get(ContextRolesKey); ok {
		id.Roles, _ = v.([]string)
	}
	return id
}

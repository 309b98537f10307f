// Package actor holds the identity performing the current request. The
// auth middleware decodes it once from the bearer credential; handlers
// read it from the request context and pass it explicitly into business
// methods so identity never gets re-derived mid-request.
package actor

import (
	"github.com/gin-gonic/gin"
)

const contextKey = "nls.actor"

// Actor identifies who is performing an action. A zero Actor means the
// request carried no valid credential.
type Actor struct {
	UserID *uint
	Role   string
}

// Known reports whether the actor was resolved from a credential.
func (a Actor) Known() bool {
	return a.UserID != nil
}

// Is reports whether the actor holds one of the given roles.
func (a Actor) Is(roles ...string) bool {
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}

// Set stores the actor on the gin context for the lifetime of the request.
// gin allocates a fresh context per request, so no explicit clear is
// needed when the request completes.
func Set(c *gin.Context, a Actor) {
	c.Set(contextKey, a)
}

// From returns the actor stored on the request, or a zero Actor.
func From(c *gin.Context) Actor {
	value, ok := c.Get(contextKey)
	if !ok {
		return Actor{}
	}
	a, ok := value.(Actor)
	if !ok {
		return Actor{}
	}
	return a
}

// StampCreate fills created_by/updated_by on a new row.
func (a Actor) StampCreate(createdBy, updatedBy **uint) {
	if a.UserID == nil {
		return
	}
	if *createdBy == nil {
		*createdBy = a.UserID
	}
	*updatedBy = a.UserID
}

// StampUpdate fills updated_by on a mutated row.
func (a Actor) StampUpdate(updatedBy **uint) {
	if a.UserID == nil {
		return
	}
	*updatedBy = a.UserID
}

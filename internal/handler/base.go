package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
)

const ContextActor = "actor"

// SetActor stores the authenticated caller on the request.
func SetActor(c *gin.Context, actor model.Actor) {
	c.Set(ContextActor, actor)
}

// ActorFrom returns the caller set by the auth middleware.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

// RequireActor writes a 401 and returns false when no caller is set.
func RequireActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, NewErrorResponse("unauthorized"))
	}
	return actor, ok
}

// UUIDParam parses the named path parameter, writing a 400 on failure.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// UUIDQuery parses an optional query parameter. A present but malformed
// value writes a 400.
func UUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, NewErrorResponse("invalid "+name))
		return nil, false
	}
	return &id, true
}

// Guard builds the access checks handlers attach to their routes.
type Guard interface {
	RequirePermission(permission string) gin.HandlerFunc
	RequireRole(roles ...model.RoleName) gin.HandlerFunc
}

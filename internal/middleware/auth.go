package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/rbac"
	"github.com/jwalitptl/clinic-api/pkg/auth"
)

type AuthMiddleware struct {
	rbacService *rbac.Service
	jwtService  auth.JWTService
}

func NewAuthMiddleware(rbacService *rbac.Service, jwtService auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		rbacService: rbacService,
		jwtService:  jwtService,
	}
}

// Authenticate verifies the bearer token and sets the actor in context.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid authorization format"))
			return
		}

		claims, err := m.jwtService.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid token"))
			return
		}

		handler.SetActor(c, claims.Actor())
		c.Set("user_id", claims.UserID.String())
		c.Next()
	}
}

// RequirePermission lets the request through only if one of the actor's
// roles links to permission.
func (m *AuthMiddleware) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := handler.RequireActor(c)
		if !ok {
			return
		}

		allowed, err := m.rbacService.HasPermission(c.Request.Context(), actor, permission)
		if err != nil {
			log.Error().Err(err).Str("permission", permission).Msg("Failed to check permission")
			c.AbortWithStatusJSON(http.StatusInternalServerError, handler.NewErrorResponse("failed to check permission"))
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, handler.NewErrorResponse("permission denied"))
			return
		}
		c.Next()
	}
}

// RequireRole lets the request through if the actor holds any of roles.
func (m *AuthMiddleware) RequireRole(roles ...model.RoleName) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := handler.RequireActor(c)
		if !ok {
			return
		}
		for _, r := range roles {
			if rbac.HasRole(actor, r) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, handler.NewErrorResponse("permission denied"))
	}
}

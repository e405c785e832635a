package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
)

type AuditMiddleware struct {
	auditSvc *audit.Service
}

func NewAuditMiddleware(auditSvc *audit.Service) *AuditMiddleware {
	return &AuditMiddleware{auditSvc: auditSvc}
}

// AuditLog records every state-changing request on the group once handled.
// Reads are not recorded here.
func (m *AuditMiddleware) AuditLog(entityType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		var action string
		switch c.Request.Method {
		case http.MethodPost:
			action = "create"
		case http.MethodPut, http.MethodPatch:
			action = "update"
		case http.MethodDelete:
			action = "delete"
		default:
			return
		}

		actor, ok := handler.ActorFrom(c)
		if !ok {
			return
		}

		var entityID uuid.UUID
		if id := c.Param("id"); id != "" {
			entityID, _ = uuid.Parse(id)
		}

		outcome := model.AuditOutcomeSuccess
		if c.Writer.Status() >= 400 {
			outcome = model.AuditOutcomeFailure
		}

		err := m.auditSvc.Log(c.Request.Context(), actor.ID, action, entityType, entityID, outcome,
			&audit.LogOptions{
				Metadata: map[string]interface{}{
					"path":   c.FullPath(),
					"method": c.Request.Method,
					"status": c.Writer.Status(),
				},
			})
		if err != nil {
			log.Warn().Err(err).Str("entity_type", entityType).Msg("Failed to write audit entry")
		}
	}
}

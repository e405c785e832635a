package audit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
)

type Handler struct {
	service *audit.Service
}

func NewHandler(service *audit.Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	r.GET("/audit/logs", guard.RequireRole(model.RoleSuperAdmin), h.ListLogs)
}

// ListLogs filters by user_id, entity_id and outcome, newest first.
func (h *Handler) ListLogs(c *gin.Context) {
	var filter model.AuditFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		handler.BindError(c, err)
		return
	}
	var ok bool
	if filter.UserID, ok = handler.UUIDQuery(c, "user_id"); !ok {
		return
	}
	if filter.EntityID, ok = handler.UUIDQuery(c, "entity_id"); !ok {
		return
	}

	logs, err := h.service.List(c.Request.Context(), &filter)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(logs))
}

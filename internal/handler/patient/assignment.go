package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
)

func (h *Handler) Assign(c *gin.Context) {
	userID, recordID, ok := bindAssignment(c)
	if !ok {
		return
	}

	a, err := h.service.Assign(c.Request.Context(), userID, recordID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(a))
}

func (h *Handler) Unassign(c *gin.Context) {
	userID, recordID, ok := bindAssignment(c)
	if !ok {
		return
	}

	if err := h.service.Unassign(c.Request.Context(), userID, recordID); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("assignment removed"))
}

func (h *Handler) ListAssignments(c *gin.Context) {
	userID, ok := handler.UUIDQuery(c, "user_id")
	if !ok {
		return
	}
	if userID == nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("user_id is required"))
		return
	}

	list, err := h.service.ListAssignments(c.Request.Context(), *userID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func bindAssignment(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	var req model.AssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return uuid.Nil, uuid.Nil, false
	}
	// Both ids passed the uuid binding tag.
	return uuid.MustParse(req.UserID), uuid.MustParse(req.PatientRecordID), true
}

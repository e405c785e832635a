package consultation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/consultation"
)

type Handler struct {
	service *consultation.Service
}

func NewHandler(service *consultation.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, _ handler.Guard) {
	consultations := r.Group("/consultations")
	{
		consultations.POST("", h.Book)
		consultations.GET("/mine", h.ListMine)
		consultations.GET("/:id", h.Get)
		consultations.PUT("/:id", h.Update)
		consultations.PUT("/:id/status", h.UpdateStatus)
		consultations.POST("/:id/cancel", h.Cancel)
		consultations.POST("/:id/assign-nurse", h.AssignNurse)
	}
}

func (h *Handler) Book(c *gin.Context) {
	actor, ok := handler.RequireActor(c)
	if !ok {
		return
	}

	var req model.BookConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	booked, err := h.service.Book(c.Request.Context(), actor, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(booked))
}

func (h *Handler) ListMine(c *gin.Context) {
	actor, ok := handler.RequireActor(c)
	if !ok {
		return
	}

	list, err := h.service.ListMine(c.Request.Context(), actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) Get(c *gin.Context) {
	actor, id, ok := target(c)
	if !ok {
		return
	}

	found, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(found))
}

func (h *Handler) Update(c *gin.Context) {
	actor, id, ok := target(c)
	if !ok {
		return
	}

	var req model.UpdateConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	updated, err := h.service.UpdateClinical(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	actor, id, ok := target(c)
	if !ok {
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	updated, err := h.service.Transition(c.Request.Context(), actor, id, model.ConsultationStatus(req.Status))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func (h *Handler) Cancel(c *gin.Context) {
	actor, id, ok := target(c)
	if !ok {
		return
	}

	cancelled, err := h.service.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(cancelled))
}

func (h *Handler) AssignNurse(c *gin.Context) {
	actor, id, ok := target(c)
	if !ok {
		return
	}

	var req model.AssignNurseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	updated, err := h.service.AssignNurse(c.Request.Context(), actor, id, uuid.MustParse(req.NurseID))
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(updated))
}

func target(c *gin.Context) (model.Actor, uuid.UUID, bool) {
	actor, ok := handler.RequireActor(c)
	if !ok {
		return model.Actor{}, uuid.Nil, false
	}
	id, ok := handler.UUIDParam(c, "id")
	return actor, id, ok
}

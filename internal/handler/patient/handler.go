package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/patient"
)

// Handler serves patient records and staff assignments. Record access is
// decided per request by the patient service, not by route permissions.
type Handler struct {
	service *patient.Service
}

func NewHandler(service *patient.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	patients := r.Group("/patients")
	{
		patients.GET("/:id", h.GetPatient)
		patients.PUT("/:id", h.UpdatePatient)
		patients.POST("/:id/vitals", h.AddVital)
		patients.POST("/:id/prescriptions", h.AddPrescription)
		patients.GET("/:id/prescriptions", h.ListPrescriptions)
		patients.POST("/:id/tests", h.AddTestResult)
		patients.GET("/:id/tests", h.ListTestResults)
	}

	assignments := r.Group("/assignments", guard.RequirePermission(model.PermAssignmentsManage))
	{
		assignments.POST("", h.Assign)
		assignments.DELETE("", h.Unassign)
		assignments.GET("", h.ListAssignments)
	}
}

func (h *Handler) GetPatient(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	record, err := h.service.Get(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

func (h *Handler) UpdatePatient(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	var req model.UpdatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	record, err := h.service.Update(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(record))
}

func (h *Handler) AddVital(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	var req model.VitalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	vital, err := h.service.AddVital(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(vital))
}

func (h *Handler) AddPrescription(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	var req model.PrescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	p, err := h.service.AddPrescription(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(p))
}

func (h *Handler) ListPrescriptions(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	list, err := h.service.ListPrescriptions(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) AddTestResult(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	var req model.TestResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	result, err := h.service.AddTestResult(c.Request.Context(), actor, id, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(result))
}

func (h *Handler) ListTestResults(c *gin.Context) {
	actor, id, ok := h.target(c)
	if !ok {
		return
	}

	list, err := h.service.ListTestResults(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(list))
}

func (h *Handler) target(c *gin.Context) (model.Actor, uuid.UUID, bool) {
	actor, ok := handler.RequireActor(c)
	if !ok {
		return model.Actor{}, uuid.Nil, false
	}
	id, ok := handler.UUIDParam(c, "id")
	return actor, id, ok
}

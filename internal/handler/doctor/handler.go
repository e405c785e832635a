package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/service/availability"
	"github.com/jwalitptl/clinic-api/internal/service/doctor"
)

type Handler struct {
	doctors      *doctor.Service
	availability *availability.Service
}

func NewHandler(doctors *doctor.Service, availability *availability.Service) *Handler {
	return &Handler{doctors: doctors, availability: availability}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard handler.Guard) {
	r.POST("/admin/doctors", guard.RequirePermission(model.PermDoctorsManage), h.CreateDoctor)

	doctors := r.Group("/doctors")
	{
		doctors.GET("", h.ListDoctors)

		me := doctors.Group("/me", guard.RequireRole(model.RoleDoctor))
		{
			me.GET("", h.GetMine)
			me.PUT("", h.UpdateMine)
			me.GET("/availability", h.ListMyAvailability)
			me.POST("/availability", h.AddMyAvailability)
			me.DELETE("/availability/:rule_id", h.DeleteMyAvailability)
		}

		doctors.GET("/:id", h.GetDoctor)
		doctors.GET("/:id/slots", h.ListSlots)
		doctors.POST("/:id/deactivate", guard.RequirePermission(model.PermDoctorsManage), h.Deactivate)
	}

	specs := r.Group("/specializations")
	{
		specs.GET("", h.ListSpecializations)
		specs.POST("", guard.RequirePermission(model.PermSpecializations), h.CreateSpecialization)
		specs.PUT("/:id", guard.RequirePermission(model.PermSpecializations), h.UpdateSpecialization)
		specs.DELETE("/:id", guard.RequirePermission(model.PermSpecializations), h.DeleteSpecialization)
	}
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req model.CreateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	profile, err := h.doctors.Create(c.Request.Context(), &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(profile))
}

func (h *Handler) ListDoctors(c *gin.Context) {
	specID, ok := handler.UUIDQuery(c, "specialization_id")
	if !ok {
		return
	}

	doctors, err := h.doctors.List(c.Request.Context(), specID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(doctors))
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	profile, err := h.doctors.Get(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

func (h *Handler) GetMine(c *gin.Context) {
	profile, ok := h.myProfile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

func (h *Handler) UpdateMine(c *gin.Context) {
	actor, ok := handler.RequireActor(c)
	if !ok {
		return
	}

	var req model.UpdateDoctorProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	profile, err := h.doctors.UpdateMine(c.Request.Context(), actor.ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

func (h *Handler) Deactivate(c *gin.Context) {
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	profile, err := h.doctors.Deactivate(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(profile))
}

// ListSlots takes start_date and an optional end_date (defaults to
// start_date), both inclusive UTC dates.
func (h *Handler) ListSlots(c *gin.Context) {
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	rawStart := c.Query("start_date")
	if rawStart == "" {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("start_date is required"))
		return
	}
	start, err := model.ParseInstant(rawStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid start_date"))
		return
	}
	end := start
	if rawEnd := c.Query("end_date"); rawEnd != "" {
		if end, err = model.ParseInstant(rawEnd); err != nil {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid end_date"))
			return
		}
	}

	slots, err := h.availability.EnumerateSlots(c.Request.Context(), id, start, end)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(slots))
}

func (h *Handler) ListMyAvailability(c *gin.Context) {
	profile, ok := h.myProfile(c)
	if !ok {
		return
	}

	rules, err := h.availability.ListRules(c.Request.Context(), profile.ID)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(rules))
}

func (h *Handler) AddMyAvailability(c *gin.Context) {
	profile, ok := h.myProfile(c)
	if !ok {
		return
	}

	var req model.AvailabilityRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handler.BindError(c, err)
		return
	}

	rule, err := h.availability.AddRule(c.Request.Context(), profile.ID, &req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(rule))
}

func (h *Handler) DeleteMyAvailability(c *gin.Context) {
	profile, ok := h.myProfile(c)
	if !ok {
		return
	}
	ruleID, ok := handler.UUIDParam(c, "rule_id")
	if !ok {
		return
	}

	if err := h.availability.DeleteRule(c.Request.Context(), profile.ID, ruleID); err != nil {
		handler.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewMessageResponse("availability rule deleted"))
}

func (h *Handler) myProfile(c *gin.Context) (*model.DoctorProfile, bool) {
	actor, ok := handler.RequireActor(c)
	if !ok {
		return nil, false
	}
	profile, err := h.doctors.GetByUser(c.Request.Context(), actor.ID)
	if err != nil {
		handler.RespondError(c, err)
		return nil, false
	}
	return profile, true
}

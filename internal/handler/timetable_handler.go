package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/faculty-api/internal/models"
	"github.com/campusdesk/faculty-api/internal/service"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
	"github.com/campusdesk/faculty-api/pkg/response"
)

// TimetableHandler exposes weekly template and availability endpoints.
type TimetableHandler struct {
	timetables   *service.TimetableService
	materializer *service.MaterializerService
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(timetables *service.TimetableService, materializer *service.MaterializerService) *TimetableHandler {
	return &TimetableHandler{timetables: timetables, materializer: materializer}
}

// Get godoc
// @Summary Get a faculty's weekly timetable
// @Tags Timetables
// @Produce json
// @Param facultyId path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{facultyId} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	tt, err := h.timetables.GetByFaculty(c.Request.Context(), c.Param("facultyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tt, nil)
}

// Create godoc
// @Summary Create a faculty's weekly timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param facultyId path string true "Faculty ID"
// @Param payload body models.WeeklySchedule true "Weekly schedule"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables/{facultyId} [post]
func (h *TimetableHandler) Create(c *gin.Context) {
	var schedule models.WeeklySchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tt, err := h.timetables.Create(c.Request.Context(), actorFromContext(c), c.Param("facultyId"), schedule)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, tt, nil)
}

// Update godoc
// @Summary Replace a faculty's weekly timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param facultyId path string true "Faculty ID"
// @Param payload body models.WeeklySchedule true "Weekly schedule"
// @Success 200 {object} response.Envelope
// @Router /timetables/{facultyId} [put]
func (h *TimetableHandler) Update(c *gin.Context) {
	var schedule models.WeeklySchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tt, err := h.timetables.Update(c.Request.Context(), actorFromContext(c), c.Param("facultyId"), schedule)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tt, nil)
}

// UpdateSlot godoc
// @Summary Write a single slot of a faculty's weekly timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param facultyId path string true "Faculty ID"
// @Param day path string true "Weekday name"
// @Param period path string true "Period (hour of day)"
// @Param payload body models.Slot true "Slot"
// @Success 200 {object} response.Envelope
// @Router /timetables/{facultyId}/slots/{day}/{period} [put]
func (h *TimetableHandler) UpdateSlot(c *gin.Context) {
	var slot models.Slot
	if err := c.ShouldBindJSON(&slot); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	tt, err := h.timetables.UpdateSlot(c.Request.Context(), actorFromContext(c), c.Param("facultyId"), c.Param("day"), c.Param("period"), slot)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tt, nil)
}

// Student godoc
// @Summary Weekly timetable composed for the authenticated student
// @Tags Timetables
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables/student/me [get]
func (h *TimetableHandler) Student(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	view, err := h.timetables.StudentTimetable(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Availability godoc
// @Summary Free one-hour slots for a faculty over the upcoming window
// @Tags Timetables
// @Produce json
// @Param facultyId path string true "Faculty ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{facultyId}/availability [get]
func (h *TimetableHandler) Availability(c *gin.Context) {
	slots, err := h.timetables.AvailableSlots(c.Request.Context(), c.Param("facultyId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

type materializeRequest struct {
	From time.Time `json:"from" binding:"required"`
	To   time.Time `json:"to" binding:"required"`
}

// Materialize godoc
// @Summary Generate dated class sessions from the weekly timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param facultyId path string true "Faculty ID"
// @Param payload body materializeRequest true "Date range"
// @Success 200 {object} response.Envelope
// @Router /timetables/{facultyId}/materialize [post]
func (h *TimetableHandler) Materialize(c *gin.Context) {
	facultyID := c.Param("facultyId")
	actor := actorFromContext(c)
	if actor.Role != models.RoleAdmin && actor.ID != facultyID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot materialize another faculty's timetable"))
		return
	}

	var req materializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.materializer.Generate(c.Request.Context(), facultyID, req.From, req.To)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

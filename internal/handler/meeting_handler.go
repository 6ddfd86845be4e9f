package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/faculty-api/internal/models"
	"github.com/campusdesk/faculty-api/internal/service"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
	"github.com/campusdesk/faculty-api/pkg/response"
)

// MeetingHandler exposes the meeting request workflow.
type MeetingHandler struct {
	meetings *service.MeetingService
}

// NewMeetingHandler constructs handler.
func NewMeetingHandler(meetings *service.MeetingService) *MeetingHandler {
	return &MeetingHandler{meetings: meetings}
}

// Request godoc
// @Summary Request a meeting with a faculty member
// @Tags Meetings
// @Accept json
// @Produce json
// @Param payload body service.RequestMeetingRequest true "Meeting request"
// @Success 201 {object} response.Envelope
// @Router /meetings [post]
func (h *MeetingHandler) Request(c *gin.Context) {
	var req service.RequestMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	meeting, err := h.meetings.Request(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, meeting)
}

// List godoc
// @Summary List meetings visible to the caller
// @Tags Meetings
// @Produce json
// @Param status query string false "Filter by status"
// @Param from query string false "Start of range (RFC 3339 or date)"
// @Param to query string false "End of range (RFC 3339 or date)"
// @Success 200 {object} response.Envelope
// @Router /meetings [get]
func (h *MeetingHandler) List(c *gin.Context) {
	filter := models.MeetingFilter{Status: models.MeetingStatus(c.Query("status"))}

	var ok bool
	if filter.From, ok = parseTimeQuery(c, "from"); !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from parameter"))
		return
	}
	if filter.To, ok = parseTimeQuery(c, "to"); !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to parameter"))
		return
	}

	meetings, err := h.meetings.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meetings, nil)
}

// Get godoc
// @Summary Get a meeting
// @Tags Meetings
// @Produce json
// @Param id path string true "Meeting ID"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id} [get]
func (h *MeetingHandler) Get(c *gin.Context) {
	meeting, err := h.meetings.GetByID(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meeting, nil)
}

type meetingActionRequest struct {
	Action  models.MeetingAction `json:"action" binding:"required"`
	Message string               `json:"message"`
}

// Transition godoc
// @Summary Apply a workflow action to a meeting
// @Tags Meetings
// @Accept json
// @Produce json
// @Param id path string true "Meeting ID"
// @Param payload body meetingActionRequest true "Action payload"
// @Success 200 {object} response.Envelope
// @Router /meetings/{id}/transition [post]
func (h *MeetingHandler) Transition(c *gin.Context) {
	var req meetingActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	meeting, err := h.meetings.Transition(c.Request.Context(), actorFromContext(c), c.Param("id"), req.Action, req.Message)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, meeting, nil)
}

package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/faculty-api/internal/models"
	"github.com/campusdesk/faculty-api/internal/service"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
	"github.com/campusdesk/faculty-api/pkg/response"
)

// ExportHandler serves downloadable session reports.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// SessionReport godoc
// @Summary Download a faculty session report
// @Tags Exports
// @Produce text/csv,application/pdf
// @Param facultyId path string true "Faculty ID"
// @Param from query string true "Start of range (date)"
// @Param to query string true "End of range (date)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /exports/sessions/{facultyId} [get]
func (h *ExportHandler) SessionReport(c *gin.Context) {
	facultyID := c.Param("facultyId")
	actor := actorFromContext(c)
	if actor.Role != models.RoleAdmin && actor.ID != facultyID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot export another faculty's report"))
		return
	}

	from, ok := parseTimeQuery(c, "from")
	if !ok || from == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from parameter is required"))
		return
	}
	to, ok := parseTimeQuery(c, "to")
	if !ok || to == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to parameter is required"))
		return
	}

	format := service.ExportFormat(c.DefaultQuery("format", string(service.FormatCSV)))
	result, err := h.exports.SessionReport(c.Request.Context(), facultyID, *from, (*to).Add(24*time.Hour-time.Nanosecond), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+result.Filename+`"`)
	c.Data(200, result.ContentType, result.Content)
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusdesk/faculty-api/internal/models"
	"github.com/campusdesk/faculty-api/internal/service"
	appErrors "github.com/campusdesk/faculty-api/pkg/errors"
	"github.com/campusdesk/faculty-api/pkg/response"
)

// AdminHandler exposes administrative operations: user listing and the
// on-demand integrity sweep.
type AdminHandler struct {
	users     userLister
	integrity *service.IntegrityService
}

type userLister interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

// NewAdminHandler constructs handler.
func NewAdminHandler(users userLister, integrity *service.IntegrityService) *AdminHandler {
	return &AdminHandler{users: users, integrity: integrity}
}

// ListUsers godoc
// @Summary List users
// @Tags Admin
// @Produce json
// @Param role query string false "Filter by role"
// @Param groupId query string false "Filter by group"
// @Param search query string false "Name or email search"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	filter := models.UserFilter{
		GroupID:   c.Query("groupId"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filter.Role = &r
	}
	filter.Page = intQuery(c, "page", 1)
	filter.PageSize = intQuery(c, "pageSize", 20)

	users, total, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users"))
		return
	}
	response.JSON(c, http.StatusOK, users, &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	})
}

// RunIntegritySweep godoc
// @Summary Run the data integrity sweep now
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/integrity/sweep [post]
func (h *AdminHandler) RunIntegritySweep(c *gin.Context) {
	report, err := h.integrity.Sweep(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

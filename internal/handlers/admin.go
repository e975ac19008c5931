// internal/handlers/admin.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/bigdiamond/atelier-backend/internal/i18n"
	"github.com/bigdiamond/atelier-backend/internal/models"
	"github.com/bigdiamond/atelier-backend/internal/services"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type AdminHandler struct {
	projects *services.ProjectService
	configs  *services.ConfigurationService
	security *services.SecurityService
}

func NewAdminHandler(projects *services.ProjectService, configs *services.ConfigurationService, security *services.SecurityService) *AdminHandler {
	return &AdminHandler{
		projects: projects,
		configs:  configs,
		security: security,
	}
}

// GET /admin/custom-design
func (h *AdminHandler) ListProjects(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	params := utils.GetPaginationParams(c)

	projects, total, err := h.projects.List(c.Request.Context(), c.Query("status"), params)
	if errors.Is(err, services.ErrInvalidStatus) {
		utils.BadRequestResponse(c, "invalid_status", i18n.T(lang, i18n.KeyProjectInvalidStatus))
		return
	}
	if err != nil {
		utils.InternalErrorResponse(c, "", "")
		return
	}

	views := make([]gin.H, 0, len(projects))
	for i := range projects {
		views = append(views, projectView(lang, &projects[i], true))
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(views, total, params))
}

// GET /admin/custom-design/:id
func (h *AdminHandler) GetProject(c *gin.Context) {
	project, err := h.projects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeProjectError(c, err)
		return
	}
	utils.OKResponse(c, projectView(utils.GetLangFromContext(c), project, true))
}

// GET /admin/custom-design/:id/transitions
func (h *AdminHandler) GetTransitions(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	current, available, err := h.projects.AvailableTransitions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeProjectError(c, err)
		return
	}

	actions := make([]gin.H, 0, len(available))
	for _, status := range available {
		actions = append(actions, gin.H{
			"status": status,
			"label":  i18n.StatusLabel(lang, string(status)),
		})
	}
	utils.OKResponse(c, gin.H{
		"current":       current,
		"current_label": i18n.StatusLabel(lang, string(current)),
		"available":     actions,
	})
}

// PUT /admin/custom-design/:id/status
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	h.changeStatus(c, false)
}

// PUT /admin/custom-design/:id/force-status
func (h *AdminHandler) ForceStatus(c *gin.Context) {
	h.changeStatus(c, true)
}

func (h *AdminHandler) changeStatus(c *gin.Context, force bool) {
	lang := utils.GetLangFromContext(c)

	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindingErrorResponse(c, err)
		return
	}

	actor, _ := utils.GetSubjectFromContext(c)
	next := models.ProjectStatus(req.Status)

	var result *services.TransitionResult
	var err error
	if force {
		result, err = h.projects.ForceTransition(c.Request.Context(), c.Param("id"), next, actor)
	} else {
		result, err = h.projects.Transition(c.Request.Context(), c.Param("id"), next, actor)
	}
	if err != nil {
		writeProjectError(c, err)
		return
	}

	body := gin.H{
		"message": i18n.T(lang, i18n.KeyProjectStatusUpdated),
		"project": projectView(lang, result.Project, true),
	}
	if result.Event != nil {
		body["event_id"] = result.Event.ID
	}
	utils.OKResponse(c, body)
}

// GET /admin/ring-configurations
func (h *AdminHandler) ListRingConfigurations(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	filter := services.RecordFilter{
		Email:    services.SanitizeEmail(c.Query("email")),
		ConfigID: services.SanitizeText(c.Query("config_id")),
	}

	records, total, err := h.configs.ListRecords(c.Request.Context(), filter, params)
	if err != nil {
		utils.InternalErrorResponse(c, "", "")
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(records, total, params))
}

// GET /admin/ring-configurations/:config_id/history
func (h *AdminHandler) RingConfigurationHistory(c *gin.Context) {
	configID := services.SanitizeText(c.Param("config_id"))

	records, err := h.configs.History(c.Request.Context(), configID)
	if err != nil {
		utils.InternalErrorResponse(c, "", "")
		return
	}
	if len(records) == 0 {
		utils.NotFoundResponse(c, "config_not_found", i18n.KeyConfigNotFound)
		return
	}
	utils.OKResponse(c, gin.H{
		"config_id": configID,
		"records":   records,
	})
}

// GET /admin/customers/ring-configurations?email=
func (h *AdminHandler) CustomerRingConfigurations(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	email := services.SanitizeEmail(c.Query("email"))
	if email == "" {
		utils.BadRequestResponse(c, utils.CodeValidationError, i18n.T(lang, i18n.KeyValidationInvalidField, "email"))
		return
	}

	records, err := h.configs.FindByCustomerEmail(c.Request.Context(), email)
	if err != nil {
		utils.InternalErrorResponse(c, "", "")
		return
	}
	utils.OKResponse(c, gin.H{
		"customer_email": email,
		"records":        records,
	})
}

// GET /admin/security-events
func (h *AdminHandler) ListSecurityEvents(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	events, total, err := h.security.ListEvents(c.Request.Context(), c.Query("reason"), params)
	if err != nil {
		utils.InternalErrorResponse(c, "", "")
		return
	}
	utils.PaginatedResponse(c, utils.CreatePaginationResult(events, total, params))
}

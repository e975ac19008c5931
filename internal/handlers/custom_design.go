// internal/handlers/custom_design.go
package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bigdiamond/atelier-backend/internal/i18n"
	"github.com/bigdiamond/atelier-backend/internal/models"
	"github.com/bigdiamond/atelier-backend/internal/services"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

type CustomDesignHandler struct {
	projects *services.ProjectService
	auth     *services.AuthService
	storage  services.FileStorage
}

func NewCustomDesignHandler(projects *services.ProjectService, auth *services.AuthService, storage services.FileStorage) *CustomDesignHandler {
	return &CustomDesignHandler{projects: projects, auth: auth, storage: storage}
}

type historyView struct {
	Status      models.ProjectStatus `json:"status"`
	StatusLabel string               `json:"status_label"`
	Timestamp   time.Time            `json:"timestamp"`
	User        string               `json:"user"`
}

// projectView is the public shape of a project. Comments, attachments and
// contact details are added for the customer and admins only.
func projectView(lang string, project *models.CustomProject, full bool) gin.H {
	history := make([]historyView, 0, len(project.StatusHistory))
	for _, entry := range project.StatusHistory {
		history = append(history, historyView{
			Status:      entry.Status,
			StatusLabel: i18n.StatusLabel(lang, string(entry.Status)),
			Timestamp:   entry.Timestamp,
			User:        entry.User,
		})
	}

	view := gin.H{
		"project_id":     project.ID,
		"title":          project.Title,
		"project_type":   project.ProjectType,
		"status":         project.Status,
		"status_label":   i18n.StatusLabel(lang, string(project.Status)),
		"status_history": history,
		"created_date":   project.CreatedAt,
	}
	if full {
		view["customer_name"] = project.CustomerName
		view["customer_email"] = project.CustomerEmail
		view["customer_phone"] = project.CustomerPhone
		view["brief"] = project.Brief
		view["budget"] = project.Budget
		view["deadline"] = project.Deadline
		view["materials"] = project.Materials
		view["stones"] = project.Stones
		view["inspiration_notes"] = project.InspirationNotes
		view["comments"] = project.Comments
		view["attachments"] = project.Attachments
	}
	return view
}

// viewer derives who is calling from the bearer claims. A customer token
// only counts for the project it was issued for.
func viewer(c *gin.Context, projectID string) services.Viewer {
	if utils.IsAdminContext(c) {
		subject, _ := utils.GetSubjectFromContext(c)
		return services.Viewer{Admin: true, Email: utils.GetEmailFromContext(c), Name: subject}
	}
	role, _ := utils.GetRoleFromContext(c)
	subject, _ := utils.GetSubjectFromContext(c)
	if role == utils.RoleCustomer && strings.EqualFold(subject, projectID) {
		return services.Viewer{Email: utils.GetEmailFromContext(c)}
	}
	return services.Viewer{}
}

// POST /custom-design/submit
func (h *CustomDesignHandler) Submit(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindingErrorResponse(c, err)
		return
	}

	project, err := h.projects.Create(c.Request.Context(), req)
	if err != nil {
		utils.InternalErrorResponse(c, "project_creation_failed", i18n.T(lang, i18n.KeyProjectCreationFailed))
		return
	}

	body := gin.H{
		"project_id": project.ID,
		"message":    i18n.T(lang, i18n.KeyProjectSubmitted),
	}
	if token, err := h.auth.IssueCustomerToken(project); err != nil {
		logrus.WithError(err).WithField("project_id", project.ID).Error("Failed to issue customer token")
	} else {
		body["access_token"] = token.Token
		body["access_token_expires_at"] = token.ExpiresAt
	}
	utils.CreatedResponse(c, body)
}

// GET /custom-design/:id
func (h *CustomDesignHandler) GetProject(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	project, err := h.projects.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, services.ErrProjectNotFound) {
		utils.NotFoundResponse(c, "project_not_found", i18n.KeyProjectNotFound)
		return
	}
	if err != nil {
		utils.InternalErrorResponse(c, "", "")
		return
	}

	full := h.projects.Authorize(project, viewer(c, project.ID.String())) == nil
	utils.OKResponse(c, projectView(lang, project, full))
}

// POST /custom-design/:id/comments
func (h *CustomDesignHandler) AddComment(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindingErrorResponse(c, err)
		return
	}

	id := c.Param("id")
	comment, err := h.projects.AddComment(c.Request.Context(), id, viewer(c, id), req.Comment)
	switch {
	case errors.Is(err, services.ErrProjectNotFound):
		utils.NotFoundResponse(c, "project_not_found", i18n.KeyProjectNotFound)
		return
	case errors.Is(err, services.ErrProjectForbidden):
		utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyProjectForbidden))
		return
	case errors.Is(err, services.ErrInvalidProjectInput):
		utils.BadRequestResponse(c, utils.CodeValidationError, i18n.T(lang, i18n.KeyValidationRequired, "comment"))
		return
	case err != nil:
		utils.InternalErrorResponse(c, "comment_failed", i18n.T(lang, i18n.KeyCommentFailed))
		return
	}

	utils.CreatedResponse(c, gin.H{
		"comment_id": comment.ID,
		"comment":    comment,
		"message":    i18n.T(lang, i18n.KeyCommentAdded),
	})
}

// POST /custom-design/:id/attachments (multipart: file, kind)
func (h *CustomDesignHandler) UploadAttachment(c *gin.Context) {
	lang := utils.GetLangFromContext(c)
	ctx := c.Request.Context()

	project, err := h.projects.Get(ctx, c.Param("id"))
	if errors.Is(err, services.ErrProjectNotFound) {
		utils.NotFoundResponse(c, "project_not_found", i18n.KeyProjectNotFound)
		return
	}
	if err != nil {
		utils.InternalErrorResponse(c, "", "")
		return
	}

	who := viewer(c, project.ID.String())
	if err := h.projects.Authorize(project, who); err != nil {
		utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyProjectForbidden))
		return
	}

	kind := models.AttachmentKind(c.DefaultPostForm("kind", string(models.AttachmentKindInspiration)))
	// CAD files come from the workshop.
	if kind == models.AttachmentKindCAD && !who.Admin {
		utils.ForbiddenResponse(c, i18n.T(lang, i18n.KeyProjectForbidden))
		return
	}
	opts, ok := services.AttachmentUploadOptions(kind, project.ID)
	if !ok {
		utils.BadRequestResponse(c, utils.CodeValidationError, i18n.T(lang, i18n.KeyValidationInvalidField, "kind"))
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		utils.BadRequestResponse(c, utils.CodeValidationError, i18n.T(lang, i18n.KeyFileRequired))
		return
	}
	if header.Size > opts.MaxSize {
		utils.BadRequestResponse(c, "file_too_large", i18n.T(lang, i18n.KeyFileTooLarge))
		return
	}
	file, err := header.Open()
	if err != nil {
		utils.BadRequestResponse(c, utils.CodeValidationError, i18n.T(lang, i18n.KeyFileRequired))
		return
	}
	defer file.Close()

	result, err := h.storage.Upload(ctx, file, header.Filename, opts)
	switch {
	case errors.Is(err, services.ErrFileTooLarge):
		utils.BadRequestResponse(c, "file_too_large", i18n.T(lang, i18n.KeyFileTooLarge))
		return
	case errors.Is(err, services.ErrFileTypeInvalid):
		utils.BadRequestResponse(c, "invalid_file_type", i18n.T(lang, i18n.KeyFileInvalidType))
		return
	case err != nil:
		logrus.WithError(err).WithField("project_id", project.ID).Error("Attachment upload failed")
		utils.InternalErrorResponse(c, "upload_failed", i18n.T(lang, i18n.KeyFileUploadFailed))
		return
	}

	addedBy := who.Name
	if !who.Admin {
		addedBy = project.CustomerName
	}
	attachment := &models.ProjectAttachment{
		Kind:     kind,
		FileName: services.SanitizeText(header.Filename),
		Key:      result.Key,
		URL:      result.URL,
		Size:     result.Size,
		MimeType: result.MimeType,
		AddedBy:  addedBy,
	}
	if err := h.projects.AddAttachment(ctx, project.ID, attachment); err != nil {
		if delErr := h.storage.Delete(ctx, result.Key); delErr != nil {
			logrus.WithError(delErr).WithField("key", result.Key).Warn("Failed to remove orphaned upload")
		}
		utils.InternalErrorResponse(c, "upload_failed", i18n.T(lang, i18n.KeyFileUploadFailed))
		return
	}

	utils.CreatedResponse(c, gin.H{
		"attachment": attachment,
		"message":    i18n.T(lang, i18n.KeyFileUploadSuccess),
	})
}

// writeProjectError maps workflow errors of the admin status routes.
func writeProjectError(c *gin.Context, err error) {
	lang := utils.GetLangFromContext(c)
	var transition *services.TransitionError
	switch {
	case errors.Is(err, services.ErrProjectNotFound):
		utils.NotFoundResponse(c, "project_not_found", i18n.KeyProjectNotFound)
	case errors.Is(err, services.ErrInvalidStatus):
		utils.BadRequestResponse(c, "invalid_status", i18n.T(lang, i18n.KeyProjectInvalidStatus))
	case errors.As(err, &transition):
		utils.ConflictResponse(c, "invalid_transition", i18n.T(lang, i18n.KeyProjectInvalidTransition,
			i18n.StatusLabel(lang, string(transition.From)), i18n.StatusLabel(lang, string(transition.To))))
	default:
		utils.InternalErrorResponse(c, "", "")
	}
}

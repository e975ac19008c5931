// internal/services/project_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/database"
	"github.com/bigdiamond/atelier-backend/internal/events"
	"github.com/bigdiamond/atelier-backend/internal/i18n"
	"github.com/bigdiamond/atelier-backend/internal/models"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

var (
	ErrProjectNotFound       = errors.New("project not found")
	ErrInvalidStatus         = errors.New("invalid project status")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrProjectCreationFailed = errors.New("project creation failed")
	ErrProjectForbidden      = errors.New("project access denied")
	ErrInvalidProjectInput   = errors.New("invalid project input")
)

// TransitionError is a move the workflow table does not allow.
type TransitionError struct {
	From models.ProjectStatus
	To   models.ProjectStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

type CreateProjectRequest struct {
	Name             string   `json:"name" binding:"required,max=255"`
	Email            string   `json:"email" binding:"required,email,max=255"`
	Phone            string   `json:"phone" binding:"omitempty,max=50"`
	ProjectType      string   `json:"project_type" binding:"required,oneof=ring necklace bracelet earrings other"`
	Brief            string   `json:"brief" binding:"required"`
	Budget           float64  `json:"budget" binding:"gte=0"`
	Deadline         string   `json:"deadline" binding:"omitempty,max=50"`
	Materials        []string `json:"materials" binding:"omitempty,max=20,dive,max=100"`
	Stones           []string `json:"stones" binding:"omitempty,max=20,dive,max=100"`
	InspirationNotes string   `json:"inspiration_notes"`
}

type CommentRequest struct {
	Comment string `json:"comment" binding:"required,max=5000"`
}

// ProjectEvent is the payload of intake and status change events.
type ProjectEvent struct {
	ProjectID      uuid.UUID            `json:"project_id"`
	Title          string               `json:"title"`
	CustomerName   string               `json:"customer_name"`
	CustomerEmail  string               `json:"customer_email"`
	Status         models.ProjectStatus `json:"status"`
	PreviousStatus models.ProjectStatus `json:"previous_status,omitempty"`
	Actor          string               `json:"actor"`
}

type TransitionResult struct {
	Project *models.CustomProject
	// Event is nil when nothing was published.
	Event *events.Event
}

// Viewer identifies who is acting on a project.
type Viewer struct {
	Admin bool
	Email string
	Name  string
}

type ProjectService struct {
	db    *gorm.DB
	bus   *events.Bus
	clock clock.Clock
}

func NewProjectService(db *gorm.DB, bus *events.Bus, clk clock.Clock) *ProjectService {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &ProjectService{db: db, bus: bus, clock: clk}
}

func (s *ProjectService) Create(ctx context.Context, req CreateProjectRequest) (*models.CustomProject, error) {
	projectType := models.ProjectType(SanitizeText(req.ProjectType))
	if !projectType.IsValid() {
		return nil, fmt.Errorf("%w: unknown project type %q", ErrProjectCreationFailed, req.ProjectType)
	}

	name := SanitizeText(req.Name)
	project := &models.CustomProject{
		Title:            i18n.T(i18n.Default(), i18n.KeyProjectTitle, projectType, name),
		CustomerName:     name,
		CustomerEmail:    SanitizeEmail(req.Email),
		CustomerPhone:    SanitizeText(req.Phone),
		ProjectType:      projectType,
		Brief:            SanitizeTextarea(req.Brief),
		Budget:           req.Budget,
		Deadline:         SanitizeText(req.Deadline),
		Materials:        models.StringArray(sanitizeStrings(req.Materials)),
		Stones:           models.StringArray(sanitizeStrings(req.Stones)),
		InspirationNotes: SanitizeTextarea(req.InspirationNotes),
	}
	project.RecordStatus(models.ProjectStatusBriefReceived, name, s.clock.Now().UTC())

	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		logrus.WithError(err).Error("Failed to create custom design project")
		return nil, fmt.Errorf("%w: %v", ErrProjectCreationFailed, err)
	}

	logrus.WithFields(logrus.Fields{
		"project_id":   project.ID,
		"project_type": project.ProjectType,
	}).Info("Custom design project submitted")

	s.publish(ctx, events.TypeCustomDesignIntake, project, "", name)
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (*models.CustomProject, error) {
	projectID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrProjectNotFound
	}

	var project models.CustomProject
	err = s.db.WithContext(ctx).
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Attachments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		First(&project, "id = ?", projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return &project, nil
}

func (s *ProjectService) List(ctx context.Context, status string, params utils.PaginationParams) ([]models.CustomProject, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.CustomProject{})
	if status != "" {
		if !models.ProjectStatus(status).IsValid() {
			return nil, 0, ErrInvalidStatus
		}
		query = query.Where("project_status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	var projects []models.CustomProject
	query = utils.ApplySort(query, params, []string{"created_at", "updated_at", "project_status", "project_budget"})
	if err := utils.ApplyPagination(query, params).Find(&projects).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, total, nil
}

// Transition moves the project along the workflow table.
func (s *ProjectService) Transition(ctx context.Context, id string, next models.ProjectStatus, actor string) (*TransitionResult, error) {
	return s.changeStatus(ctx, id, next, actor, false)
}

// ForceTransition is the administrative override: any known status is
// accepted regardless of the workflow table. Re-applying the current status
// is recorded in history without an event.
func (s *ProjectService) ForceTransition(ctx context.Context, id string, next models.ProjectStatus, actor string) (*TransitionResult, error) {
	return s.changeStatus(ctx, id, next, actor, true)
}

func (s *ProjectService) changeStatus(ctx context.Context, id string, next models.ProjectStatus, actor string, force bool) (*TransitionResult, error) {
	if !next.IsValid() {
		return nil, ErrInvalidStatus
	}
	projectID, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrProjectNotFound
	}

	var project models.CustomProject
	var previous models.ProjectStatus
	err = database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() == database.DriverPostgres {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := query.First(&project, "id = ?", projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return err
		}

		previous = project.Status
		if !force && !previous.CanTransitionTo(next) {
			return &TransitionError{From: previous, To: next}
		}

		project.RecordStatus(next, actor, s.clock.Now().UTC())
		return tx.Model(&project).Updates(map[string]interface{}{
			"project_status": project.Status,
			"status_history": project.StatusHistory,
		}).Error
	})
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) || errors.Is(err, ErrInvalidTransition) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update project status: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"project_id": project.ID,
		"from":       previous,
		"to":         next,
		"actor":      actor,
		"forced":     force,
	}).Info("Project status changed")

	result := &TransitionResult{Project: &project}
	if previous != next {
		result.Event = s.publish(ctx, events.TypeDesignStatusChanged, &project, previous, actor)
	}
	return result, nil
}

// AvailableTransitions returns the current status and the statuses the
// regular workflow allows next.
func (s *ProjectService) AvailableTransitions(ctx context.Context, id string) (models.ProjectStatus, []models.ProjectStatus, error) {
	projectID, err := uuid.Parse(id)
	if err != nil {
		return "", nil, ErrProjectNotFound
	}

	var project models.CustomProject
	err = s.db.WithContext(ctx).Select("id", "project_status").First(&project, "id = ?", projectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil, ErrProjectNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load project: %w", err)
	}
	return project.Status, project.Status.AvailableTransitions(), nil
}

// Authorize allows admins and the customer the project belongs to.
func (s *ProjectService) Authorize(project *models.CustomProject, viewer Viewer) error {
	if viewer.Admin {
		return nil
	}
	if viewer.Email != "" && strings.EqualFold(viewer.Email, project.CustomerEmail) {
		return nil
	}
	return ErrProjectForbidden
}

func (s *ProjectService) AddComment(ctx context.Context, id string, viewer Viewer, content string) (*models.ProjectComment, error) {
	project, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Authorize(project, viewer); err != nil {
		return nil, err
	}

	author := viewer.Name
	email := viewer.Email
	if !viewer.Admin {
		author = project.CustomerName
		email = project.CustomerEmail
	}
	if author == "" {
		author = "Klient"
	}

	comment := &models.ProjectComment{
		ProjectID:   project.ID,
		Author:      author,
		AuthorEmail: email,
		Content:     SanitizeTextarea(content),
	}
	if comment.Content == "" {
		return nil, fmt.Errorf("%w: empty comment", ErrInvalidProjectInput)
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}
	return comment, nil
}

func (s *ProjectService) AddAttachment(ctx context.Context, projectID uuid.UUID, attachment *models.ProjectAttachment) error {
	attachment.ProjectID = projectID
	if err := s.db.WithContext(ctx).Create(attachment).Error; err != nil {
		return fmt.Errorf("failed to add attachment: %w", err)
	}
	return nil
}

func (s *ProjectService) publish(ctx context.Context, eventType string, project *models.CustomProject, previous models.ProjectStatus, actor string) *events.Event {
	if s.bus == nil {
		return nil
	}
	ev := s.bus.Publish(ctx, eventType, ProjectEvent{
		ProjectID:      project.ID,
		Title:          project.Title,
		CustomerName:   project.CustomerName,
		CustomerEmail:  project.CustomerEmail,
		Status:         project.Status,
		PreviousStatus: previous,
		Actor:          actor,
	})
	return &ev
}

func sanitizeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		if cleaned := SanitizeText(item); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

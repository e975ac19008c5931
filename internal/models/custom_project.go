// internal/models/custom_project.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// projectTransitions lists, per status, the statuses a project may move to
// through the regular workflow. Each forward step can be undone by one.
var projectTransitions = map[ProjectStatus][]ProjectStatus{
	ProjectStatusBriefReceived:  {ProjectStatusConceptReady},
	ProjectStatusConceptReady:   {ProjectStatusCADApproved, ProjectStatusBriefReceived},
	ProjectStatusCADApproved:    {ProjectStatusInProduction, ProjectStatusConceptReady},
	ProjectStatusInProduction:   {ProjectStatusReadyForPickup, ProjectStatusCADApproved},
	ProjectStatusReadyForPickup: {ProjectStatusInProduction},
}

// ProjectStatuses in lifecycle order.
var ProjectStatuses = []ProjectStatus{
	ProjectStatusBriefReceived,
	ProjectStatusConceptReady,
	ProjectStatusCADApproved,
	ProjectStatusInProduction,
	ProjectStatusReadyForPickup,
}

func (s ProjectStatus) IsValid() bool {
	_, ok := projectTransitions[s]
	return ok
}

func (s ProjectStatus) CanTransitionTo(next ProjectStatus) bool {
	for _, allowed := range projectTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AvailableTransitions returns a copy of the allowed next statuses.
func (s ProjectStatus) AvailableTransitions() []ProjectStatus {
	next := projectTransitions[s]
	out := make([]ProjectStatus, len(next))
	copy(out, next)
	return out
}

func (t ProjectType) IsValid() bool {
	switch t {
	case ProjectTypeRing, ProjectTypeNecklace, ProjectTypeBracelet, ProjectTypeEarrings, ProjectTypeOther:
		return true
	}
	return false
}

type StatusEntry struct {
	Status    ProjectStatus `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
}

// StatusHistory is append-only; entries are never rewritten.
type StatusHistory []StatusEntry

func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (h *StatusHistory) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*h = nil
		return nil
	case []byte:
		return json.Unmarshal(v, h)
	case string:
		return json.Unmarshal([]byte(v), h)
	default:
		return fmt.Errorf("unsupported status history source type %T", value)
	}
}

func (StatusHistory) GormDataType() string {
	return "json"
}

func (StatusHistory) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

type CustomProject struct {
	BaseModel
	Title            string        `json:"title" gorm:"size:255;not null"`
	CustomerName     string        `json:"customer_name" gorm:"size:255;not null"`
	CustomerEmail    string        `json:"customer_email" gorm:"size:255;not null;index"`
	CustomerPhone    string        `json:"customer_phone" gorm:"size:50"`
	ProjectType      ProjectType   `json:"project_type" gorm:"type:varchar(20);not null;index"`
	Brief            string        `json:"brief" gorm:"type:text;not null"`
	Budget           float64       `json:"budget" gorm:"column:project_budget;type:decimal(12,2);default:0"`
	Deadline         string        `json:"deadline,omitempty" gorm:"size:50"`
	Materials        StringArray   `json:"materials"`
	Stones           StringArray   `json:"stones"`
	InspirationNotes string        `json:"inspiration_notes,omitempty" gorm:"type:text"`
	Status           ProjectStatus `json:"status" gorm:"column:project_status;type:varchar(30);not null;index"`
	StatusHistory    StatusHistory `json:"status_history" gorm:"column:status_history"`

	// Relationships
	Attachments []ProjectAttachment `json:"attachments,omitempty" gorm:"foreignKey:ProjectID"`
	Comments    []ProjectComment    `json:"comments,omitempty" gorm:"foreignKey:ProjectID"`
}

// RecordStatus moves the project to status and appends the history entry.
func (p *CustomProject) RecordStatus(status ProjectStatus, actor string, at time.Time) {
	p.Status = status
	p.StatusHistory = append(p.StatusHistory, StatusEntry{
		Status:    status,
		Timestamp: at,
		User:      actor,
	})
}

type ProjectAttachment struct {
	BaseModel
	ProjectID uuid.UUID      `json:"project_id" gorm:"type:uuid;not null;index"`
	Kind      AttachmentKind `json:"kind" gorm:"type:varchar(20);not null"`
	FileName  string         `json:"file_name" gorm:"size:255"`
	Key       string         `json:"key" gorm:"size:500;not null"`
	URL       string         `json:"url" gorm:"size:1000"`
	Size      int64          `json:"size"`
	MimeType  string         `json:"mime_type" gorm:"size:100"`
	AddedBy   string         `json:"added_by" gorm:"size:255"`
}

type ProjectComment struct {
	BaseModel
	ProjectID   uuid.UUID `json:"project_id" gorm:"type:uuid;not null;index"`
	Author      string    `json:"author" gorm:"size:255;not null"`
	AuthorEmail string    `json:"author_email" gorm:"size:255"`
	Content     string    `json:"content" gorm:"type:text;not null"`
}

// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// BeforeCreate assigns the primary key in Go so the schema works on both
// PostgreSQL and SQLite.
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL, stored as text on SQLite
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}
}

// StringArray is a text[] column on PostgreSQL and a text column holding the
// same array literal on SQLite.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	return pq.StringArray(a).Value()
}

func (a *StringArray) Scan(src interface{}) error {
	return (*pq.StringArray)(a).Scan(src)
}

func (StringArray) GormDataType() string {
	return "text"
}

func (StringArray) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// Enums
type ProjectStatus string

const (
	ProjectStatusBriefReceived  ProjectStatus = "brief_received"
	ProjectStatusConceptReady   ProjectStatus = "concept_ready"
	ProjectStatusCADApproved    ProjectStatus = "cad_approved"
	ProjectStatusInProduction   ProjectStatus = "in_production"
	ProjectStatusReadyForPickup ProjectStatus = "ready_for_pickup"
)

type ProjectType string

const (
	ProjectTypeRing     ProjectType = "ring"
	ProjectTypeNecklace ProjectType = "necklace"
	ProjectTypeBracelet ProjectType = "bracelet"
	ProjectTypeEarrings ProjectType = "earrings"
	ProjectTypeOther    ProjectType = "other"
)

type AttachmentKind string

const (
	AttachmentKindInspiration AttachmentKind = "inspiration"
	AttachmentKindCAD         AttachmentKind = "cad"
)

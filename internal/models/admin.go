// internal/models/admin.go
package models

import (
	"time"
)

type AuditLog struct {
	BaseModel
	Subject      string `json:"subject" gorm:"size:100;index"`
	Action       string `json:"action" gorm:"size:100;not null;index"`
	ResourceType string `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   string `json:"resource_id" gorm:"size:191;index"`
	NewValues    JSONB  `json:"new_values" gorm:"type:jsonb"`
	Status       int    `json:"status"`
	IPAddress    string `json:"ip_address" gorm:"size:45"`
	UserAgent    string `json:"user_agent" gorm:"type:text"`
}

// SecurityEvent records a rejected webhook call.
type SecurityEvent struct {
	BaseModel
	Reason     string    `json:"reason" gorm:"size:50;not null;index"`
	IPAddress  string    `json:"ip_address" gorm:"size:45;index"`
	Path       string    `json:"path" gorm:"size:255"`
	Headers    JSONB     `json:"headers" gorm:"type:jsonb"`
	Body       string    `json:"body" gorm:"type:text"`
	OccurredAt time.Time `json:"occurred_at" gorm:"index"`
}

// Transient is a short-lived key/value entry.
type Transient struct {
	Key       string    `gorm:"column:cache_key;primaryKey;size:191"`
	Value     string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

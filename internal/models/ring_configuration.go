// internal/models/ring_configuration.go
package models

import (
	"time"
)

// RingSpec is the sanitized description of one configured ring.
type RingSpec struct {
	Material  string            `json:"material"`
	Finish    string            `json:"finish"`
	Width     float64           `json:"width"`
	Thickness float64           `json:"thickness"`
	Size      string            `json:"size"`
	Stones    []string          `json:"stones"`
	Engraving string            `json:"engraving"`
	Price     float64           `json:"price"`
	Image     string            `json:"image"`
	Specs     map[string]string `json:"specs"`
}

type CustomerContact struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// RingConfiguration is the canonical record produced from a configurator
// webhook. ConfigID is the external, immutable key.
type RingConfiguration struct {
	ConfigID  string          `json:"config_id"`
	Ring1     RingSpec        `json:"ring1"`
	Ring2     RingSpec        `json:"ring2"`
	Customer  CustomerContact `json:"customer"`
	CreatedAt time.Time       `json:"created_at"`
}

func (c *RingConfiguration) TotalPrice() float64 {
	return c.Ring1.Price + c.Ring2.Price
}

// Ring returns the spec for ring number 1 or 2.
func (c *RingConfiguration) Ring(number int) RingSpec {
	if number == 2 {
		return c.Ring2
	}
	return c.Ring1
}

// RingConfigurationRecord is the durable, append-only copy of every
// configuration event. A configuration submitted twice has two records.
type RingConfigurationRecord struct {
	BaseModel
	ConfigID      string            `json:"config_id" gorm:"size:191;not null;index"`
	Title         string            `json:"title" gorm:"size:255"`
	ConfigData    RingConfiguration `json:"config_data" gorm:"type:jsonb;serializer:json;not null"`
	CustomerEmail string            `json:"customer_email" gorm:"size:255;index"`
	OrderRef      string            `json:"order_ref,omitempty" gorm:"size:100;index"`
	LinkedAt      *time.Time        `json:"linked_at,omitempty"`
}

func (RingConfigurationRecord) TableName() string {
	return "ring_configurations"
}

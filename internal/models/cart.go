// internal/models/cart.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// LineItemMeta is what travels with a configured ring from the cart to the
// order line item and the production record.
type LineItemMeta struct {
	ConfigID   string     `json:"config_id"`
	RingNumber int        `json:"ring_number,omitempty"`
	Ring       *RingSpec  `json:"custom_ring_data,omitempty"`
	Rings      []RingSpec `json:"custom_rings,omitempty"`
}

// LineItem is a purchasable entry produced by the product mapper. A nil
// UnitPrice leaves the catalog price of ProductID in effect.
type LineItem struct {
	ProductID int64        `json:"product_id"`
	Quantity  int          `json:"quantity"`
	UnitPrice *float64     `json:"unit_price,omitempty"`
	Image     string       `json:"image,omitempty"`
	Meta      LineItemMeta `json:"meta"`
}

func (li LineItem) Total() float64 {
	if li.UnitPrice == nil {
		return 0
	}
	return *li.UnitPrice * float64(li.Quantity)
}

type CartItem struct {
	BaseModel
	CartToken uuid.UUID    `json:"cart_token" gorm:"type:uuid;not null;index"`
	ProductID int64        `json:"product_id" gorm:"not null"`
	Quantity  int          `json:"quantity" gorm:"not null;default:1"`
	UnitPrice *float64     `json:"unit_price" gorm:"type:decimal(12,4)"`
	ConfigID  string       `json:"config_id" gorm:"size:191;index"`
	Image     string       `json:"image" gorm:"size:1000"`
	Meta      LineItemMeta `json:"meta" gorm:"type:jsonb;serializer:json"`
}

func (ci *CartItem) LineItem() LineItem {
	return LineItem{
		ProductID: ci.ProductID,
		Quantity:  ci.Quantity,
		UnitPrice: ci.UnitPrice,
		Image:     ci.Image,
		Meta:      ci.Meta,
	}
}

// Order claims an order reference. One checkout owns each reference.
type Order struct {
	BaseModel
	OrderRef  string    `json:"order_ref" gorm:"size:100;not null;uniqueIndex"`
	CartToken uuid.UUID `json:"cart_token" gorm:"type:uuid;not null"`
	Total     float64   `json:"total" gorm:"type:decimal(10,2)"`
	PlacedAt  time.Time `json:"placed_at"`
}

type OrderLineItem struct {
	BaseModel
	OrderRef  string    `json:"order_ref" gorm:"size:100;not null;index"`
	ProductID int64     `json:"product_id" gorm:"not null"`
	Quantity  int       `json:"quantity" gorm:"not null"`
	UnitPrice *float64  `json:"unit_price" gorm:"type:decimal(12,4)"`
	Total     float64   `json:"total" gorm:"type:decimal(10,2)"`
	ConfigID  string    `json:"config_id" gorm:"size:191;index"`
	Meta      JSONB     `json:"meta" gorm:"type:jsonb"`
	PlacedAt  time.Time `json:"placed_at"`
}

// internal/services/cart_bridge.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bigdiamond/atelier-backend/internal/models"
)

var (
	ErrCartAddFailed = errors.New("failed to add items to cart")
	ErrCartItemGone  = errors.New("cart item not found")
)

// CartBridge is the shop cart as seen by the ring configurator.
type CartBridge interface {
	AddItem(ctx context.Context, cartToken uuid.UUID, item models.LineItem) (uuid.UUID, error)
	RemoveItem(ctx context.Context, cartToken, itemID uuid.UUID) error
	Items(ctx context.Context, cartToken uuid.UUID) ([]models.CartItem, error)
	// SupportsAdHocItems reports whether items without a catalog product
	// (VirtualProductID) and with a custom price are accepted.
	SupportsAdHocItems() bool
}

// BatchCartBridge adds several items as one all-or-nothing operation.
type BatchCartBridge interface {
	CartBridge
	AddItems(ctx context.Context, cartToken uuid.UUID, items []models.LineItem) ([]uuid.UUID, error)
}

type GormCartBridge struct {
	db *gorm.DB
}

func NewGormCartBridge(db *gorm.DB) *GormCartBridge {
	return &GormCartBridge{db: db}
}

func (b *GormCartBridge) SupportsAdHocItems() bool {
	return true
}

func (b *GormCartBridge) AddItem(ctx context.Context, cartToken uuid.UUID, item models.LineItem) (uuid.UUID, error) {
	ids, err := b.addItems(b.db.WithContext(ctx), cartToken, []models.LineItem{item})
	if err != nil {
		return uuid.Nil, err
	}
	return ids[0], nil
}

func (b *GormCartBridge) AddItems(ctx context.Context, cartToken uuid.UUID, items []models.LineItem) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ids, err = b.addItems(tx, cartToken, items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (b *GormCartBridge) addItems(tx *gorm.DB, cartToken uuid.UUID, items []models.LineItem) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("invalid quantity %d", item.Quantity)
		}
		if item.ProductID == VirtualProductID && item.UnitPrice == nil {
			return nil, errors.New("ad-hoc item requires a price")
		}

		row := &models.CartItem{
			CartToken: cartToken,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			ConfigID:  item.Meta.ConfigID,
			Image:     item.Image,
			Meta:      item.Meta,
		}
		if err := tx.Create(row).Error; err != nil {
			return nil, fmt.Errorf("failed to create cart item: %w", err)
		}
		ids = append(ids, row.ID)
	}
	return ids, nil
}

func (b *GormCartBridge) RemoveItem(ctx context.Context, cartToken, itemID uuid.UUID) error {
	result := b.db.WithContext(ctx).
		Where("id = ? AND cart_token = ?", itemID, cartToken).
		Delete(&models.CartItem{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove cart item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCartItemGone
	}
	return nil
}

func (b *GormCartBridge) Items(ctx context.Context, cartToken uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := b.db.WithContext(ctx).
		Where("cart_token = ?", cartToken).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return items, nil
}

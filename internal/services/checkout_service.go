// internal/services/checkout_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/database"
	"github.com/bigdiamond/atelier-backend/internal/models"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

var (
	ErrCartEmpty      = errors.New("cart is empty")
	ErrCheckoutFailed = errors.New("checkout failed")
	ErrOrderExists    = errors.New("order reference already used")
)

type CheckoutResult struct {
	OrderRef  string                 `json:"order_id"`
	LineItems []models.OrderLineItem `json:"line_items"`
}

// CheckoutService turns cart items into order line items carrying the ring
// metadata and links the configurations to the order.
type CheckoutService struct {
	db      *gorm.DB
	configs *ConfigurationService
	clock   clock.Clock
}

func NewCheckoutService(db *gorm.DB, configs *ConfigurationService, clk clock.Clock) *CheckoutService {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &CheckoutService{db: db, configs: configs, clock: clk}
}

// CompleteCheckout places the order. An empty orderRef gets a generated one;
// a reference that already belongs to an order is refused with ErrOrderExists.
func (s *CheckoutService) CompleteCheckout(ctx context.Context, cartToken uuid.UUID, orderRef string) (*CheckoutResult, error) {
	if orderRef == "" {
		ref, err := utils.GenerateOrderRef()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
		}
		orderRef = ref
	}

	var lines []models.OrderLineItem
	err := database.WithTransaction(s.db.WithContext(ctx), func(tx *gorm.DB) error {
		var items []models.CartItem
		if err := tx.Where("cart_token = ?", cartToken).Order("created_at ASC").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrCartEmpty
		}

		var taken int64
		if err := tx.Model(&models.Order{}).Where("order_ref = ?", orderRef).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrOrderExists
		}

		placedAt := s.clock.Now()
		order := models.Order{OrderRef: orderRef, CartToken: cartToken, PlacedAt: placedAt}
		for i := range items {
			order.Total += items[i].LineItem().Total()
		}
		// The unique index settles concurrent checkouts racing for one reference.
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		linked := make(map[string]bool)
		for i := range items {
			item := items[i].LineItem()
			line := models.OrderLineItem{
				OrderRef:  orderRef,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				Total:     item.Total(),
				ConfigID:  item.Meta.ConfigID,
				Meta:      OrderMeta(item.Meta),
				PlacedAt:  placedAt,
			}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
			lines = append(lines, line)

			if item.Meta.ConfigID != "" && !linked[item.Meta.ConfigID] {
				if err := s.configs.LinkOrder(ctx, tx, item.Meta.ConfigID, orderRef); err != nil {
					return err
				}
				linked[item.Meta.ConfigID] = true
			}
		}

		return tx.Where("cart_token = ?", cartToken).Delete(&models.CartItem{}).Error
	})
	if errors.Is(err, ErrCartEmpty) || errors.Is(err, ErrOrderExists) {
		return nil, err
	}
	if err != nil {
		logrus.WithError(err).WithField("cart_token", cartToken).Error("Checkout failed")
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}

	logrus.WithFields(logrus.Fields{
		"order_ref":  orderRef,
		"line_items": len(lines),
	}).Info("Order placed")

	return &CheckoutResult{OrderRef: orderRef, LineItems: lines}, nil
}

func (s *CheckoutService) OrderLines(ctx context.Context, orderRef string) ([]models.OrderLineItem, error) {
	var lines []models.OrderLineItem
	err := s.db.WithContext(ctx).Where("order_ref = ?", orderRef).Order("created_at ASC").Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load order lines: %w", err)
	}
	return lines, nil
}

// internal/services/ring_cart_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bigdiamond/atelier-backend/internal/models"
)

type AddToCartResult struct {
	CartToken  uuid.UUID         `json:"cart_token"`
	ItemsAdded int               `json:"items_added"`
	Items      []models.LineItem `json:"items"`
}

// CartLine is a cart item prepared for display.
type CartLine struct {
	ID        uuid.UUID     `json:"id"`
	ProductID int64         `json:"product_id"`
	Quantity  int           `json:"quantity"`
	UnitPrice *float64      `json:"unit_price,omitempty"`
	Total     float64       `json:"total"`
	ConfigID  string        `json:"config_id,omitempty"`
	Image     string        `json:"image,omitempty"`
	Meta      []DisplayPair `json:"meta"`
}

type RingCartService struct {
	configs *ConfigurationService
	mapper  *ProductMapper
	bridge  CartBridge
}

func NewRingCartService(configs *ConfigurationService, mapper *ProductMapper, bridge CartBridge) *RingCartService {
	return &RingCartService{configs: configs, mapper: mapper, bridge: bridge}
}

// AddToCart adds both rings of a stored configuration or nothing at all.
// A nil cartToken opens a new cart.
func (s *RingCartService) AddToCart(ctx context.Context, cartToken uuid.UUID, configID string) (*AddToCartResult, error) {
	cfg, err := s.configs.Load(ctx, configID)
	if err != nil {
		return nil, err
	}

	items, err := s.mapper.Map(cfg, s.bridge.SupportsAdHocItems())
	if err != nil {
		logrus.WithError(err).WithField("config_id", configID).Error("Failed to map ring configuration")
		return nil, err
	}

	if cartToken == uuid.Nil {
		cartToken = uuid.New()
	}

	if err := s.addAll(ctx, cartToken, items); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"config_id":  configID,
			"cart_token": cartToken,
		}).Error("Failed to add rings to cart")
		return nil, fmt.Errorf("%w: %v", ErrCartAddFailed, err)
	}

	return &AddToCartResult{CartToken: cartToken, ItemsAdded: len(items), Items: items}, nil
}

func (s *RingCartService) addAll(ctx context.Context, cartToken uuid.UUID, items []models.LineItem) error {
	if batch, ok := s.bridge.(BatchCartBridge); ok {
		_, err := batch.AddItems(ctx, cartToken, items)
		return err
	}

	added := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		id, err := s.bridge.AddItem(ctx, cartToken, item)
		if err != nil {
			s.rollback(ctx, cartToken, added)
			return err
		}
		added = append(added, id)
	}
	return nil
}

// rollback removes already-added items in reverse order. Failures are
// logged because the caller's error is the one that matters.
func (s *RingCartService) rollback(ctx context.Context, cartToken uuid.UUID, added []uuid.UUID) {
	for i := len(added) - 1; i >= 0; i-- {
		err := s.bridge.RemoveItem(ctx, cartToken, added[i])
		if err != nil && !errors.Is(err, ErrCartItemGone) {
			logrus.WithError(err).WithField("item_id", added[i]).Error("Failed to roll back cart item")
		}
	}
}

func (s *RingCartService) Contents(ctx context.Context, cartToken uuid.UUID, lang string) ([]CartLine, error) {
	items, err := s.bridge.Items(ctx, cartToken)
	if err != nil {
		return nil, err
	}

	lines := make([]CartLine, 0, len(items))
	for i := range items {
		item := items[i].LineItem()
		lines = append(lines, CartLine{
			ID:        items[i].ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Total:     item.Total(),
			ConfigID:  item.Meta.ConfigID,
			Image:     item.Image,
			Meta:      DisplayMeta(lang, item.Meta),
		})
	}
	return lines, nil
}

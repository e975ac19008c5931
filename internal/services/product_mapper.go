// internal/services/product_mapper.go
package services

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/bigdiamond/atelier-backend/internal/i18n"
	"github.com/bigdiamond/atelier-backend/internal/models"
)

// VirtualProductID marks an ad-hoc priced line item with no catalog product.
const VirtualProductID int64 = 0

// Order line item meta keys read by fulfilment.
const (
	MetaCustomRingData = "_custom_ring_data"
	MetaCustomRings    = "_custom_rings"
	MetaRingNumber     = "_ring_number"
	MetaRingConfigID   = "_ring_config_id"
)

var ErrMappingFailed = errors.New("configuration cannot be mapped to products")

type DisplayPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type ProductMapper struct {
	templateProductID int64
	allowVirtual      bool
}

func NewProductMapper(templateProductID int64, allowVirtual bool) *ProductMapper {
	return &ProductMapper{templateProductID: templateProductID, allowVirtual: allowVirtual}
}

// Map prefers one template product line per ring. Without a template it
// bundles both rings into one virtual line, but only when that is enabled
// and the cart accepts ad-hoc items.
func (m *ProductMapper) Map(cfg *models.RingConfiguration, supportsAdHoc bool) ([]models.LineItem, error) {
	if cfg == nil || cfg.ConfigID == "" {
		return nil, ErrMappingFailed
	}

	if m.templateProductID > 0 {
		items := make([]models.LineItem, 0, 2)
		for number := 1; number <= 2; number++ {
			ring := cfg.Ring(number)
			price := ring.Price
			items = append(items, models.LineItem{
				ProductID: m.templateProductID,
				Quantity:  1,
				UnitPrice: &price,
				Image:     ring.Image,
				Meta: models.LineItemMeta{
					ConfigID:   cfg.ConfigID,
					RingNumber: number,
					Ring:       &ring,
				},
			})
		}
		return items, nil
	}

	if m.allowVirtual && supportsAdHoc {
		// Quantity 2 at half the sum keeps the line total equal to both prices.
		// Unit price columns carry four decimals so half a cent survives.
		unit := cfg.TotalPrice() / 2
		image := cfg.Ring1.Image
		if image == "" {
			image = cfg.Ring2.Image
		}
		return []models.LineItem{{
			ProductID: VirtualProductID,
			Quantity:  2,
			UnitPrice: &unit,
			Image:     image,
			Meta: models.LineItemMeta{
				ConfigID: cfg.ConfigID,
				Rings:    []models.RingSpec{cfg.Ring1, cfg.Ring2},
			},
		}}, nil
	}

	return nil, ErrMappingFailed
}

// DisplayMeta renders the item metadata shown in cart, checkout and order
// views.
func DisplayMeta(lang string, meta models.LineItemMeta) []DisplayPair {
	if meta.Ring != nil {
		pairs := []DisplayPair{{
			Key:   i18n.T(lang, i18n.KeyRingLabel),
			Value: i18n.T(lang, i18n.KeyRingNumber, meta.RingNumber),
		}}
		return append(pairs, ringPairs(lang, *meta.Ring)...)
	}

	pairs := make([]DisplayPair, 0, len(meta.Rings)+1)
	if len(meta.Rings) > 0 {
		pairs = append(pairs, DisplayPair{
			Key:   i18n.T(lang, i18n.KeyRingBundle),
			Value: meta.ConfigID,
		})
	}
	for i, ring := range meta.Rings {
		values := make([]string, 0, len(ring.Stones)+5)
		for _, p := range ringPairs(lang, ring) {
			values = append(values, p.Value)
		}
		pairs = append(pairs, DisplayPair{
			Key:   i18n.T(lang, i18n.KeyRingLabel) + " " + i18n.T(lang, i18n.KeyRingNumber, i+1),
			Value: strings.Join(values, ", "),
		})
	}
	return pairs
}

func ringPairs(lang string, ring models.RingSpec) []DisplayPair {
	var pairs []DisplayPair
	add := func(key, value string) {
		if value != "" {
			pairs = append(pairs, DisplayPair{Key: i18n.T(lang, key), Value: value})
		}
	}

	add(i18n.KeyRingMaterial, ring.Material)
	add(i18n.KeyRingFinish, ring.Finish)
	if ring.Width > 0 {
		add(i18n.KeyRingWidth, i18n.T(lang, i18n.KeyRingWidthValue, strconv.FormatFloat(ring.Width, 'f', -1, 64)))
	}
	add(i18n.KeyRingSize, ring.Size)
	add(i18n.KeyRingEngraving, ring.Engraving)
	add(i18n.KeyRingStones, strings.Join(ring.Stones, ", "))
	return pairs
}

// OrderMeta is the metadata persisted on an order line item.
func OrderMeta(meta models.LineItemMeta) models.JSONB {
	out := models.JSONB{MetaRingConfigID: meta.ConfigID}
	if meta.Ring != nil {
		out[MetaRingNumber] = meta.RingNumber
		out[MetaCustomRingData] = specAsMap(*meta.Ring)
	}
	if len(meta.Rings) > 0 {
		rings := make([]interface{}, 0, len(meta.Rings))
		for _, ring := range meta.Rings {
			rings = append(rings, specAsMap(ring))
		}
		out[MetaCustomRings] = rings
	}
	return out
}

func specAsMap(spec models.RingSpec) map[string]interface{} {
	var out map[string]interface{}
	data, _ := json.Marshal(spec)
	_ = json.Unmarshal(data, &out)
	return out
}

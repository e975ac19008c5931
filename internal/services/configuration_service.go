// internal/services/configuration_service.go
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/i18n"
	"github.com/bigdiamond/atelier-backend/internal/models"
	"github.com/bigdiamond/atelier-backend/internal/transient"
	"github.com/bigdiamond/atelier-backend/internal/utils"
)

const configKeyPrefix = "ring_config_"

var (
	ErrConfigurationNotFound = errors.New("configuration not found or expired")
	ErrConfigurationStore    = errors.New("failed to store configuration")
)

type StoreResult struct {
	ConfigID  string    `json:"config_id"`
	RecordID  uuid.UUID `json:"record_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConfigurationService keeps every configuration twice: a short-lived
// transient copy for the summary flow and an append-only durable record.
type ConfigurationService struct {
	db    *gorm.DB
	cache transient.Store
	ttl   time.Duration
	clock clock.Clock
}

func NewConfigurationService(db *gorm.DB, cache transient.Store, ttl time.Duration, clk clock.Clock) *ConfigurationService {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ConfigurationService{db: db, cache: cache, ttl: ttl, clock: clk}
}

func ConfigCacheKey(configID string) string {
	return configKeyPrefix + configID
}

func (s *ConfigurationService) Save(ctx context.Context, cfg *models.RingConfiguration) (*StoreResult, error) {
	record := &models.RingConfigurationRecord{
		ConfigID:      cfg.ConfigID,
		Title:         i18n.T(i18n.Default(), i18n.KeyConfigurationTitle, cfg.ConfigID),
		ConfigData:    *cfg,
		CustomerEmail: cfg.Customer.Email,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("%w: durable record: %v", ErrConfigurationStore, err)
	}

	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrConfigurationStore, err)
	}
	if err := s.cache.Set(ctx, ConfigCacheKey(cfg.ConfigID), payload, s.ttl); err != nil {
		return nil, fmt.Errorf("%w: transient: %v", ErrConfigurationStore, err)
	}

	logrus.WithFields(logrus.Fields{
		"config_id": cfg.ConfigID,
		"record_id": record.ID,
	}).Info("Ring configuration stored")

	return &StoreResult{
		ConfigID:  cfg.ConfigID,
		RecordID:  record.ID,
		ExpiresAt: s.clock.Now().Add(s.ttl),
	}, nil
}

// Load reads only the transient copy. An expired copy means the customer's
// session is over; durable records are never used here.
func (s *ConfigurationService) Load(ctx context.Context, configID string) (*models.RingConfiguration, error) {
	if configID == "" {
		return nil, ErrConfigurationNotFound
	}

	payload, ok, err := s.cache.Get(ctx, ConfigCacheKey(configID))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration %s: %w", configID, err)
	}
	if !ok {
		return nil, ErrConfigurationNotFound
	}

	var cfg models.RingConfiguration
	if err := json.Unmarshal(payload, &cfg); err != nil {
		logrus.WithError(err).WithField("config_id", configID).Warn("Discarding unreadable cached configuration")
		return nil, ErrConfigurationNotFound
	}
	return &cfg, nil
}

// History returns every durable record for configID, newest first.
func (s *ConfigurationService) History(ctx context.Context, configID string) ([]models.RingConfigurationRecord, error) {
	var records []models.RingConfigurationRecord
	err := s.db.WithContext(ctx).
		Where("config_id = ?", configID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration history: %w", err)
	}
	return records, nil
}

func (s *ConfigurationService) FindByCustomerEmail(ctx context.Context, email string) ([]models.RingConfigurationRecord, error) {
	var records []models.RingConfigurationRecord
	err := s.db.WithContext(ctx).
		Where("customer_email = ?", email).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find configurations by email: %w", err)
	}
	return records, nil
}

type RecordFilter struct {
	Email    string
	ConfigID string
}

func (s *ConfigurationService) ListRecords(ctx context.Context, filter RecordFilter, params utils.PaginationParams) ([]models.RingConfigurationRecord, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.RingConfigurationRecord{})
	if filter.Email != "" {
		query = query.Where("customer_email = ?", filter.Email)
	}
	if filter.ConfigID != "" {
		query = query.Where("config_id = ?", filter.ConfigID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count configurations: %w", err)
	}

	var records []models.RingConfigurationRecord
	query = utils.ApplySort(query, params, []string{"created_at", "config_id", "customer_email"})
	if err := utils.ApplyPagination(query, params).Find(&records).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list configurations: %w", err)
	}
	return records, total, nil
}

// LinkOrder attaches orderRef to the most recent durable record of configID.
func (s *ConfigurationService) LinkOrder(ctx context.Context, tx *gorm.DB, configID, orderRef string) error {
	if tx == nil {
		tx = s.db
	}

	var record models.RingConfigurationRecord
	err := tx.WithContext(ctx).
		Where("config_id = ?", configID).
		Order("created_at DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithField("config_id", configID).Warn("No durable configuration record to link to order")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find configuration record: %w", err)
	}

	linkedAt := s.clock.Now()
	return tx.WithContext(ctx).Model(&record).Updates(map[string]interface{}{
		"order_ref": orderRef,
		"linked_at": linkedAt,
	}).Error
}

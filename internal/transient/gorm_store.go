// internal/transient/gorm_store.go
package transient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bigdiamond/atelier-backend/internal/clock"
	"github.com/bigdiamond/atelier-backend/internal/models"
)

// GormStore keeps entries in the transients table so they survive restarts
// and are shared between instances.
type GormStore struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewGormStore(db *gorm.DB, clk clock.Clock) *GormStore {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	return &GormStore{db: db, clock: clk}
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry models.Transient
	err := s.db.WithContext(ctx).
		Where("cache_key = ? AND expires_at > ?", key, s.clock.Now()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read transient %s: %w", key, err)
	}
	return []byte(entry.Value), true, nil
}

func (s *GormStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	entry := models.Transient{
		Key:       key,
		Value:     string(value),
		ExpiresAt: s.clock.Now().Add(ttl),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write transient %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&models.Transient{}).Error; err != nil {
		return fmt.Errorf("failed to delete transient %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.clock.Now()

		query := tx
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var entry models.Transient
		err := query.Where("cache_key = ?", key).First(&entry).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			count = 1
			fresh := models.Transient{Key: key, Value: formatCounter(count), ExpiresAt: now.Add(ttl)}
			// A concurrent first increment may win the insert; that request
			// is simply not counted.
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error
		case err != nil:
			return err
		}

		if !now.Before(entry.ExpiresAt) {
			count = 1
			entry.ExpiresAt = now.Add(ttl)
		} else {
			current, _ := strconv.ParseInt(entry.Value, 10, 64)
			count = current + 1
		}
		return tx.Model(&models.Transient{}).
			Where("cache_key = ?", key).
			Updates(map[string]interface{}{
				"value":      formatCounter(count),
				"expires_at": entry.ExpiresAt,
			}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment transient %s: %w", key, err)
	}
	return count, nil
}

// PurgeExpired deletes expired rows and returns how many were removed.
func (s *GormStore) PurgeExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Where("expires_at <= ?", s.clock.Now()).Delete(&models.Transient{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge transients: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func formatCounter(n int64) string {
	return strconv.FormatInt(n, 10)
}

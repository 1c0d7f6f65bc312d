package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/megaeth-tools/vigil/internal/models"
)

func (db *Store) UpsertSubscription(sub *models.Subscription) error {
	err := db.Conn.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "chat_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"min_volume_usd", "min_liquidity_usd", "price_change_threshold", "active",
		}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %s", err)
	}

	return nil
}

func (db *Store) DeleteSubscription(chatID int64) error {
	result := db.Conn.Where("chat_id = ?", chatID).Delete(&models.Subscription{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete subscription: %s", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (db *Store) GetSubscription(chatID int64) (*models.Subscription, error) {
	var sub models.Subscription
	if err := db.Conn.Where("chat_id = ?", chatID).First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %s", err)
	}

	return &sub, nil
}

// SetSubscriptionActive pauses or resumes delivery. Thresholds survive the
// pause so /alerts on restores the previous filter.
func (db *Store) SetSubscriptionActive(chatID int64, active bool) error {
	result := db.Conn.Model(&models.Subscription{}).
		Where("chat_id = ?", chatID).
		Update("active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to toggle subscription: %s", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (db *Store) ListSubscriptions() ([]*models.Subscription, error) {
	var subs []*models.Subscription
	if err := db.Conn.Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %s", err)
	}

	return subs, nil
}

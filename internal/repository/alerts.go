package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/megaeth-tools/vigil/internal/models"
)

func (db *Store) AlertRecordsForToken(tokenAddress string) (map[models.AlertKind]*models.AlertRecord, error) {
	var records []*models.AlertRecord
	if err := db.Conn.Where("token_address = ?", tokenAddress).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to get alert records: %s", err)
	}

	byKind := make(map[models.AlertKind]*models.AlertRecord, len(records))
	for _, record := range records {
		byKind[record.Kind] = record
	}
	return byKind, nil
}

// MarkAlertedIfDue is the atomic dedup step: the cooldown check and the
// upsert happen in one transaction, so two cycles racing on the same
// (token, kind) produce at most one alert.
func (db *Store) MarkAlertedIfDue(tokenAddress string, kind models.AlertKind, value float64, now time.Time, cooldown time.Duration) (bool, error) {
	fired := false
	err := db.Conn.Transaction(func(tx *gorm.DB) error {
		var record models.AlertRecord
		err := tx.Where("token_address = ? AND kind = ?", tokenAddress, kind).First(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			record = models.AlertRecord{
				TokenAddress:  tokenAddress,
				Kind:          kind,
				LastValue:     value,
				LastAlertedAt: now.Unix(),
			}
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("failed to create alert record: %s", err)
			}
			fired = true
			return nil
		case err != nil:
			return fmt.Errorf("failed to get alert record: %s", err)
		}

		if record.LastAlertedAt > 0 && now.Sub(time.Unix(record.LastAlertedAt, 0)) < cooldown {
			return nil // still cooling down
		}

		record.LastValue = value
		record.LastAlertedAt = now.Unix()
		if err := tx.Save(&record).Error; err != nil {
			return fmt.Errorf("failed to update alert record: %s", err)
		}
		fired = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return fired, nil
}

func (db *Store) EnsureBaseline(tokenAddress string, kind models.AlertKind, value float64) error {
	return db.Conn.Transaction(func(tx *gorm.DB) error {
		var record models.AlertRecord
		err := tx.Where("token_address = ? AND kind = ?", tokenAddress, kind).First(&record).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to get alert record: %s", err)
		}

		record = models.AlertRecord{
			TokenAddress: tokenAddress,
			Kind:         kind,
			LastValue:    value,
			// LastAlertedAt stays zero: baseline only, no alert emitted.
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to seed baseline record: %s", err)
		}
		return nil
	})
}

func (db *Store) RefreshBaselineValue(tokenAddress string, kind models.AlertKind, value float64) error {
	err := db.Conn.Model(&models.AlertRecord{}).
		Where("token_address = ? AND kind = ?", tokenAddress, kind).
		Update("last_value", value).Error
	if err != nil {
		return fmt.Errorf("failed to refresh baseline value: %s", err)
	}

	return nil
}
